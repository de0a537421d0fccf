package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// FilmRepo persists the film catalogue.
type FilmRepo struct {
	db *sql.DB
}

// NewFilmRepo returns a FilmRepo bound to db.
func NewFilmRepo(db *sql.DB) *FilmRepo { return &FilmRepo{db: db} }

// Create inserts a film and reads it back.  Titles are unique.
func (r *FilmRepo) Create(ctx context.Context, title string, durationMin int) (*model.Film, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO films (title, duration_min) VALUES (?, ?)`, title, durationMin)
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("film %q: %w", title, booking.ErrNameTaken)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID returns a film or a wrapped booking.ErrNotFound.
func (r *FilmRepo) GetByID(ctx context.Context, id uint64) (*model.Film, error) {
	var f model.Film
	err := r.db.QueryRowContext(ctx, `SELECT id, title, duration_min, created_at FROM films WHERE id = ?`, id).
		Scan(&f.ID, &f.Title, &f.DurationMin, &f.CreatedAt)
	if err != nil {
		return nil, notFound("film", id, err)
	}
	return &f, nil
}
