package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// HallRepo persists halls.  A hall's layout is fixed once created;
// screenings copy its capacity into their seat counter.
type HallRepo struct {
	db *sql.DB
}

// NewHallRepo returns a HallRepo bound to db.
func NewHallRepo(db *sql.DB) *HallRepo { return &HallRepo{db: db} }

const hallSelect = `SELECT id, name, seat_rows, seats_per_row, created_at FROM halls`

func scanHall(row scanner) (*model.Hall, error) {
	var h model.Hall
	if err := row.Scan(&h.ID, &h.Name, &h.Rows, &h.SeatsPerRow, &h.CreatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

// Create inserts a hall and reads it back so created_at is filled.  A
// duplicate name is booking.ErrNameTaken.
func (r *HallRepo) Create(ctx context.Context, name string, rows, seatsPerRow int) (*model.Hall, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO halls (name, seat_rows, seats_per_row) VALUES (?, ?, ?)`, name, rows, seatsPerRow)
	switch {
	case isDuplicate(err):
		return nil, fmt.Errorf("hall %q: %w", name, booking.ErrNameTaken)
	case isOutOfRange(err):
		return nil, &booking.ValidationError{Reason: fmt.Sprintf("hall layout %dx%d must be positive", rows, seatsPerRow)}
	case err != nil:
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID returns a hall or a wrapped booking.ErrNotFound.
func (r *HallRepo) GetByID(ctx context.Context, id uint64) (*model.Hall, error) {
	h, err := scanHall(r.db.QueryRowContext(ctx, hallSelect+` WHERE id = ?`, id))
	if err != nil {
		return nil, notFound("hall", id, err)
	}
	return h, nil
}
