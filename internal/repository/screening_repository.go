package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// ScreeningRepo manages persistence for screenings.  Reads join films
// and halls so a model.Screening always carries its title and layout.
type ScreeningRepo struct {
	db *sql.DB
}

// NewScreeningRepo returns a ScreeningRepo bound to db.
func NewScreeningRepo(db *sql.DB) *ScreeningRepo { return &ScreeningRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions
// spanning several repositories.
func (r *ScreeningRepo) DB() *sql.DB { return r.db }

const screeningSelect = `SELECT s.id, s.film_id, f.title, s.hall_id, h.name, h.seat_rows, h.seats_per_row,
       s.starts_at, s.price_cents, s.available_seats, s.created_at
  FROM screenings s
  JOIN films f ON f.id = s.film_id
  JOIN halls h ON h.id = s.hall_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanScreening(row scanner) (*model.Screening, error) {
	var s model.Screening
	err := row.Scan(&s.ID, &s.FilmID, &s.FilmTitle, &s.HallID, &s.HallName, &s.Rows, &s.SeatsPerRow,
		&s.StartsAt, &s.PriceCents, &s.AvailableSeats, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.StartsAt = s.StartsAt.UTC()
	return &s, nil
}

func notFound(kind string, id uint64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, booking.ErrNotFound)
	}
	return err
}

// GetByID returns a screening without locking it.
func (r *ScreeningRepo) GetByID(ctx context.Context, id uint64) (*model.Screening, error) {
	s, err := scanScreening(r.db.QueryRowContext(ctx, screeningSelect+` WHERE s.id = ?`, id))
	if err != nil {
		return nil, notFound("screening", id, err)
	}
	return s, nil
}

// GetForUpdateTx reads a screening and locks its row until tx ends.
// Only the screenings row is locked; films and halls stay shared.
func (r *ScreeningRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Screening, error) {
	s, err := scanScreening(tx.QueryRowContext(ctx, screeningSelect+` WHERE s.id = ? FOR UPDATE OF s`, id))
	if err != nil {
		return nil, notFound("screening", id, err)
	}
	return s, nil
}

// AdjustAvailableTx adds delta to available_seats.  The guard in the
// WHERE clause keeps the counter from going negative.
func (r *ScreeningRepo) AdjustAvailableTx(ctx context.Context, tx *sql.Tx, id uint64, delta int) error {
	const q = `UPDATE screenings SET available_seats = available_seats + ?
                WHERE id = ? AND available_seats + ? >= 0`
	res, err := tx.ExecContext(ctx, q, delta, id, delta)
	if err != nil {
		if isOutOfRange(err) {
			return booking.ErrCounterUnderflow
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if delta < 0 {
			return booking.ErrCounterUnderflow
		}
		return fmt.Errorf("screening %d: %w", id, booking.ErrNotFound)
	}
	return nil
}

// ListUpcoming returns screenings starting at or after from.
func (r *ScreeningRepo) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]model.Screening, error) {
	rows, err := r.db.QueryContext(ctx, screeningSelect+` WHERE s.starts_at >= ? ORDER BY s.starts_at, s.id LIMIT ?`, from.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Screening, 0)
	for rows.Next() {
		s, err := scanScreening(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CreateTx schedules a screening with available_seats set to the
// hall's capacity.  An unknown hall or film is booking.ErrNotFound and
// a second screening in the same hall slot is booking.ErrSlotTaken.
func (r *ScreeningRepo) CreateTx(ctx context.Context, tx *sql.Tx, in model.NewScreening) (*model.Screening, error) {
	const q = `INSERT INTO screenings (film_id, hall_id, starts_at, price_cents, available_seats)
               SELECT ?, h.id, ?, ?, h.seat_rows * h.seats_per_row FROM halls h WHERE h.id = ?`
	res, err := tx.ExecContext(ctx, q, in.FilmID, in.StartsAt.UTC().Truncate(time.Second), in.PriceCents, in.HallID)
	switch {
	case isDuplicate(err):
		return nil, booking.ErrSlotTaken
	case isMissingReference(err):
		return nil, fmt.Errorf("film %d: %w", in.FilmID, booking.ErrNotFound)
	case err != nil:
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("hall %d: %w", in.HallID, booking.ErrNotFound)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	s, err := scanScreening(tx.QueryRowContext(ctx, screeningSelect+` WHERE s.id = ?`, id))
	if err != nil {
		return nil, err
	}
	return s, nil
}
