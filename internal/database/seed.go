package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Demo rows written by Seed.  The in-memory store seeds the same data.
const (
	DemoFilmTitle   = "The Grand Premiere"
	DemoFilmMinutes = 118
	DemoHallName    = "Hall 1"
	DemoHallRows    = 6
	DemoHallPerRow  = 9
	DemoPriceCents  = 1200
)

// Seed inserts a demo film, a 6×9 hall and a screening tomorrow at
// 19:00 UTC.  Existing demo rows are reused; the screening id is
// returned either way.
func Seed(ctx context.Context, db *sql.DB, now time.Time) (uint64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	filmID, err := upsertID(ctx, tx,
		`INSERT INTO films (title, duration_min) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`,
		DemoFilmTitle, DemoFilmMinutes)
	if err != nil {
		return 0, fmt.Errorf("seed film: %w", err)
	}
	hallID, err := upsertID(ctx, tx,
		`INSERT INTO halls (name, seat_rows, seats_per_row) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`,
		DemoHallName, DemoHallRows, DemoHallPerRow)
	if err != nil {
		return 0, fmt.Errorf("seed hall: %w", err)
	}
	day := now.UTC().AddDate(0, 0, 1)
	start := time.Date(day.Year(), day.Month(), day.Day(), 19, 0, 0, 0, time.UTC)
	screeningID, err := upsertID(ctx, tx,
		`INSERT INTO screenings (film_id, hall_id, starts_at, price_cents, available_seats) VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`,
		filmID, hallID, start, DemoPriceCents, DemoHallRows*DemoHallPerRow)
	if err != nil {
		return 0, fmt.Errorf("seed screening: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return screeningID, nil
}

func upsertID(ctx context.Context, tx *sql.Tx, q string, args ...any) (uint64, error) {
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
