package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// TicketRepo persists tickets.  Tickets are never deleted; cancelling
// flips status and stamps cancelled_at.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to db.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketSelect = `SELECT id, user_id, screening_id, film_id, hall_id, session_start, seat_row, seat_number,
       price_cents, status, code, created_at, cancelled_at
  FROM tickets`

func scanTicket(row scanner) (*model.Ticket, error) {
	var (
		t           model.Ticket
		status      string
		cancelledAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.ScreeningID, &t.FilmID, &t.HallID, &t.SessionStart,
		&t.Seat.Row, &t.Seat.Number, &t.PriceCents, &status, &t.Code, &t.CreatedAt, &cancelledAt)
	if err != nil {
		return nil, err
	}
	t.Status = model.TicketStatus(status)
	t.SessionStart = t.SessionStart.UTC()
	if cancelledAt.Valid {
		at := cancelledAt.Time.UTC()
		t.CancelledAt = &at
	}
	return &t, nil
}

// OccupiedSeats returns the seats with an active ticket for the
// screening's (film, hall, start).  The LEFT JOIN yields one NULL row
// for a screening without tickets and no rows for a missing one.
func (r *TicketRepo) OccupiedSeats(ctx context.Context, screeningID uint64) (model.SeatSet, error) {
	const q = `SELECT t.seat_row, t.seat_number
                 FROM screenings s
                 LEFT JOIN tickets t
                   ON t.film_id = s.film_id AND t.hall_id = s.hall_id
                  AND t.session_start = s.starts_at AND t.status = 'active'
                WHERE s.id = ?`
	rows, err := r.db.QueryContext(ctx, q, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Any row at all, even the all-NULL one, proves the screening exists.
	found := false
	set := model.NewSeatSet()
	for rows.Next() {
		found = true
		var row, num sql.NullInt64
		if err := rows.Scan(&row, &num); err != nil {
			return nil, err
		}
		if row.Valid && num.Valid {
			set.Add(model.Seat{Row: int(row.Int64), Number: int(num.Int64)})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("screening %d: %w", screeningID, booking.ErrNotFound)
	}
	return set, nil
}

// ActiveSeatsTx returns which of seats already have an active ticket at
// the screening's (film, hall, start).
func (r *TicketRepo) ActiveSeatsTx(ctx context.Context, tx *sql.Tx, s *model.Screening, seats []model.Seat) ([]model.Seat, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	// Build a row constructor IN list: (seat_row, seat_number) IN ((?, ?), ...).
	pairs := make([]string, 0, len(seats))
	args := make([]any, 0, 3+2*len(seats))
	args = append(args, s.FilmID, s.HallID, s.StartsAt.UTC())
	for _, seat := range seats {
		pairs = append(pairs, "(?, ?)")
		args = append(args, seat.Row, seat.Number)
	}
	q := `SELECT seat_row, seat_number FROM tickets
           WHERE film_id = ? AND hall_id = ? AND session_start = ? AND status = 'active'
             AND (seat_row, seat_number) IN (` + strings.Join(pairs, ", ") + `)`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var taken []model.Seat
	for rows.Next() {
		var seat model.Seat
		if err := rows.Scan(&seat.Row, &seat.Number); err != nil {
			return nil, err
		}
		taken = append(taken, seat)
	}
	return taken, rows.Err()
}

// InsertBulkTx inserts all tickets in one statement and reads back
// their ids and created_at by code.  A unique-key violation means a
// seat is already active and is reported as booking.ErrSeatTaken.
func (r *TicketRepo) InsertBulkTx(ctx context.Context, tx *sql.Tx, tickets []*model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	// One multi-row INSERT keeps the whole purchase a single statement.
	placeholders := make([]string, 0, len(tickets))
	args := make([]any, 0, len(tickets)*10)
	codes := make([]string, 0, len(tickets))
	codeArgs := make([]any, 0, len(tickets))
	for _, t := range tickets {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, t.UserID, t.ScreeningID, t.FilmID, t.HallID, t.SessionStart.UTC(),
			t.Seat.Row, t.Seat.Number, t.PriceCents, string(t.Status), t.Code)
		codes = append(codes, "?")
		codeArgs = append(codeArgs, t.Code)
	}
	q := `INSERT INTO tickets (user_id, screening_id, film_id, hall_id, session_start, seat_row, seat_number, price_cents, status, code)
          VALUES ` + strings.Join(placeholders, ", ")
	// 1062 on uq_tickets_active_seat: someone holds an active ticket for
	// one of these seats.  Only the statement is rolled back, tx stays open.
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %v", booking.ErrSeatTaken, err)
		}
		return err
	}

	// LastInsertId only covers the first row of a bulk insert, so read
	// the ids back by their unique codes.
	rows, err := tx.QueryContext(ctx, `SELECT id, code, created_at FROM tickets WHERE code IN (`+strings.Join(codes, ", ")+`)`, codeArgs...)
	if err != nil {
		return err
	}
	defer rows.Close()
	byCode := make(map[string]*model.Ticket, len(tickets))
	for _, t := range tickets {
		byCode[t.Code] = t
	}
	for rows.Next() {
		var (
			id        uint64
			code      string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &code, &createdAt); err != nil {
			return err
		}
		if t, ok := byCode[code]; ok {
			t.ID = id
			t.CreatedAt = createdAt
		}
	}
	return rows.Err()
}

// GetByIDTx reads a ticket inside tx without locking it.
func (r *TicketRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error) {
	t, err := scanTicket(tx.QueryRowContext(ctx, ticketSelect+` WHERE id = ?`, id))
	if err != nil {
		return nil, notFound("ticket", id, err)
	}
	return t, nil
}

// GetForUpdateTx reads a ticket and locks its row until tx ends.
func (r *TicketRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error) {
	t, err := scanTicket(tx.QueryRowContext(ctx, ticketSelect+` WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, notFound("ticket", id, err)
	}
	return t, nil
}

// CancelTx flips an active ticket to cancelled.
func (r *TicketRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	// The status guard makes a second cancel affect zero rows.
	const q = `UPDATE tickets SET status = 'cancelled', cancelled_at = ? WHERE id = ? AND status = 'active'`
	res, err := tx.ExecContext(ctx, q, at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ticket %d: %w", id, booking.ErrNotFound)
	}
	return nil
}

// ListActiveByUser returns a user's active tickets with the film title
// and hall name, soonest screening first.
func (r *TicketRepo) ListActiveByUser(ctx context.Context, userID uint64) ([]model.TicketDetail, error) {
	const q = `SELECT t.id, t.user_id, t.screening_id, t.film_id, t.hall_id, t.session_start, t.seat_row, t.seat_number,
                      t.price_cents, t.status, t.code, t.created_at, t.cancelled_at, f.title, h.name
                 FROM tickets t
                 JOIN films f ON f.id = t.film_id
                 JOIN halls h ON h.id = t.hall_id
                WHERE t.user_id = ? AND t.status = 'active'
                ORDER BY t.session_start, t.id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.TicketDetail, 0)
	for rows.Next() {
		var (
			d           model.TicketDetail
			status      string
			cancelledAt sql.NullTime
		)
		err := rows.Scan(&d.ID, &d.UserID, &d.ScreeningID, &d.FilmID, &d.HallID, &d.SessionStart,
			&d.Seat.Row, &d.Seat.Number, &d.PriceCents, &status, &d.Code, &d.CreatedAt, &cancelledAt,
			&d.FilmTitle, &d.HallName)
		if err != nil {
			return nil, err
		}
		d.Status = model.TicketStatus(status)
		d.SessionStart = d.SessionStart.UTC()
		if cancelledAt.Valid {
			at := cancelledAt.Time.UTC()
			d.CancelledAt = &at
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
