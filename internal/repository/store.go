package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// Store is the MySQL booking.Store.  Transactions run at READ COMMITTED:
// the screening row lock serialises writers per screening, and the
// unique active-seat index rejects anything that slips past it.
type Store struct {
	db         *sql.DB
	films      *FilmRepo
	halls      *HallRepo
	screenings *ScreeningRepo
	tickets    *TicketRepo
}

// NewStore wires the repositories over db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		films:      NewFilmRepo(db),
		halls:      NewHallRepo(db),
		screenings: NewScreeningRepo(db),
		tickets:    NewTicketRepo(db),
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Begin implements booking.Store.
func (s *Store) Begin(ctx context.Context) (booking.Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	return &storeTx{tx: tx, screenings: s.screenings, tickets: s.tickets}, nil
}

func (s *Store) Screening(ctx context.Context, id uint64) (*model.Screening, error) {
	return s.screenings.GetByID(ctx, id)
}

func (s *Store) OccupiedSeats(ctx context.Context, screeningID uint64) (model.SeatSet, error) {
	return s.tickets.OccupiedSeats(ctx, screeningID)
}

func (s *Store) Upcoming(ctx context.Context, from time.Time, limit int) ([]model.Screening, error) {
	return s.screenings.ListUpcoming(ctx, from, limit)
}

func (s *Store) TicketsForUser(ctx context.Context, userID uint64) ([]model.TicketDetail, error) {
	return s.tickets.ListActiveByUser(ctx, userID)
}

func (s *Store) CreateFilm(ctx context.Context, title string, durationMin int) (*model.Film, error) {
	return s.films.Create(ctx, title, durationMin)
}

func (s *Store) CreateHall(ctx context.Context, name string, rows, seatsPerRow int) (*model.Hall, error) {
	return s.halls.Create(ctx, name, rows, seatsPerRow)
}

// CreateScreening schedules a film in its own transaction.
func (s *Store) CreateScreening(ctx context.Context, in model.NewScreening) (*model.Screening, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sc, err := s.screenings.CreateTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return sc, nil
}

// ActiveTicketCount counts active tickets of a screening.
func (s *Store) ActiveTicketCount(ctx context.Context, screeningID uint64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE screening_id = ? AND status = 'active'`, screeningID).Scan(&n)
	return n, err
}

type storeTx struct {
	tx         *sql.Tx
	screenings *ScreeningRepo
	tickets    *TicketRepo
}

func (t *storeTx) LockScreening(ctx context.Context, id uint64) (*model.Screening, error) {
	return t.screenings.GetForUpdateTx(ctx, t.tx, id)
}

func (t *storeTx) ActiveSeats(ctx context.Context, s *model.Screening, seats []model.Seat) ([]model.Seat, error) {
	return t.tickets.ActiveSeatsTx(ctx, t.tx, s, seats)
}

func (t *storeTx) InsertTickets(ctx context.Context, tickets []*model.Ticket) error {
	return t.tickets.InsertBulkTx(ctx, t.tx, tickets)
}

func (t *storeTx) AdjustAvailable(ctx context.Context, screeningID uint64, delta int) error {
	return t.screenings.AdjustAvailableTx(ctx, t.tx, screeningID, delta)
}

func (t *storeTx) Ticket(ctx context.Context, id uint64) (*model.Ticket, error) {
	return t.tickets.GetByIDTx(ctx, t.tx, id)
}

func (t *storeTx) LockTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	return t.tickets.GetForUpdateTx(ctx, t.tx, id)
}

func (t *storeTx) CancelTicket(ctx context.Context, id uint64, at time.Time) error {
	return t.tickets.CancelTx(ctx, t.tx, id, at)
}

func (t *storeTx) Commit() error   { return t.tx.Commit() }
func (t *storeTx) Rollback() error { return t.tx.Rollback() }
