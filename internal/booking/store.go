package booking

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// Store is the Occupancy Store.  Implementations must provide the
// isolation the engine relies on: while a Tx holds the lock taken by
// LockScreening, no other Tx can commit tickets for that screening, and
// at most one active ticket may exist per (film, hall, start, seat)
// even across processes.
type Store interface {
	// Begin starts a unit of work.  Everything done through the Tx is
	// committed or rolled back together.
	Begin(ctx context.Context) (Tx, error)

	// Screening returns a screening without locking it.
	Screening(ctx context.Context, id uint64) (*model.Screening, error)

	// OccupiedSeats returns the seats with an active ticket.
	OccupiedSeats(ctx context.Context, screeningID uint64) (model.SeatSet, error)

	// Upcoming lists screenings starting at or after from, soonest first.
	Upcoming(ctx context.Context, from time.Time, limit int) ([]model.Screening, error)

	// TicketsForUser lists a user's active tickets, soonest screening first.
	TicketsForUser(ctx context.Context, userID uint64) ([]model.TicketDetail, error)
}

// Tx is a single atomic unit of work against the Store.
type Tx interface {
	// LockScreening reads the screening and holds an exclusive lock on
	// it until Commit or Rollback.
	LockScreening(ctx context.Context, id uint64) (*model.Screening, error)

	// ActiveSeats returns the subset of seats that already carry an
	// active ticket for the screening's (film, hall, start).
	ActiveSeats(ctx context.Context, s *model.Screening, seats []model.Seat) ([]model.Seat, error)

	// InsertTickets persists the tickets and fills in their IDs and
	// CreatedAt.  A collision with an active ticket yields ErrSeatTaken.
	InsertTickets(ctx context.Context, tickets []*model.Ticket) error

	// AdjustAvailable adds delta to the screening's available-seat
	// counter.  It returns ErrCounterUnderflow instead of going negative.
	AdjustAvailable(ctx context.Context, screeningID uint64, delta int) error

	// Ticket reads a ticket without locking it.
	Ticket(ctx context.Context, id uint64) (*model.Ticket, error)

	// LockTicket re-reads a ticket under an exclusive lock.
	LockTicket(ctx context.Context, id uint64) (*model.Ticket, error)

	// CancelTicket flips an active ticket to cancelled.
	CancelTicket(ctx context.Context, id uint64, at time.Time) error

	Commit() error
	Rollback() error
}

// OccupancyCache holds occupancy snapshots for reads.  It is never
// consulted when deciding a booking.
//
// Version is read before the store query and handed back to Put;
// Invalidate changes it, so a snapshot read before a commit is never
// stored after that commit's invalidation.
type OccupancyCache interface {
	Get(ctx context.Context, screeningID uint64) (model.SeatSet, bool)
	Version(ctx context.Context, screeningID uint64) (string, bool)
	Put(ctx context.Context, screeningID uint64, version string, seats model.SeatSet)
	Invalidate(ctx context.Context, screeningID uint64)
}

// Notifier is told about committed changes.  Calls happen after commit
// and cannot undo them.
type Notifier interface {
	TicketsBooked(ctx context.Context, b *Booking)
	TicketCancelled(ctx context.Context, t *model.Ticket, s *model.Screening)
}
