// Package booking turns seat selections into tickets.  The Engine
// validates a request, re-checks occupancy inside a single store
// transaction and either commits every ticket or none of them.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/seatmap"
)

// DefaultCancelCutoff is how long before the screening a ticket stops
// being cancellable.
const DefaultCancelCutoff = 2 * time.Hour

// BookRequest is a purchase attempt.  Seats are in wire form.
type BookRequest struct {
	ScreeningID uint64
	Seats       []string
	UserID      uint64
}

// Booking is the result of a committed purchase.
type Booking struct {
	Tickets   []*model.Ticket
	Screening *model.Screening
}

// Seats returns the booked seats, row-major.
func (b *Booking) Seats() []model.Seat {
	out := make([]model.Seat, 0, len(b.Tickets))
	for _, t := range b.Tickets {
		out = append(out, t.Seat)
	}
	model.SortSeats(out)
	return out
}

// Engine is the Booking Transaction Engine.
type Engine struct {
	store    Store
	clock    clock.Clock
	cutoff   time.Duration
	cache    OccupancyCache
	notifier Notifier
	log      *logger.Logger
	newCode  func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used for the cancellation cutoff.
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithCancelCutoff overrides DefaultCancelCutoff.
func WithCancelCutoff(d time.Duration) Option { return func(e *Engine) { e.cutoff = d } }

// WithCache serves occupancy reads from c.  Bookings never read it.
func WithCache(c OccupancyCache) Option { return func(e *Engine) { e.cache = c } }

// WithNotifier publishes committed changes to n.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option { return func(e *Engine) { e.log = l } }

// WithTicketCodes replaces the ticket code generator.
func WithTicketCodes(gen func() string) Option { return func(e *Engine) { e.newCode = gen } }

// NewEngine returns an Engine backed by store.
func NewEngine(store Store, opts ...Option) *Engine {
	if store == nil {
		panic("nil store passed to NewEngine")
	}
	e := &Engine{
		store:   store,
		clock:   clock.Real(),
		cutoff:  DefaultCancelCutoff,
		log:     logger.Nop(),
		newCode: NewTicketCode,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CancelCutoff reports the configured cutoff.
func (e *Engine) CancelCutoff() time.Duration { return e.cutoff }

// ParseSeats converts wire identifiers into seats, dropping repeats
// while keeping first-occurrence order.  An empty list or a malformed
// entry is a ValidationError.
func ParseSeats(raw []string) ([]model.Seat, error) {
	if len(raw) == 0 {
		return nil, invalid("seats must be a non-empty list")
	}
	seen := make(model.SeatSet, len(raw))
	seats := make([]model.Seat, 0, len(raw))
	for _, r := range raw {
		s, err := model.ParseSeat(r)
		if err != nil {
			return nil, invalid("seat %q is not of the form row-number", r)
		}
		if seen.Has(s) {
			continue
		}
		seen.Add(s)
		seats = append(seats, s)
	}
	return seats, nil
}

// Book commits one ticket per requested seat, or nothing.
func (e *Engine) Book(ctx context.Context, req BookRequest) (*Booking, error) {
	if req.ScreeningID == 0 {
		return nil, invalid("screening id is required")
	}
	seats, err := ParseSeats(req.Seats)
	if err != nil {
		return nil, err
	}

	// One transaction covers the check and the insert so a concurrent
	// buyer cannot slip in between them.
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the screening row.  Every booking and cancellation for this
	// screening queues here, which is what serialises seat claims.
	screening, err := tx.LockScreening(ctx, req.ScreeningID)
	if err != nil {
		return nil, err
	}

	// Reject seats that are not in the hall before touching tickets.
	layout := seatmap.LayoutOf(screening)
	for _, s := range seats {
		if !layout.Contains(s) {
			return nil, invalid("seat %s is outside the %dx%d hall", s, layout.Rows, layout.SeatsPerRow)
		}
	}

	// Any seat that already has an active ticket fails the whole request.
	taken, err := tx.ActiveSeats(ctx, screening, seats)
	if err != nil {
		return nil, fmt.Errorf("check occupancy: %w", err)
	}
	if len(taken) > 0 {
		model.SortSeats(taken)
		e.log.LogConflict(ctx, req.ScreeningID, req.UserID, model.SeatStrings(taken))
		return nil, &SeatConflictError{Seats: taken}
	}

	// Build one ticket per seat at the screening's current price.
	tickets := make([]*model.Ticket, 0, len(seats))
	for _, s := range seats {
		tickets = append(tickets, &model.Ticket{
			UserID:       req.UserID,
			ScreeningID:  screening.ID,
			FilmID:       screening.FilmID,
			HallID:       screening.HallID,
			SessionStart: screening.StartsAt,
			Seat:         s,
			PriceCents:   screening.PriceCents,
			Status:       model.TicketActive,
			Code:         e.newCode(),
		})
	}
	// The unique active-seat index is the backstop: if a ticket got in
	// without taking the screening lock, the insert fails here.
	if err := tx.InsertTickets(ctx, tickets); err != nil {
		if errors.Is(err, ErrSeatTaken) {
			contested := e.contestedSeats(ctx, tx, screening, seats)
			e.log.LogConflict(ctx, req.ScreeningID, req.UserID, model.SeatStrings(contested))
			return nil, &SeatConflictError{Seats: contested}
		}
		return nil, fmt.Errorf("insert tickets: %w", err)
	}

	// Guarded decrement; it refuses to take the counter below zero.
	if err := tx.AdjustAvailable(ctx, screening.ID, -len(tickets)); err != nil {
		return nil, fmt.Errorf("update available seats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}
	committed = true

	// Everything below runs after commit and cannot fail the booking.
	screening.AvailableSeats -= len(tickets)
	b := &Booking{Tickets: tickets, Screening: screening}
	if e.cache != nil {
		e.cache.Invalidate(ctx, screening.ID)
	}
	if e.notifier != nil {
		e.notifier.TicketsBooked(ctx, b)
	}
	e.log.LogBooked(ctx, screening.ID, req.UserID, model.SeatStrings(b.Seats()), len(tickets))
	return b, nil
}

// Cancel releases a ticket owned by userID.  Tickets that are missing,
// owned by someone else or already cancelled are ErrNotFound.  The
// cutoff is checked against the screening's start time as stored now.
func (e *Engine) Cancel(ctx context.Context, ticketID, userID uint64) (*model.Ticket, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancellation: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Unlocked read to learn the screening.  Someone else's ticket is
	// reported as missing so other users' ticket ids stay hidden.
	t, err := tx.Ticket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID || !t.Status.IsActive() {
		return nil, fmt.Errorf("ticket %d: %w", ticketID, ErrNotFound)
	}

	// Screening first, then ticket: the same order Book takes locks in.
	screening, err := tx.LockScreening(ctx, t.ScreeningID)
	if err != nil {
		return nil, err
	}
	// Re-read under the lock; a parallel cancel may have won.
	t, err = tx.LockTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID || !t.Status.IsActive() {
		return nil, fmt.Errorf("ticket %d: %w", ticketID, ErrNotFound)
	}

	// Exactly at the cutoff is already too late.
	now := e.clock.Now()
	remaining := screening.StartsAt.Sub(now)
	if remaining <= e.cutoff {
		return nil, &CancellationWindowError{StartsAt: screening.StartsAt, Cutoff: e.cutoff, Remaining: remaining}
	}

	// Soft cancel, then give the seat back to the counter.
	if err := tx.CancelTicket(ctx, ticketID, now); err != nil {
		return nil, fmt.Errorf("cancel ticket: %w", err)
	}
	if err := tx.AdjustAvailable(ctx, screening.ID, 1); err != nil {
		return nil, fmt.Errorf("update available seats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}
	committed = true

	cancelledAt := now.UTC()
	t.Status = model.TicketCancelled
	t.CancelledAt = &cancelledAt
	screening.AvailableSeats++
	if e.cache != nil {
		e.cache.Invalidate(ctx, screening.ID)
	}
	if e.notifier != nil {
		e.notifier.TicketCancelled(ctx, t, screening)
	}
	e.log.LogCancelled(ctx, ticketID, userID, screening.StartsAt)
	return t, nil
}

// contestedSeats narrows a unique-index violation down to the seats that
// now hold an active ticket.  The failed insert leaves tx usable for
// reads.  When nothing can be pinned down the whole request is reported.
func (e *Engine) contestedSeats(ctx context.Context, tx Tx, screening *model.Screening, seats []model.Seat) []model.Seat {
	taken, err := tx.ActiveSeats(ctx, screening, seats)
	if err != nil {
		e.log.WithError(err).Warn("re-check after duplicate seat failed", "screening_id", screening.ID)
	}
	if err != nil || len(taken) == 0 {
		taken = append([]model.Seat(nil), seats...)
	}
	model.SortSeats(taken)
	return taken
}

// OccupiedSeats returns the occupancy snapshot for a screening, from the
// cache when one is configured and warm.
func (e *Engine) OccupiedSeats(ctx context.Context, screeningID uint64) (model.SeatSet, error) {
	if e.cache == nil {
		return e.store.OccupiedSeats(ctx, screeningID)
	}
	if seats, ok := e.cache.Get(ctx, screeningID); ok {
		return seats, nil
	}

	// Note the version before reading the store.  If a commit lands in
	// between, its Invalidate moves the version on and our Put is
	// refused instead of caching the older occupancy.
	version, cacheable := e.cache.Version(ctx, screeningID)
	seats, err := e.store.OccupiedSeats(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		e.cache.Put(ctx, screeningID, version, seats)
	}
	return seats, nil
}

// Screening returns a screening by id.
func (e *Engine) Screening(ctx context.Context, id uint64) (*model.Screening, error) {
	return e.store.Screening(ctx, id)
}

// SeatMap returns the screening together with its generated seat map.
func (e *Engine) SeatMap(ctx context.Context, id uint64) (*model.Screening, []seatmap.Cell, error) {
	s, err := e.store.Screening(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	occupied, err := e.OccupiedSeats(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s, seatmap.Generate(seatmap.LayoutOf(s), occupied), nil
}

// Upcoming lists screenings that have not started yet.
func (e *Engine) Upcoming(ctx context.Context, limit int) ([]model.Screening, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return e.store.Upcoming(ctx, e.clock.Now().UTC(), limit)
}

// TicketsForUser lists the user's active tickets.
func (e *Engine) TicketsForUser(ctx context.Context, userID uint64) ([]model.TicketDetail, error) {
	return e.store.TicketsForUser(ctx, userID)
}
