package memstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
)

var errTxDone = errors.New("memstore: transaction already committed or rolled back")

// tx buffers writes and applies them on Commit.  Locks taken through
// LockScreening or LockTicket are held until Commit or Rollback.
type tx struct {
	store    *Store
	held     map[uint64]chan struct{}
	inserted []model.Ticket
	cancels  map[uint64]time.Time
	deltas   map[uint64]int
	done     bool
}

func (t *tx) acquire(ctx context.Context, screeningID uint64) error {
	if _, ok := t.held[screeningID]; ok {
		return nil
	}
	t.store.mu.Lock()
	l := t.store.lockFor(screeningID)
	t.store.mu.Unlock()
	select {
	case l <- struct{}{}:
		t.held[screeningID] = l
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *tx) release() {
	for id, l := range t.held {
		<-l
		delete(t.held, id)
	}
}

func (t *tx) LockScreening(ctx context.Context, id uint64) (*model.Screening, error) {
	if t.done {
		return nil, errTxDone
	}
	if _, err := t.store.Screening(ctx, id); err != nil {
		return nil, err
	}
	if err := t.acquire(ctx, id); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	sc := t.store.screenings[id]
	sc.AvailableSeats += t.deltas[id]
	return &sc, nil
}

func (t *tx) pendingKeys() map[seatKey]bool {
	keys := make(map[seatKey]bool, len(t.inserted))
	for i := range t.inserted {
		keys[keyFor(&t.inserted[i])] = true
	}
	return keys
}

func (t *tx) ActiveSeats(_ context.Context, sc *model.Screening, seats []model.Seat) ([]model.Seat, error) {
	if t.done {
		return nil, errTxDone
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	pending := t.pendingKeys()
	var taken []model.Seat
	for _, seat := range seats {
		k := seatKey{filmID: sc.FilmID, hallID: sc.HallID, start: sc.StartsAt.UnixNano(), seat: seat}
		if _, ok := t.store.active[k]; ok || pending[k] {
			taken = append(taken, seat)
		}
	}
	return taken, nil
}

func (t *tx) InsertTickets(_ context.Context, tickets []*model.Ticket) error {
	if t.done {
		return errTxDone
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	pending := t.pendingKeys()
	for _, tk := range tickets {
		k := keyFor(tk)
		if _, ok := t.store.active[k]; ok || pending[k] {
			return fmt.Errorf("seat %s: %w", tk.Seat, booking.ErrSeatTaken)
		}
		pending[k] = true
	}
	for _, tk := range tickets {
		tk.ID = t.store.id("tickets")
		tk.CreatedAt = t.store.now()
		t.inserted = append(t.inserted, *tk)
	}
	return nil
}

func (t *tx) AdjustAvailable(_ context.Context, screeningID uint64, delta int) error {
	if t.done {
		return errTxDone
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	sc, ok := t.store.screenings[screeningID]
	if !ok {
		return fmt.Errorf("screening %d: %w", screeningID, booking.ErrNotFound)
	}
	if t.deltas == nil {
		t.deltas = make(map[uint64]int)
	}
	if sc.AvailableSeats+t.deltas[screeningID]+delta < 0 {
		return booking.ErrCounterUnderflow
	}
	t.deltas[screeningID] += delta
	return nil
}

// ticket reads the committed ticket with this tx's pending cancellation
// applied.  Must be called with store.mu held.
func (t *tx) ticket(id uint64) (*model.Ticket, error) {
	tk, ok := t.store.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, booking.ErrNotFound)
	}
	if at, ok := t.cancels[id]; ok {
		tk.Status = model.TicketCancelled
		tk.CancelledAt = &at
	}
	return &tk, nil
}

func (t *tx) Ticket(_ context.Context, id uint64) (*model.Ticket, error) {
	if t.done {
		return nil, errTxDone
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.ticket(id)
}

func (t *tx) LockTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	tk, err := t.Ticket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.acquire(ctx, tk.ScreeningID); err != nil {
		return nil, err
	}
	return t.Ticket(ctx, id)
}

func (t *tx) CancelTicket(_ context.Context, id uint64, at time.Time) error {
	if t.done {
		return errTxDone
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	tk, err := t.ticket(id)
	if err != nil {
		return err
	}
	if !tk.Status.IsActive() {
		return fmt.Errorf("ticket %d: %w", id, booking.ErrNotFound)
	}
	if t.cancels == nil {
		t.cancels = make(map[uint64]time.Time)
	}
	t.cancels[id] = at.UTC()
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	defer t.release()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tk := range t.inserted {
		s.tickets[tk.ID] = tk
		s.active[keyFor(&tk)] = tk.ID
	}
	for id, at := range t.cancels {
		tk := s.tickets[id]
		cancelledAt := at
		tk.Status = model.TicketCancelled
		tk.CancelledAt = &cancelledAt
		s.tickets[id] = tk
		delete(s.active, keyFor(&tk))
	}
	for id, d := range t.deltas {
		sc := s.screenings[id]
		sc.AvailableSeats += d
		s.screenings[id] = sc
	}
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.release()
	return nil
}
