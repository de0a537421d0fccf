package hold

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/seatmap"
)

var (
	// ErrExpired is returned by Checkout once the countdown ran out.
	ErrExpired = errors.New("hold expired; reload the seat map and start again")
	// ErrEmptyHold is returned by Checkout with nothing selected.
	ErrEmptyHold = errors.New("no seats selected")
	// ErrCompleted is returned by Checkout after a successful purchase.
	ErrCompleted = errors.New("hold already checked out")
)

// Submitter sends a purchase for the held seats.  Errors that report
// IsConflict() are treated as seat conflicts and their
// ConflictingSeats() are dropped from the hold.
type Submitter func(ctx context.Context, screeningID uint64, seats []string) error

type conflicter interface {
	IsConflict() bool
	ConflictingSeats() []model.Seat
}

// Session ties a Hold to its Countdown.  When the countdown expires the
// hold is released and every selection is lost.
type Session struct {
	Hold      *Hold
	Countdown *Countdown

	mu        sync.Mutex
	completed bool
}

// NewSession builds a hold and a countdown of ttl on clk.  Call Start
// once the seat map is shown.
func NewSession(clk clock.Clock, ttl time.Duration, screeningID uint64, layout seatmap.Layout, occupied model.SeatSet) *Session {
	s := &Session{
		Hold:      New(screeningID, layout, occupied),
		Countdown: NewCountdown(clk, ttl),
	}
	s.Countdown.OnExpire(s.Hold.Release)
	return s
}

// Start starts the countdown.
func (s *Session) Start() error { return s.Countdown.Start() }

// Checkout submits the held seats.  On success the countdown stops and
// the hold closes.  On a seat conflict the contested seats are dropped
// so the rest of the selection can be resubmitted; nothing is retried
// automatically.
func (s *Session) Checkout(ctx context.Context, submit Submitter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrCompleted
	}
	if s.Hold.Released() || s.Countdown.Expired() {
		return ErrExpired
	}
	seats := s.Hold.Wire()
	if len(seats) == 0 {
		return ErrEmptyHold
	}
	if err := submit(ctx, s.Hold.ScreeningID(), seats); err != nil {
		var c conflicter
		if errors.As(err, &c) && c.IsConflict() {
			s.Hold.Drop(c.ConflictingSeats())
		}
		return err
	}
	s.completed = true
	s.Countdown.Stop()
	s.Hold.Release()
	return nil
}

// Close tears the session down: the countdown stops and the hold is
// released.
func (s *Session) Close() {
	s.Countdown.Stop()
	s.Hold.Release()
}
