package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// ErrNotFound is returned, wrapped, when a screening or ticket does not
// exist or is not visible to the caller.
var ErrNotFound = errors.New("not found")

// ErrSeatTaken is returned by a Store when an insert collides with the
// unique active-seat constraint.  The engine turns it into a
// SeatConflictError.
var ErrSeatTaken = errors.New("seat already taken")

// ErrCounterUnderflow is returned by a Store when decrementing the
// available-seat counter would take it below zero.
var ErrCounterUnderflow = errors.New("available seat counter underflow")

// ErrSlotTaken is returned when a screening is created in a hall that
// already has one starting at the same time.
var ErrSlotTaken = errors.New("hall already has a screening at that time")

// ErrNameTaken is returned when a film title or hall name is already in
// use.
var ErrNameTaken = errors.New("name already in use")

// ValidationError reports malformed caller input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// SeatConflictError reports seats that already carry an active ticket.
// No ticket from the request was created.
type SeatConflictError struct {
	Seats []model.Seat
}

func (e *SeatConflictError) Error() string {
	parts := make([]string, 0, len(e.Seats))
	for _, s := range e.Seats {
		parts = append(parts, s.Describe())
	}
	return strings.Join(parts, ", ") + " taken"
}

// ConflictingSeats lists the contested seats, row-major.
func (e *SeatConflictError) ConflictingSeats() []model.Seat { return e.Seats }

// IsConflict is always true; it lets callers tell seat conflicts apart
// from other errors that also carry seats.
func (e *SeatConflictError) IsConflict() bool { return true }

// CancellationWindowError is returned when a ticket is cancelled with
// Cutoff or less remaining before the screening starts.
type CancellationWindowError struct {
	StartsAt  time.Time
	Cutoff    time.Duration
	Remaining time.Duration
}

func (e *CancellationWindowError) Error() string {
	return fmt.Sprintf("tickets can only be cancelled more than %s before the screening", formatCutoff(e.Cutoff))
}

func formatCutoff(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}
