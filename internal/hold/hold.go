// Package hold models a shopper's provisional seat selection and the
// countdown that bounds it.  Nothing here touches the Occupancy Store:
// a Hold only becomes tickets through a booking submission, which is
// re-validated server side.
package hold

import (
	"errors"
	"fmt"
	"sync"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/seatmap"
)

var (
	// ErrReleased is returned when selecting on a hold that expired or
	// was released.
	ErrReleased = errors.New("hold released")
	// ErrSeatReserved is returned when selecting a seat the occupancy
	// snapshot shows as taken.
	ErrSeatReserved = errors.New("seat already reserved")
	// ErrOutsideLayout is returned when selecting a seat the hall does
	// not have.
	ErrOutsideLayout = errors.New("seat outside hall layout")
)

// Hold is a session-scoped selection of seats for one screening.  It is
// safe for concurrent use.
type Hold struct {
	mu          sync.Mutex
	screeningID uint64
	layout      seatmap.Layout
	occupied    model.SeatSet
	selected    model.SeatSet
	released    bool
}

// New returns an empty hold against an occupancy snapshot.
func New(screeningID uint64, layout seatmap.Layout, occupied model.SeatSet) *Hold {
	if occupied == nil {
		occupied = model.NewSeatSet()
	}
	return &Hold{
		screeningID: screeningID,
		layout:      layout,
		occupied:    occupied.Clone(),
		selected:    model.NewSeatSet(),
	}
}

// ScreeningID returns the screening the hold is for.
func (h *Hold) ScreeningID() uint64 { return h.screeningID }

// Layout returns the hall layout the hold validates against.
func (h *Hold) Layout() seatmap.Layout { return h.layout }

// Select adds seat to the hold.  Selecting a seat twice is a no-op.
func (h *Hold) Select(seat model.Seat) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selectLocked(seat)
}

func (h *Hold) selectLocked(seat model.Seat) error {
	switch {
	case h.released:
		return ErrReleased
	case !h.layout.Contains(seat):
		return fmt.Errorf("%w: %s", ErrOutsideLayout, seat)
	case h.occupied.Has(seat):
		return fmt.Errorf("%w: %s", ErrSeatReserved, seat)
	}
	h.selected.Add(seat)
	return nil
}

// Deselect removes seat and reports whether it was held.
func (h *Hold) Deselect(seat model.Seat) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.selected.Has(seat) {
		return false
	}
	h.selected.Remove(seat)
	return true
}

// Toggle selects an unheld seat or deselects a held one.  It reports
// whether the seat is held afterwards.
func (h *Hold) Toggle(seat model.Seat) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.selected.Has(seat) {
		h.selected.Remove(seat)
		return false, nil
	}
	if err := h.selectLocked(seat); err != nil {
		return false, err
	}
	return true, nil
}

// Seats returns the held seats, row-major.
func (h *Hold) Seats() []model.Seat {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selected.Sorted()
}

// Selected returns a copy of the held seats as a set.
func (h *Hold) Selected() model.SeatSet {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selected.Clone()
}

// Wire returns the held seats in wire form, row-major.
func (h *Hold) Wire() []string { return model.SeatStrings(h.Seats()) }

// Len returns the number of held seats.
func (h *Hold) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.selected)
}

// Total is the price of the held seats.
func (h *Hold) Total(priceCents uint32) uint32 {
	return uint32(h.Len()) * priceCents
}

// Refresh swaps in a newer occupancy snapshot and drops held seats it
// shows as taken.  The dropped seats are returned row-major.
func (h *Hold) Refresh(occupied model.SeatSet) []model.Seat {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.occupied = occupied.Clone()
	var dropped []model.Seat
	for s := range h.selected {
		if h.occupied.Has(s) {
			dropped = append(dropped, s)
		}
	}
	for _, s := range dropped {
		h.selected.Remove(s)
	}
	model.SortSeats(dropped)
	return dropped
}

// Drop removes the given seats and marks them reserved in the
// snapshot.  Used after a conflict names seats someone else owns.
func (h *Hold) Drop(seats []model.Seat) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range seats {
		h.selected.Remove(s)
		h.occupied.Add(s)
	}
}

// Release discards every selection and closes the hold.
func (h *Hold) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selected = model.NewSeatSet()
	h.released = true
}

// Occupied returns a copy of the occupancy snapshot, including seats
// dropped after a conflict.
func (h *Hold) Occupied() model.SeatSet {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.occupied.Clone()
}

// Released reports whether Release has been called.
func (h *Hold) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
