package model

import "time"

// Hall is a screening room with a fixed rectangular seat grid.  The
// layout is immutable once screenings reference the hall.
type Hall struct {
	ID          uint64    // halls.id
	Name        string    // halls.name
	Rows        int       // halls.seat_rows
	SeatsPerRow int       // halls.seats_per_row
	CreatedAt   time.Time // halls.created_at
}

// Capacity is rows × seats per row.
func (h *Hall) Capacity() int { return h.Rows * h.SeatsPerRow }

// Film is the minimal catalogue entry a screening points at.
type Film struct {
	ID          uint64    // films.id
	Title       string    // films.title
	DurationMin int       // films.duration_min
	CreatedAt   time.Time // films.created_at
}
