// Package events carries ticket lifecycle events over RabbitMQ.  The
// engine publishes after commit; the audit consumer appends one line per
// event to a log file.  Delivery is best effort and never affects the
// outcome of a booking or a cancellation.
package events

import (
	"time"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// Event types.
const (
	TypeBooked    = "ticket.booked"
	TypeCancelled = "ticket.cancelled"
)

// TicketEvent is the message body for both event types.
type TicketEvent struct {
	Type        string   `json:"type"`
	UserID      uint64   `json:"user_id"`
	ScreeningID uint64   `json:"screening_id"`
	FilmTitle   string   `json:"film_title"`
	HallName    string   `json:"hall_name"`
	StartsAt    string   `json:"starts_at"`
	TicketIDs   []uint64 `json:"ticket_ids"`
	Seats       []string `json:"seats"`
	TotalCents  uint32   `json:"total_cents"`
	OccurredAt  string   `json:"occurred_at"`
}

// Booked describes a committed booking.
func Booked(b *booking.Booking, at time.Time) TicketEvent {
	ev := TicketEvent{
		Type:       TypeBooked,
		OccurredAt: at.UTC().Format(time.RFC3339),
		Seats:      model.SeatStrings(b.Seats()),
	}
	fillScreening(&ev, b.Screening)
	for _, t := range b.Tickets {
		ev.UserID = t.UserID
		ev.TicketIDs = append(ev.TicketIDs, t.ID)
		ev.TotalCents += t.PriceCents
	}
	return ev
}

// Cancelled describes a committed cancellation.
func Cancelled(t *model.Ticket, s *model.Screening, at time.Time) TicketEvent {
	ev := TicketEvent{
		Type:       TypeCancelled,
		UserID:     t.UserID,
		TicketIDs:  []uint64{t.ID},
		Seats:      []string{t.Seat.String()},
		TotalCents: t.PriceCents,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
	fillScreening(&ev, s)
	return ev
}

func fillScreening(ev *TicketEvent, s *model.Screening) {
	if s == nil {
		return
	}
	ev.ScreeningID = s.ID
	ev.FilmTitle = s.FilmTitle
	ev.HallName = s.HallName
	ev.StartsAt = s.StartsAt.UTC().Format(time.RFC3339)
}
