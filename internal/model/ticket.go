package model

import "time"

// TicketStatus is the lifecycle state of a ticket.  Tickets are never
// deleted; cancellation flips the status.
type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketCancelled TicketStatus = "cancelled"
)

// IsValid reports whether the status is one the schema accepts.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketActive, TicketCancelled:
		return true
	}
	return false
}

// IsActive reports whether the ticket still occupies its seat.
func (s TicketStatus) IsActive() bool { return s == TicketActive }

func (s TicketStatus) String() string { return string(s) }

// Ticket is the durable record that a seat is committed to a user for
// a screening.  FilmID, HallID and SessionStart are copied from the
// screening so the active-seat uniqueness holds at the schema level.
//
// Fields:
//
//	ID           – primary key identifier.
//	UserID       – owning user (JWT subject).
//	ScreeningID  – screening the seat belongs to.
//	FilmID       – screenings.film_id at booking time.
//	HallID       – screenings.hall_id at booking time.
//	SessionStart – screenings.starts_at at booking time.
//	Seat         – row and number.
//	PriceCents   – price charged.
//	Status       – active or cancelled.
//	Code         – unique machine-readable ticket code.
//	CreatedAt    – booking time.
//	CancelledAt  – set when Status is cancelled.
type Ticket struct {
	ID           uint64       // tickets.id
	UserID       uint64       // tickets.user_id
	ScreeningID  uint64       // tickets.screening_id
	FilmID       uint64       // tickets.film_id
	HallID       uint64       // tickets.hall_id
	SessionStart time.Time    // tickets.session_start
	Seat         Seat         // tickets.seat_row, tickets.seat_number
	PriceCents   uint32       // tickets.price_cents
	Status       TicketStatus // tickets.status
	Code         string       // tickets.code
	CreatedAt    time.Time    // tickets.created_at
	CancelledAt  *time.Time   // tickets.cancelled_at (nullable)
}

// TicketDetail is a ticket joined with the screening fields shown in a
// user's ticket list.
type TicketDetail struct {
	Ticket
	FilmTitle string
	HallName  string
}
