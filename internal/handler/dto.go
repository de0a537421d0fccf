package handler

import (
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/seatmap"
)

// ScreeningResponse is the public view of a screening.
type ScreeningResponse struct {
	ID             uint64    `json:"id"`
	FilmID         uint64    `json:"filmId"`
	Title          string    `json:"title"`
	HallID         uint64    `json:"hallId"`
	Hall           string    `json:"hall"`
	StartsAt       time.Time `json:"startsAt"`
	PriceCents     uint32    `json:"priceCents"`
	Rows           int       `json:"rows"`
	SeatsPerRow    int       `json:"seatsPerRow"`
	Capacity       int       `json:"capacity"`
	AvailableSeats int       `json:"availableSeats"`
}

func newScreeningResponse(s *model.Screening) ScreeningResponse {
	return ScreeningResponse{
		ID:             s.ID,
		FilmID:         s.FilmID,
		Title:          s.FilmTitle,
		HallID:         s.HallID,
		Hall:           s.HallName,
		StartsAt:       s.StartsAt.UTC(),
		PriceCents:     s.PriceCents,
		Rows:           s.Rows,
		SeatsPerRow:    s.SeatsPerRow,
		Capacity:       s.Capacity(),
		AvailableSeats: s.AvailableSeats,
	}
}

// TicketResponse describes one ticket.  Title, Hall and StartsAt are
// filled in ticket listings.
type TicketResponse struct {
	ID          uint64     `json:"id"`
	ScreeningID uint64     `json:"screeningId"`
	Seat        string     `json:"seat"`
	Row         int        `json:"row"`
	Number      int        `json:"number"`
	PriceCents  uint32     `json:"priceCents"`
	Status      string     `json:"status"`
	Code        string     `json:"code"`
	CreatedAt   time.Time  `json:"createdAt"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	Title       string     `json:"title,omitempty"`
	Hall        string     `json:"hall,omitempty"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
}

func newTicketResponse(t *model.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		ScreeningID: t.ScreeningID,
		Seat:        t.Seat.String(),
		Row:         t.Seat.Row,
		Number:      t.Seat.Number,
		PriceCents:  t.PriceCents,
		Status:      t.Status.String(),
		Code:        t.Code,
		CreatedAt:   t.CreatedAt,
		CancelledAt: t.CancelledAt,
	}
}

func newTicketDetailResponse(d *model.TicketDetail) TicketResponse {
	r := newTicketResponse(&d.Ticket)
	start := d.SessionStart.UTC()
	r.Title, r.Hall, r.StartsAt = d.FilmTitle, d.HallName, &start
	return r
}

// BookResponse is returned with 201 by POST /tickets/book.
type BookResponse struct {
	Message   string           `json:"message"`
	Tickets   []TicketResponse `json:"tickets"`
	Screening model.Summary    `json:"screening"`
}

// TicketsResponse is returned by GET /tickets/my.  Tickets is never null.
type TicketsResponse struct {
	Tickets []TicketResponse `json:"tickets"`
}

// CancelResponse is returned by DELETE /tickets/:id.
type CancelResponse struct {
	Message string         `json:"message"`
	Ticket  TicketResponse `json:"ticket"`
}

// SeatsResponse is the occupancy snapshot.
type SeatsResponse struct {
	OccupiedSeats []string `json:"occupiedSeats"`
}

// SeatCell is one entry of a seat map.
type SeatCell struct {
	Seat   string `json:"seat"`
	Row    int    `json:"row"`
	Number int    `json:"number"`
	State  string `json:"state"`
}

// SeatMapResponse is the full seat map of a screening.
type SeatMapResponse struct {
	Screening   ScreeningResponse `json:"screening"`
	Rows        int               `json:"rows"`
	SeatsPerRow int               `json:"seatsPerRow"`
	Seats       []SeatCell        `json:"seats"`
}

func newSeatMapResponse(s *model.Screening, cells []seatmap.Cell) SeatMapResponse {
	out := SeatMapResponse{
		Screening:   newScreeningResponse(s),
		Rows:        s.Rows,
		SeatsPerRow: s.SeatsPerRow,
		Seats:       make([]SeatCell, len(cells)),
	}
	for i, c := range cells {
		out.Seats[i] = SeatCell{Seat: c.Seat.String(), Row: c.Seat.Row, Number: c.Seat.Number, State: string(c.State)}
	}
	return out
}

// ErrorResponse is the body of every non-2xx reply.  Seats is set on
// seat conflicts only.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Seats   []string `json:"seats,omitempty"`
}
