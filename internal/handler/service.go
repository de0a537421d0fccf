// Package handler holds the echo handlers of the booking API.  Handlers
// parse and validate requests, call the booking engine and map its
// errors onto HTTP statuses; they hold no booking logic themselves.
package handler

import (
	"context"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/seatmap"
)

// BookingService is the subset of *booking.Engine the handlers use.
type BookingService interface {
	Book(ctx context.Context, req booking.BookRequest) (*booking.Booking, error)
	Cancel(ctx context.Context, ticketID, userID uint64) (*model.Ticket, error)
	OccupiedSeats(ctx context.Context, screeningID uint64) (model.SeatSet, error)
	Screening(ctx context.Context, id uint64) (*model.Screening, error)
	SeatMap(ctx context.Context, id uint64) (*model.Screening, []seatmap.Cell, error)
	Upcoming(ctx context.Context, limit int) ([]model.Screening, error)
	TicketsForUser(ctx context.Context, userID uint64) ([]model.TicketDetail, error)
}

// Catalog adds films, halls and screenings.  Both the MySQL and the
// in-memory store implement it.
type Catalog interface {
	CreateFilm(ctx context.Context, title string, durationMin int) (*model.Film, error)
	CreateHall(ctx context.Context, name string, rows, seatsPerRow int) (*model.Hall, error)
	CreateScreening(ctx context.Context, in model.NewScreening) (*model.Screening, error)
}

var _ BookingService = (*booking.Engine)(nil)
