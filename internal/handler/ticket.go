package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/middleware"
)

// TicketHandler serves the authenticated ticket endpoints.  JWTAuth must
// run first.
type TicketHandler struct {
	svc BookingService
	log *logger.Logger
}

// NewTicketHandler panics on a nil service.
func NewTicketHandler(svc BookingService, log *logger.Logger) *TicketHandler {
	if svc == nil {
		panic("nil service passed to NewTicketHandler")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TicketHandler{svc: svc, log: log}
}

// BookRequest is the body of POST /tickets/book.
type BookRequest struct {
	ScreeningID uint64   `json:"screeningId" validate:"required,gt=0"`
	Seats       []string `json:"seats" validate:"required,min=1,max=50"`
}

// Book handles POST /tickets/book.  Seats are re-validated against the
// store inside one transaction; the client's view of occupancy is never
// trusted.
func (h *TicketHandler) Book(c echo.Context) error {
	userID, err := middleware.UserIDFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	b, err := h.svc.Book(c.Request().Context(), booking.BookRequest{
		ScreeningID: req.ScreeningID,
		Seats:       req.Seats,
		UserID:      userID,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	out := BookResponse{
		Message:   "booking confirmed",
		Tickets:   make([]TicketResponse, len(b.Tickets)),
		Screening: b.Screening.Summary(),
	}
	for i, t := range b.Tickets {
		out.Tickets[i] = newTicketResponse(t)
	}
	return c.JSON(http.StatusCreated, out)
}

// Mine handles GET /tickets/my.
func (h *TicketHandler) Mine(c echo.Context) error {
	userID, err := middleware.UserIDFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.svc.TicketsForUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := TicketsResponse{Tickets: make([]TicketResponse, len(list))}
	for i := range list {
		out.Tickets[i] = newTicketDetailResponse(&list[i])
	}
	return c.JSON(http.StatusOK, out)
}

// Cancel handles DELETE /tickets/:id.  Another user's ticket is reported
// as not found.
func (h *TicketHandler) Cancel(c echo.Context) error {
	userID, err := middleware.UserIDFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	t, err := h.svc.Cancel(c.Request().Context(), id, userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, CancelResponse{Message: "ticket cancelled", Ticket: newTicketResponse(t)})
}
