package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/logger"
)

// ScreeningHandler serves the public, read-only screening endpoints.
type ScreeningHandler struct {
	svc BookingService
	log *logger.Logger
}

// NewScreeningHandler panics on a nil service.
func NewScreeningHandler(svc BookingService, log *logger.Logger) *ScreeningHandler {
	if svc == nil {
		panic("nil service passed to NewScreeningHandler")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ScreeningHandler{svc: svc, log: log}
}

// List handles GET /screenings?limit=N.
func (h *ScreeningHandler) List(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		limit = n
	}
	list, err := h.svc.Upcoming(c.Request().Context(), limit)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]ScreeningResponse, len(list))
	for i := range list {
		out[i] = newScreeningResponse(&list[i])
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /screenings/:id.
func (h *ScreeningHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	s, err := h.svc.Screening(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newScreeningResponse(s))
}

// Seats handles GET /screenings/:id/seats, the occupancy snapshot.
func (h *ScreeningHandler) Seats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	occupied, err := h.svc.OccupiedSeats(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, SeatsResponse{OccupiedSeats: occupied.Strings()})
}

// SeatMap handles GET /screenings/:id/seatmap.
func (h *ScreeningHandler) SeatMap(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	s, cells, err := h.svc.SeatMap(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newSeatMapResponse(s, cells))
}
