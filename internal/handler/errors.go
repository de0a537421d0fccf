package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/logger"
)

// respondError maps engine errors onto statuses.  Anything unrecognised
// is logged and reported as a generic 500.
func respondError(c echo.Context, log *logger.Logger, err error) error {
	var (
		verr     *booking.ValidationError
		conflict *booking.SeatConflictError
		window   *booking.CancellationWindowError
	)
	switch {
	case errors.As(err, &conflict):
		seats := make([]string, len(conflict.Seats))
		for i, s := range conflict.Seats {
			seats[i] = s.String()
		}
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "seat_conflict", Message: conflict.Error(), Seats: seats})
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error()})
	case errors.As(err, &window):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cancellation_window_closed", "message": window.Error()})
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrSlotTaken), errors.Is(err, booking.ErrNameTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	log.WithRequestID(c.Response().Header().Get(echo.HeaderXRequestID)).
		WithError(err).Error("request failed", "path", c.Path())
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
