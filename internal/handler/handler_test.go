package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/model"
)

func TestRequestValidatorMessages(t *testing.T) {
	v := NewRequestValidator()

	err := v.Validate(&BookRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screeningId is required")
	assert.Contains(t, err.Error(), "seats is required")

	err = v.Validate(&BookRequest{ScreeningID: 1, Seats: []string{}})
	require.Error(t, err)
	assert.Equal(t, "seats must have at least 1 entries", err.Error())

	assert.NoError(t, v.Validate(&BookRequest{ScreeningID: 1, Seats: []string{"1-1"}}))
	assert.NoError(t, v.Validate(&CreateScreeningRequest{FilmID: 1, HallID: 1, StartsAt: time.Now()}))
}

func TestRequestValidatorCatalogMessages(t *testing.T) {
	v := NewRequestValidator()

	err := v.Validate(&CreateHallRequest{Name: "Hall 9", Rows: 0, SeatsPerRow: 101})
	require.Error(t, err)
	assert.Equal(t, "rows is required; seatsPerRow must be at most 100", err.Error())

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	err = v.Validate(&CreateFilmRequest{Title: string(long)})
	require.Error(t, err)
	assert.Equal(t, "title must have at most 255 characters", err.Error())
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"conflict", &booking.SeatConflictError{Seats: []model.Seat{{Row: 3, Number: 5}}}, http.StatusConflict},
		{"validation", fmt.Errorf("wrapped: %w", &booking.ValidationError{Reason: "no seats"}), http.StatusBadRequest},
		{"window", &booking.CancellationWindowError{Cutoff: 2 * time.Hour}, http.StatusBadRequest},
		{"not found", fmt.Errorf("ticket 4: %w", booking.ErrNotFound), http.StatusNotFound},
		{"slot", booking.ErrSlotTaken, http.StatusConflict},
		{"name taken", fmt.Errorf("hall \"Hall 1\": %w", booking.ErrNameTaken), http.StatusConflict},
		{"infrastructure", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, respondError(c, logger.NewWithWriter(&buf, "info", "json"), tc.err))
			assert.Equal(t, tc.code, rec.Code)
			if tc.code == http.StatusInternalServerError {
				assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
				assert.Contains(t, buf.String(), "connection reset")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestHealthReportsDatabaseDown(t *testing.T) {
	h := NewHealthHandler(pingerFunc(func() error { return errors.New("down") }), nil)
	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, h.Health(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","database":"down","redis":"disabled"}`, rec.Body.String())
}

type pingerFunc func() error

func (f pingerFunc) PingContext(context.Context) error { return f() }
