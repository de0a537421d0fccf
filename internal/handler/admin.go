package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// AdminHandler serves endpoints restricted to the ADMIN role.
type AdminHandler struct {
	catalog Catalog
	clock   clock.Clock
	log     *logger.Logger
}

// NewAdminHandler panics on a nil catalog.
func NewAdminHandler(catalog Catalog, clk clock.Clock, log *logger.Logger) *AdminHandler {
	if catalog == nil {
		panic("nil catalog passed to NewAdminHandler")
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AdminHandler{catalog: catalog, clock: clk, log: log}
}

// CreateFilmRequest is the body of POST /admin/films.
type CreateFilmRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	DurationMin int    `json:"durationMin" validate:"gte=0,lte=1000"`
}

// CreateHallRequest is the body of POST /admin/halls.  A hall's layout
// cannot change once created.
type CreateHallRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Rows        int    `json:"rows" validate:"required,gt=0,lte=100"`
	SeatsPerRow int    `json:"seatsPerRow" validate:"required,gt=0,lte=100"`
}

// FilmResponse is a created film.
type FilmResponse struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	DurationMin int    `json:"durationMin"`
}

// HallResponse is a created hall.
type HallResponse struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Rows        int    `json:"rows"`
	SeatsPerRow int    `json:"seatsPerRow"`
	Capacity    int    `json:"capacity"`
}

// CreateFilm handles POST /admin/films.  Titles are unique.
func (h *AdminHandler) CreateFilm(c echo.Context) error {
	var req CreateFilmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	f, err := h.catalog.CreateFilm(c.Request().Context(), strings.TrimSpace(req.Title), req.DurationMin)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.log.Info("film created", "film_id", f.ID, "title", f.Title)
	return c.JSON(http.StatusCreated, FilmResponse{ID: f.ID, Title: f.Title, DurationMin: f.DurationMin})
}

// CreateHall handles POST /admin/halls.  Names are unique.
func (h *AdminHandler) CreateHall(c echo.Context) error {
	var req CreateHallRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	hall, err := h.catalog.CreateHall(c.Request().Context(), strings.TrimSpace(req.Name), req.Rows, req.SeatsPerRow)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.log.Info("hall created", "hall_id", hall.ID, "name", hall.Name, "capacity", hall.Capacity())
	return c.JSON(http.StatusCreated, HallResponse{
		ID: hall.ID, Name: hall.Name, Rows: hall.Rows, SeatsPerRow: hall.SeatsPerRow, Capacity: hall.Capacity(),
	})
}

// CreateScreeningRequest is the body of POST /admin/screenings.
type CreateScreeningRequest struct {
	FilmID     uint64    `json:"filmId" validate:"required,gt=0"`
	HallID     uint64    `json:"hallId" validate:"required,gt=0"`
	StartsAt   time.Time `json:"startsAt" validate:"required"`
	PriceCents uint32    `json:"priceCents"`
}

// CreateScreening handles POST /admin/screenings.  The new screening's
// available seats start at the hall's capacity.
func (h *AdminHandler) CreateScreening(c echo.Context) error {
	var req CreateScreeningRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !req.StartsAt.After(h.clock.Now()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "startsAt must be in the future"})
	}

	s, err := h.catalog.CreateScreening(c.Request().Context(), model.NewScreening{
		FilmID:     req.FilmID,
		HallID:     req.HallID,
		StartsAt:   req.StartsAt.UTC(),
		PriceCents: req.PriceCents,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.log.Info("screening created", "screening_id", s.ID, "film_id", s.FilmID, "hall_id", s.HallID,
		"starts_at", s.StartsAt, "capacity", s.Capacity())
	return c.JSON(http.StatusCreated, newScreeningResponse(s))
}
