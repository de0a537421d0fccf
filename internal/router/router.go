// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/middleware"
)

// Deps are the collaborators the routes need.  RateLimit may be nil.
type Deps struct {
	JWTSecret string
	Service   handler.BookingService
	Catalog   handler.Catalog
	Health    *handler.HealthHandler
	RateLimit echo.MiddlewareFunc
	Clock     clock.Clock
	Log       *logger.Logger
}

// New returns an echo instance with the common middleware stack and
// every route registered.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())
	RegisterRoutes(e, d)
	return e
}

// RegisterRoutes registers the public, customer and admin routes.
func RegisterRoutes(e *echo.Echo, d Deps) {
	if d.Health == nil {
		d.Health = handler.NewHealthHandler(nil, nil)
	}
	e.GET("/healthz", d.Health.Health)

	screenings := handler.NewScreeningHandler(d.Service, d.Log)
	e.GET("/screenings", screenings.List)
	e.GET("/screenings/:id", screenings.Get)
	e.GET("/screenings/:id/seats", screenings.Seats)
	e.GET("/screenings/:id/seatmap", screenings.SeatMap)

	auth := middleware.JWTAuth(d.JWTSecret)

	tickets := handler.NewTicketHandler(d.Service, d.Log)
	t := e.Group("/tickets", auth, middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin))
	bookMW := []echo.MiddlewareFunc{}
	if d.RateLimit != nil {
		bookMW = append(bookMW, d.RateLimit)
	}
	t.POST("/book", tickets.Book, bookMW...)
	t.GET("/my", tickets.Mine)
	t.DELETE("/:id", tickets.Cancel)

	if d.Catalog != nil {
		admin := handler.NewAdminHandler(d.Catalog, d.Clock, d.Log)
		a := e.Group("/admin", auth, middleware.RequireRole(middleware.RoleAdmin))
		a.POST("/films", admin.CreateFilm)
		a.POST("/halls", admin.CreateHall)
		a.POST("/screenings", admin.CreateScreening)
	}
}
