package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports the reachability of the backing services.
type HealthHandler struct {
	db    Pinger        // nil for the in-memory store
	redis *redis.Client // nil when Redis is disabled
}

// NewHealthHandler accepts nil for either dependency.
func NewHealthHandler(db Pinger, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Health handles GET /healthz.  A down database is 503; a down Redis
// only degrades the service because the cache and rate limiter fail
// open.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	res := HealthResponse{Status: "ok", Database: "memory", Redis: "disabled"}
	code := http.StatusOK
	if h.db != nil {
		res.Database = "up"
		if err := h.db.PingContext(ctx); err != nil {
			res.Database, res.Status, code = "down", "unavailable", http.StatusServiceUnavailable
		}
	}
	if h.redis != nil {
		res.Redis = "up"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			res.Redis = "down"
			if code == http.StatusOK {
				res.Status = "degraded"
			}
		}
	}
	return c.JSON(code, res)
}
