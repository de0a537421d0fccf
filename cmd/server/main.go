// Command server runs the booking HTTP API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/cache"
	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/database"
	"github.com/iliyamo/cinema-booking/internal/events"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/memstore"
	"github.com/iliyamo/cinema-booking/internal/middleware"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/router"
)

const shutdownTimeout = 10 * time.Second

// backend is the store picked by STORE_DRIVER.
type backend interface {
	booking.Store
	handler.Catalog
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	opts := []booking.Option{
		booking.WithClock(clock.Real()),
		booking.WithCancelCutoff(cfg.Booking.CancelCutoff),
		booking.WithLogger(log.WithComponent("booking")),
	}
	if cc := config.LoadOccupancyCacheConfig(); cc.Enabled && rdb != nil {
		opts = append(opts, booking.WithCache(cache.NewOccupancy(rdb, cc.TTL, cc.Prefix, log.WithComponent("cache"))))
	}

	g, gctx := errgroup.WithContext(ctx)

	evCfg := config.LoadEventsConfig()
	if evCfg.Enabled {
		pub := events.NewPublisher(evCfg, log.WithComponent("publisher"))
		opts = append(opts, booking.WithNotifier(pub))
		g.Go(func() error {
			pub.Run(gctx)
			return nil
		})
		if evCfg.ConsumerEnabled {
			consumer := events.NewConsumer(evCfg, log.WithComponent("consumer"))
			g.Go(func() error {
				if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
	}

	rlCfg := config.LoadRateLimitConfig()
	rateLimit := middleware.NewMemoryLimiter(rlCfg)
	if rdb != nil {
		rateLimit = middleware.NewTokenBucket(rlCfg, rdb, log.WithComponent("ratelimit"))
	}

	engine := booking.NewEngine(store, opts...)
	e := router.New(router.Deps{
		JWTSecret: cfg.JWTSecret,
		Service:   engine,
		Catalog:   store,
		Health:    handler.NewHealthHandler(pinger(db), rdb),
		RateLimit: rateLimit,
		Clock:     clock.Real(),
		Log:       log,
	})

	addr := ":" + cfg.Port
	g.Go(func() error {
		log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.Booking.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *logger.Logger) (backend, *sql.DB, error) {
	if cfg.Booking.StoreDriver == config.DriverMemory {
		st := memstore.New()
		sc, err := st.SeedDemo(time.Now())
		if err != nil {
			return nil, nil, err
		}
		log.Info("memory store seeded", "screening_id", sc.ID, "starts_at", sc.StartsAt)
		return st, nil, nil
	}
	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewStore(db), db, nil
}

// pinger avoids handing HealthHandler a typed nil.
func pinger(db *sql.DB) handler.Pinger {
	if db == nil {
		return nil
	}
	return db
}
