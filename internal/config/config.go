// Package config loads runtime configuration from the environment.  A
// .env file in the working directory is read first when present.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-booking/internal/database"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds the values every process needs.
type Config struct {
	Env       string // APP_ENV, e.g. dev or prod
	Port      string // APP_PORT
	JWTSecret string // JWT_SECRET, verifies access tokens
	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT, json or text

	Booking BookingConfig
	DB      database.Options // only filled for the mysql driver
}

// Load reads the .env file if any and then the environment.  Missing
// required variables are fatal.  The database variables are required
// only when STORE_DRIVER is mysql.
func Load() Config {
	LoadDotEnv()
	c := Config{
		Env:       envStr("APP_ENV", "dev"),
		Port:      envStr("APP_PORT", "8080"),
		JWTSecret: must("JWT_SECRET"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),
		Booking:   LoadBookingConfig(),
	}
	if c.Booking.StoreDriver == DriverMySQL {
		c.DB = LoadDatabase()
	}
	return c
}

// LoadDotEnv loads .env into the environment without overriding
// variables that are already set.  A missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: reading .env: %v", err)
	}
}

// LoadDatabase reads the MySQL connection settings.
func LoadDatabase() database.Options {
	return database.Options{
		User:            must("DB_USER"),
		Pass:            os.Getenv("DB_PASS"), // empty allowed
		Host:            must("DB_HOST"),
		Port:            envStr("DB_PORT", "3306"),
		Name:            must("DB_NAME"),
		MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 0),
		ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 0),
	}
}

// BookingConfig tunes the booking engine and the hold countdown.
type BookingConfig struct {
	StoreDriver  string
	HoldTTL      time.Duration
	CancelCutoff time.Duration
}

// LoadBookingConfig reads STORE_DRIVER, HOLD_TTL and CANCEL_CUTOFF.  An
// unknown driver is fatal.
func LoadBookingConfig() BookingConfig {
	c, err := parseBookingConfig()
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func parseBookingConfig() (BookingConfig, error) {
	c := BookingConfig{
		StoreDriver:  envStr("STORE_DRIVER", DriverMySQL),
		HoldTTL:      envDur("HOLD_TTL", 15*time.Minute),
		CancelCutoff: envDur("CANCEL_CUTOFF", 2*time.Hour),
	}
	switch c.StoreDriver {
	case DriverMySQL, DriverMemory:
	default:
		return c, fmt.Errorf("config: STORE_DRIVER must be %q or %q, got %q", DriverMySQL, DriverMemory, c.StoreDriver)
	}
	if c.HoldTTL <= 0 {
		return c, fmt.Errorf("config: HOLD_TTL must be positive, got %s", c.HoldTTL)
	}
	if c.CancelCutoff < 0 {
		return c, fmt.Errorf("config: CANCEL_CUTOFF must not be negative, got %s", c.CancelCutoff)
	}
	return c, nil
}

// must retrieves a required variable and exits when it is unset.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
