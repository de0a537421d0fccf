// Command migrate applies the embedded schema to MySQL and optionally
// seeds the demo screening.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/database"
	"github.com/iliyamo/cinema-booking/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		seed    bool
		timeout time.Duration
	)
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	fs.BoolVar(&seed, "seed", false, "insert the demo film, hall and screening")
	fs.DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	config.LoadDotEnv()
	log := logger.New(os.Getenv("LOG_LEVEL"), "text").WithComponent("migrate")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := database.Open(ctx, config.LoadDatabase())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		return err
	}
	for _, name := range applied {
		log.Info("applied", "migration", name)
	}

	if seed {
		id, err := database.Seed(ctx, db, time.Now())
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info("seeded demo screening", "screening_id", id)
	}
	return nil
}
