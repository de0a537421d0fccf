package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/iliyamo/cinema-booking/internal/authtoken"
	"github.com/iliyamo/cinema-booking/internal/client"
	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/middleware"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/seatmap"
)

var errUsage = errors.New("usage")

const usage = `usage: cinemactl [--api URL] [--token JWT] <command> [args]

commands:
  screenings            list upcoming screenings
  seats <screening>     show the seat map
  book <screening> [row-number ...]
                        hold and buy seats; without seats, read
                        commands from stdin (seat toggles, buy, quit)
  tickets               list your active tickets
  cancel <ticket>       cancel one of your tickets
  token                 mint a local access token from JWT_SECRET
`

type app struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	clock       clock.Clock
	log         *logger.Logger
	getenv      func(string) string

	api *client.Client
}

func (a *app) run(ctx context.Context, args []string) error {
	// The countdown prints from its timer goroutine while the prompt
	// loop prints from this one.
	if _, ok := a.out.(*lockedWriter); !ok {
		a.out = &lockedWriter{w: a.out}
	}
	var apiURL, token string
	fs := pflag.NewFlagSet("cinemactl", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(a.out)
	fs.StringVar(&apiURL, "api", envOr(a.getenv, "CINEMA_API", "http://localhost:8080"), "booking API base URL")
	fs.StringVar(&token, "token", a.getenv("CINEMA_TOKEN"), "bearer token")
	fs.Usage = func() { fmt.Fprint(a.out, usage) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(a.out, usage)
		return errUsage
	}
	a.api = client.New(apiURL, client.WithToken(token))

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "screenings":
		return a.screenings(ctx, cmdArgs)
	case "seats":
		return a.seats(ctx, cmdArgs)
	case "book":
		return a.book(ctx, cmdArgs)
	case "tickets":
		return a.tickets(ctx)
	case "cancel":
		return a.cancel(ctx, cmdArgs)
	case "token":
		return a.token(cmdArgs)
	}
	fmt.Fprintf(a.out, "unknown command %q\n\n%s", cmd, usage)
	return errUsage
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func idArg(args []string, what string) (uint64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing %s id", what)
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, args[0])
	}
	return id, nil
}

func money(cents uint32) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (a *app) screenings(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("screenings", pflag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum screenings to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := a.api.Screenings(ctx, *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILM\tHALL\tSTARTS\tPRICE\tFREE")
	for _, s := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s (%s)\t%s\t%d/%d\n", s.ID, s.Title, s.Hall,
			s.StartsAt.Format("Mon 02 Jan 15:04"), humanize.RelTime(s.StartsAt, a.clock.Now(), "ago", "from now"),
			money(s.PriceCents), s.AvailableSeats, s.Capacity)
	}
	return tw.Flush()
}

func (a *app) seats(ctx context.Context, args []string) error {
	id, err := idArg(args, "screening")
	if err != nil {
		return err
	}
	sc, err := a.api.Screening(ctx, id)
	if err != nil {
		return err
	}
	occupied, err := a.api.OccupiedSeats(ctx, id)
	if err != nil {
		return err
	}
	layout := seatmap.Layout{Rows: sc.Rows, SeatsPerRow: sc.SeatsPerRow}
	cells := seatmap.Generate(layout, occupied)
	fmt.Fprintf(a.out, "%s, %s, %s\n", sc.Title, sc.Hall, sc.StartsAt.Format(time.RFC1123))
	if err := seatmap.Render(a.out, layout, cells, model.NewSeatSet()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d of %d seats free\n", seatmap.FreeCount(cells), layout.Capacity())
	return nil
}

func (a *app) tickets(ctx context.Context) error {
	list, err := a.api.MyTickets(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "no active tickets")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILM\tHALL\tSTARTS\tSEAT\tCODE")
	for _, t := range list {
		starts := ""
		if t.StartsAt != nil {
			starts = t.StartsAt.Format("Mon 02 Jan 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Hall, starts, t.Seat, t.Code)
	}
	return tw.Flush()
}

func (a *app) cancel(ctx context.Context, args []string) error {
	id, err := idArg(args, "ticket")
	if err != nil {
		return err
	}
	res, err := a.api.Cancel(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s seat %s\n", res.Message, res.Ticket.Code, res.Ticket.Seat)
	return nil
}

func (a *app) token(args []string) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	user := fs.Uint64("user", 0, "user id to put in sub")
	role := fs.String("role", middleware.RoleCustomer, "CUSTOMER or ADMIN")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	secret := a.getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	tok, err := authtoken.Issue(secret, *user, *role, *ttl, a.clock.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, tok.Token)
	return nil
}
