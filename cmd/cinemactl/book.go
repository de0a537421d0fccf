package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/iliyamo/cinema-booking/internal/client"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/hold"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/seatmap"
)

// book holds seats under a countdown and buys them.  Seats on the
// command line are held and bought at once; otherwise commands are read
// from stdin until buy succeeds, quit, EOF or expiry.
func (a *app) book(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("book", pflag.ContinueOnError)
	ttl := fs.Duration("ttl", hold.DefaultTTL, "how long the hold lasts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := idArg(fs.Args(), "screening")
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
	s := hold.NewSession(a.clock, *ttl, id, layout, occupied)
	defer s.Close()

	log := a.log.WithFields(map[string]any{"screening_id": id})
	s.Countdown.OnPhase(func(p hold.Phase) {
		switch p {
		case hold.PhaseWarning, hold.PhaseCritical:
			fmt.Fprintf(a.out, "hold %s: %ds left\n", p, s.Countdown.Remaining())
			log.Warn("hold running out", "phase", p.String(), "remaining_s", s.Countdown.Remaining())
		case hold.PhaseExpired:
			fmt.Fprintln(a.out, "hold expired, selection released")
			log.Info("hold expired")
		}
	})
	if err := s.Start(); err != nil {
		return err
	}

	submit := func(ctx context.Context, screeningID uint64, seats []string) error {
		res, err := a.api.Book(ctx, screeningID, seats)
		if err != nil {
			return err
		}
		for _, t := range res.Tickets {
			fmt.Fprintf(a.out, "ticket %d seat %s code %s\n", t.ID, t.Seat, t.Code)
		}
		fmt.Fprintf(a.out, "%s: %d seats, total %s\n", res.Message, len(res.Tickets), money(sum(res.Tickets)))
		log.Info("booked", "seats", seats)
		return nil
	}

	if seats := fs.Args()[1:]; len(seats) > 0 {
		for _, raw := range seats {
			if err := a.toggle(s, raw); err != nil {
				return err
			}
		}
		return a.checkout(ctx, s, submit)
	}
	return a.prompt(ctx, s, sc.PriceCents, submit)
}

func (a *app) toggle(s *hold.Session, raw string) error {
	seat, err := model.ParseSeat(raw)
	if err != nil {
		return err
	}
	held, err := s.Hold.Toggle(seat)
	if err != nil {
		if errors.Is(err, hold.ErrReleased) {
			return hold.ErrExpired
		}
		return err
	}
	if held {
		fmt.Fprintf(a.out, "held %s\n", seat.Describe())
	} else {
		fmt.Fprintf(a.out, "released %s\n", seat.Describe())
	}
	return nil
}

// checkout reports a conflict with the seats that are still held so the
// user can buy those or pick others.
func (a *app) checkout(ctx context.Context, s *hold.Session, submit hold.Submitter) error {
	err := s.Checkout(ctx, submit)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.IsConflict() {
		taken := model.SeatStrings(apiErr.ConflictingSeats())
		fmt.Fprintf(a.out, "taken by someone else: %s\n", strings.Join(taken, ", "))
		if left := s.Hold.Wire(); len(left) > 0 {
			fmt.Fprintf(a.out, "still held: %s\n", strings.Join(left, ", "))
		}
	}
	return err
}

func (a *app) prompt(ctx context.Context, s *hold.Session, price uint32, submit hold.Submitter) error {
	if a.interactive {
		fmt.Fprintf(a.out, "enter seats as row-number to toggle; map, buy or quit. Hold lasts %s.\n",
			time.Duration(s.Countdown.Remaining())*time.Second)
	}
	sc := bufio.NewScanner(a.in)
	for {
		if a.interactive {
			fmt.Fprintf(a.out, "[%d held, %s, %ds] > ", s.Hold.Len(), money(s.Hold.Total(price)), s.Countdown.Remaining())
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "quit", "q":
			return nil
		case "map":
			cells := seatmap.Generate(s.Hold.Layout(), s.Hold.Occupied())
			if err := seatmap.Render(a.out, s.Hold.Layout(), cells, s.Hold.Selected()); err != nil {
				return err
			}
			continue
		case "buy":
			err := a.checkout(ctx, s, submit)
			var apiErr *client.APIError
			switch {
			case err == nil:
				return nil
			case errors.As(err, &apiErr) && apiErr.IsConflict():
				continue
			case errors.Is(err, hold.ErrEmptyHold):
				fmt.Fprintln(a.out, err)
				continue
			}
			return err
		}
		if err := a.toggle(s, line); err != nil {
			if errors.Is(err, hold.ErrExpired) {
				return err
			}
			fmt.Fprintln(a.out, err)
		}
	}
}

func sum(tickets []handler.TicketResponse) uint32 {
	var total uint32
	for _, t := range tickets {
		total += t.PriceCents
	}
	return total
}
