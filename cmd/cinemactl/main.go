// Command cinemactl is a terminal client for the booking API.  It
// browses screenings, holds seats under the checkout countdown and buys
// or cancels tickets.
//
//	cinemactl token --user 7
//	cinemactl --token $TOKEN book 1 3-5 3-6
//	cinemactl --token $TOKEN book 1        # pick seats interactively
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/term"

	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/logger"
)

func main() {
	config.LoadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{
		in:          os.Stdin,
		out:         &lockedWriter{w: os.Stdout},
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		clock:       clock.Real(),
		log:         commandLogger(os.Stderr),
		getenv:      os.Getenv,
	}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// commandLogger writes text records to a terminal and JSON otherwise.
func commandLogger(w *os.File) *logger.Logger {
	format := "json"
	if term.IsTerminal(int(w.Fd())) {
		format = "text"
	}
	return logger.NewWithWriter(w, os.Getenv("LOG_LEVEL"), format)
}

// lockedWriter serialises writes from the prompt loop and the
// countdown's timer goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
