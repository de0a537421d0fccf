package logger

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// LogBooked records a committed booking.
func (l *Logger) LogBooked(ctx context.Context, screeningID, userID uint64, seats []string, tickets int) {
	l.InfoContext(ctx, "tickets booked",
		slog.Uint64("screening_id", screeningID),
		slog.Uint64("user_id", userID),
		slog.String("seats", strings.Join(seats, ",")),
		slog.Int("tickets", tickets),
	)
}

// LogConflict records a booking rejected because seats were taken.
func (l *Logger) LogConflict(ctx context.Context, screeningID, userID uint64, seats []string) {
	l.WarnContext(ctx, "seat conflict",
		slog.Uint64("screening_id", screeningID),
		slog.Uint64("user_id", userID),
		slog.String("seats", strings.Join(seats, ",")),
	)
}

// LogCancelled records a ticket cancellation.
func (l *Logger) LogCancelled(ctx context.Context, ticketID, userID uint64, startsAt time.Time) {
	l.InfoContext(ctx, "ticket cancelled",
		slog.Uint64("ticket_id", ticketID),
		slog.Uint64("user_id", userID),
		slog.Time("starts_at", startsAt),
	)
}
