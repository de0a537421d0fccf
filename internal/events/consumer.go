package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/logger"
)

const maxBackoff = 30 * time.Second

// Consumer reads ticket events from the queue and appends an audit line
// per event.  Undecodable messages are rejected without requeue so they
// cannot loop.
type Consumer struct {
	cfg config.EventsConfig
	log *logger.Logger

	mu sync.Mutex // serialises writes to the audit file
}

// NewConsumer returns a consumer for the queue and audit file in cfg.
func NewConsumer(cfg config.EventsConfig, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{cfg: cfg, log: log.WithComponent("audit-consumer")}
}

// Run connects, consumes and reconnects with exponential backoff until
// ctx is done.  It returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{Dial: amqp.DefaultDial(c.cfg.DialTimeout)})
		if err != nil {
			c.log.WithError(err).Warn("dial broker failed", "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("set qos failed")
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("consuming", "queue", c.cfg.Queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.WithError(err).Warn("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends its audit line.
func (c *Consumer) Handle(body []byte) error {
	var ev TicketEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type != TypeBooked && ev.Type != TypeCancelled {
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return c.appendLine(FormatAuditLine(ev))
}

func (c *Consumer) appendLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.cfg.AuditLog), 0o755); err != nil {
		return fmt.Errorf("mkdir audit dir: %w", err)
	}
	f, err := os.OpenFile(c.cfg.AuditLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatAuditLine renders an event as a single human-readable line.
func FormatAuditLine(ev TicketEvent) string {
	verb := "Tickets booked"
	if ev.Type == TypeCancelled {
		verb = "Ticket cancelled"
	}
	ids := make([]string, len(ev.TicketIDs))
	for i, id := range ev.TicketIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("[%s] %s | tickets=[%s] | user_id=%d | screening_id=%d | film=%q | hall=%q | starts_at=%s | total=%d cents | seats=[%s]",
		ev.OccurredAt, verb, strings.Join(ids, ","), ev.UserID, ev.ScreeningID, ev.FilmTitle, ev.HallName,
		ev.StartsAt, ev.TotalCents, strings.Join(ev.Seats, ","))
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
