package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// sendFunc delivers one encoded event.
type sendFunc func(ctx context.Context, body []byte) error

// Publisher implements booking.Notifier.  Events are queued in memory
// and sent by Run, so a slow or absent broker never holds up a request.
// When the buffer is full the event is dropped and logged.
type Publisher struct {
	pending chan TicketEvent
	send    sendFunc
	clock   clock.Clock
	log     *logger.Logger
}

var _ booking.Notifier = (*Publisher)(nil)

// NewPublisher returns a Publisher for the broker and queue in cfg.
func NewPublisher(cfg config.EventsConfig, log *logger.Logger) *Publisher {
	return newPublisher(amqpSender(cfg), clock.Real(), log, 256)
}

func newPublisher(send sendFunc, clk clock.Clock, log *logger.Logger, buffer int) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{
		pending: make(chan TicketEvent, buffer),
		send:    send,
		clock:   clk,
		log:     log.WithComponent("event-publisher"),
	}
}

// TicketsBooked queues a ticket.booked event.
func (p *Publisher) TicketsBooked(_ context.Context, b *booking.Booking) {
	p.enqueue(Booked(b, p.clock.Now()))
}

// TicketCancelled queues a ticket.cancelled event.
func (p *Publisher) TicketCancelled(_ context.Context, t *model.Ticket, s *model.Screening) {
	p.enqueue(Cancelled(t, s, p.clock.Now()))
}

func (p *Publisher) enqueue(ev TicketEvent) {
	select {
	case p.pending <- ev:
	default:
		p.log.Warn("event buffer full; dropping event", "type", ev.Type, "screening_id", ev.ScreeningID)
	}
}

// Run sends queued events until ctx is done.  Send failures are logged
// and the event is dropped.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.pending:
			body, err := json.Marshal(ev)
			if err != nil {
				p.log.WithError(err).Error("marshal event failed", "type", ev.Type)
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = p.send(sendCtx, body)
			cancel()
			if err != nil {
				p.log.WithError(err).Warn("publish failed", "type", ev.Type, "screening_id", ev.ScreeningID)
				continue
			}
			p.log.Debug("event published", "type", ev.Type, "screening_id", ev.ScreeningID)
		}
	}
}

// amqpSender dials the broker for every message.  Events are rare
// compared to reads, so a long-lived channel is not worth the
// reconnect handling.
func amqpSender(cfg config.EventsConfig) sendFunc {
	return func(ctx context.Context, body []byte) error {
		conn, err := amqp.DialConfig(cfg.URL, amqp.Config{Dial: amqp.DefaultDial(cfg.DialTimeout)})
		if err != nil {
			return fmt.Errorf("dial broker: %w", err)
		}
		defer func() { _ = conn.Close() }()

		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("open channel: %w", err)
		}
		defer func() { _ = ch.Close() }()

		if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue: %w", err)
		}
		return ch.PublishWithContext(ctx, "", cfg.Queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	}
}
