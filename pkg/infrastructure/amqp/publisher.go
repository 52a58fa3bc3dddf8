package amqp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/service"
)

const (
	DefaultExchange = "outreach.events"

	publishTimeout = 5 * time.Second
	dialRetries    = 5
)

// Envelope is the message body of every published domain event.
type Envelope struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	OccurredAt time.Time     `json:"occurredAt"`
	Payload    service.Event `json:"payload"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends domain events to a topic exchange, routed by event type.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   logrus.FieldLogger
}

// Dial connects to the broker, retrying with exponential backoff, and declares the exchange.
func Dial(ctx context.Context, url, exchange string, logger logrus.FieldLogger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	var conn *amqp.Connection
	connect := func() error {
		var err error
		conn, err = amqp.Dial(url)
		return err
	}
	notify := func(err error, next time.Duration) {
		logger.WithError(err).WithField("retry_in", next).Warn("broker is not reachable yet")
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), dialRetries), ctx)
	if err := backoff.RetryNotify(connect, policy, notify); err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open amqp channel")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	logger.WithField("exchange", exchange).Info("connected to amqp broker")

	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger logrus.FieldLogger) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, logger: logger}
}

func (p *Publisher) Dispatch(event service.Event) error {
	envelope := Envelope{
		ID:         uuid.NewString(),
		Type:       event.Type(),
		OccurredAt: time.Now().UTC(),
		Payload:    event,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrapf(err, "encode %s", envelope.Type)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, envelope.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    envelope.ID,
		Timestamp:    envelope.OccurredAt,
		Type:         envelope.Type,
		Body:         body,
	})
	if err != nil {
		p.logger.WithError(err).WithField("event_type", envelope.Type).Error("publish domain event")
		return errors.Wrapf(err, "publish %s", envelope.Type)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
