// Package events publishes conversation events to NATS so analytics and CRM
// workers can follow the sales funnel without touching the bot.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects published by the bot.
const (
	SubjectTurnCompleted   = "iagente.turn.completed"
	SubjectQuotesGenerated = "iagente.quotes.generated"
)

// Publisher sends JSON events to NATS.
type Publisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewPublisher connects to the NATS server at url. The connection keeps
// retrying in the background when the server is not up yet.
func NewPublisher(url, token string, logger *zap.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("iagente-vida"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: nc, logger: logger}, nil
}

// Publish marshals data and publishes it on subject.
func (p *Publisher) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

// Subscribe delivers raw payloads published on subject. Used by tooling and
// tests.
func (p *Publisher) Subscribe(subject string, handler func(data []byte)) (func() error, error) {
	sub, err := p.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub.Unsubscribe, nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

// Noop discards every event. Used when no NATS server is configured.
type Noop struct{}

func (Noop) Publish(string, any) error { return nil }

func (Noop) Close() error { return nil }
