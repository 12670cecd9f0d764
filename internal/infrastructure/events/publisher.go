package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/ports"
)

// Envelope is the JSON body of every published event.
type Envelope struct {
	ID         string         `json:"id"`
	Subject    string         `json:"subject"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher sends fleet change events over core NATS. Delivery is at most
// once; consumers that need history read the store.
type Publisher struct {
	conn *nats.Conn
	now  func() time.Time
}

var _ ports.EventPublisher = (*Publisher)(nil)

func Connect(ctx context.Context, url string, opts ...nats.Option) (*Publisher, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("nats url is required")
	}

	opts = append([]nats.Option{nats.Name("raptorfleet")}, opts...)
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %q", url)
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "infrastructure.events")),
		"event publisher connected", slog.String("url", conn.ConnectedUrlRedacted()))
	return &Publisher{conn: conn, now: time.Now}, nil
}

func (p *Publisher) Publish(ctx context.Context, subject string, payload map[string]any) error {
	if p == nil || p.conn == nil {
		return errors.New("nil publisher")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	data, err := Encode(subject, payload, p.now())
	if err != nil {
		return err
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return errs.Wrapf(err, "publish %s", subject)
	}
	return nil
}

// Close drains pending messages before closing the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

func Encode(subject string, payload map[string]any, at time.Time) ([]byte, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, errors.New("subject is required")
	}

	data, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Subject:    subject,
		OccurredAt: at.UTC(),
		Data:       payload,
	})
	if err != nil {
		return nil, errs.Wrapf(err, "encode %s event", subject)
	}
	return data, nil
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

var _ ports.EventPublisher = Nop{}

func (Nop) Publish(context.Context, string, map[string]any) error { return nil }
