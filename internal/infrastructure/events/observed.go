package events

import (
	"context"
	"log/slog"

	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/ports"
)

// Observer records the outcome of every publish.
type Observer interface {
	ObserveEvent(subject string, err error)
}

// Observed wraps a publisher, counting outcomes and logging failures.
// Failures are still returned to the caller.
type Observed struct {
	next     ports.EventPublisher
	observer Observer
}

var _ ports.EventPublisher = (*Observed)(nil)

func NewObserved(next ports.EventPublisher, observer Observer) *Observed {
	if next == nil {
		next = Nop{}
	}
	return &Observed{next: next, observer: observer}
}

func (o *Observed) Publish(ctx context.Context, subject string, payload map[string]any) error {
	err := o.next.Publish(ctx, subject, payload)
	if o.observer != nil {
		o.observer.ObserveEvent(subject, err)
	}
	if err != nil {
		logging.Warn(logging.WithAttrs(ctx, slog.String("component", "infrastructure.events")),
			"publish event failed",
			slog.String("subject", subject),
			slog.Any("err", errs.Loggable(err)),
		)
	}
	return err
}
