package commissioning

import (
	"context"
	"errors"
	"time"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/ports"
)

// Registry is the authoritative mapping from a physical unit to its
// credential and firmware label.
type Registry struct {
	commissions ports.CommissionRepository
	sites       ports.SiteRepository
	uow         ports.UnitOfWork
	events      ports.EventPublisher
	clock       *fleet.Clock
}

// NewRegistry wires the registry. events may be nil.
func NewRegistry(
	commissions ports.CommissionRepository,
	sites ports.SiteRepository,
	uow ports.UnitOfWork,
	events ports.EventPublisher,
) *Registry {
	return &Registry{
		commissions: commissions,
		sites:       sites,
		uow:         uow,
		events:      events,
		clock:       fleet.NewClock(time.Now),
	}
}

type RegisterInput struct {
	RaptorID    string
	APIKey      string
	FirmwareTag *string
}

// CommissionInput is the payload handed to a unit by the commissioning
// service. Applying it again for a known unit rotates its key and tag.
type CommissionInput struct {
	RaptorID    string
	APIKey      string
	FirmwareTag *string
}

type CommissionResult struct {
	ID      uint64
	Created bool
}

func (r *Registry) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if r.commissions == nil {
		return errors.New("commission repository is required")
	}
	if r.uow == nil {
		return errors.New("commission unit of work is required")
	}
	return nil
}

func (r *Registry) publishBestEffort(ctx context.Context, subject string, payload map[string]any) {
	if r.events == nil {
		return
	}
	_ = r.events.Publish(ctx, subject, payload)
}

func normalizeTag(tag string) *string {
	if tag == "" {
		return nil
	}
	return &tag
}
