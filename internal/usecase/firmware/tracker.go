package firmware

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/ports"
)

// Tracker keeps the append-only history of firmware versions reported by
// the running unit.
type Tracker struct {
	reports     ports.FirmwareRepository
	commissions ports.CommissionReadRepository
	uow         ports.UnitOfWork
	events      ports.EventPublisher
	clock       *fleet.Clock
	reportMu    sync.Mutex
}

// NewTracker wires the tracker. commissions is only needed by Reconcile and
// events may be nil.
func NewTracker(
	reports ports.FirmwareRepository,
	commissions ports.CommissionReadRepository,
	uow ports.UnitOfWork,
	events ports.EventPublisher,
) *Tracker {
	return &Tracker{
		reports:     reports,
		commissions: commissions,
		uow:         uow,
		events:      events,
		clock:       fleet.NewClock(time.Now),
	}
}

// Report appends a version observation. A nil timestamp is replaced with the
// server time, taken inside the transaction.
func (t *Tracker) Report(ctx context.Context, versionTag string, timestamp *time.Time) (uint64, error) {
	if err := t.ready(ctx); err != nil {
		return 0, err
	}
	versionTag = strings.TrimSpace(versionTag)
	if versionTag == "" {
		return 0, fleet.MissingField("version_tag")
	}

	t.reportMu.Lock()
	defer t.reportMu.Unlock()

	var (
		id     uint64
		report fleet.FirmwareReport
	)
	if err := t.uow.WithTx(ctx, func(txCtx context.Context) error {
		report = fleet.FirmwareReport{VersionTag: versionTag, Timestamp: t.clock.Stamp(timestamp)}
		var err error
		id, err = t.reports.Append(txCtx, report)
		return err
	}); err != nil {
		return 0, err
	}

	if t.events != nil {
		_ = t.events.Publish(ctx, ports.SubjectFirmwareReported, map[string]any{
			"report_id":   id,
			"version_tag": versionTag,
			"timestamp":   report.Timestamp,
		})
	}
	return id, nil
}

// LatestVersion returns the tag of the most recent report, by id.
func (t *Tracker) LatestVersion(ctx context.Context) (string, error) {
	report, err := t.latest(ctx)
	if err != nil {
		return "", err
	}
	return report.VersionTag, nil
}

// History returns reports newest first. A non-positive limit returns all.
func (t *Tracker) History(ctx context.Context, limit int) ([]fleet.FirmwareReport, error) {
	if err := t.ready(ctx); err != nil {
		return nil, err
	}
	if limit < 0 {
		limit = 0
	}

	var items []fleet.FirmwareReport
	if err := t.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		items, err = t.reports.Newest(txCtx, limit)
		return err
	}); err != nil {
		return nil, err
	}
	return items, nil
}

// Reconcile compares the latest reported version with the firmware tag the
// registry holds for raptorID. Both reads share one transaction.
func (t *Tracker) Reconcile(ctx context.Context, raptorID string) (fleet.FirmwareDrift, error) {
	if err := t.ready(ctx); err != nil {
		return fleet.FirmwareDrift{}, err
	}
	if t.commissions == nil {
		return fleet.FirmwareDrift{}, errors.New("commission repository is required")
	}

	var drift fleet.FirmwareDrift
	if err := t.uow.WithTx(ctx, func(txCtx context.Context) error {
		commission, err := t.commissions.GetByRaptorID(txCtx, raptorID)
		if err != nil {
			return err
		}

		latest, err := t.reports.Latest(txCtx)
		switch {
		case errors.Is(err, fleet.ErrNotFound):
			drift = fleet.NewFirmwareDrift(commission, "", false)
			return nil
		case err != nil:
			return err
		}
		drift = fleet.NewFirmwareDrift(commission, latest.VersionTag, true)
		return nil
	}); err != nil {
		return fleet.FirmwareDrift{}, err
	}
	return drift, nil
}

func (t *Tracker) latest(ctx context.Context) (fleet.FirmwareReport, error) {
	if err := t.ready(ctx); err != nil {
		return fleet.FirmwareReport{}, err
	}

	var report fleet.FirmwareReport
	if err := t.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		report, err = t.reports.Latest(txCtx)
		return err
	}); err != nil {
		return fleet.FirmwareReport{}, err
	}
	return report, nil
}

func (t *Tracker) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if t.reports == nil {
		return errors.New("firmware repository is required")
	}
	if t.uow == nil {
		return errors.New("firmware unit of work is required")
	}
	return nil
}
