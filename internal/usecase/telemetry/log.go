package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/ports"
)

// DefaultBacklogLimit bounds Backlog when the caller passes no limit.
const DefaultBacklogLimit = 200

// Log is the append-only telemetry history. Readings are never updated or
// deleted here.
type Log struct {
	repo  ports.TelemetryRepository
	uow   ports.UnitOfWork
	clock *fleet.Clock
	// appendMu keeps server timestamps in id order for appends made
	// through this Log.
	appendMu sync.Mutex
}

func NewLog(repo ports.TelemetryRepository, uow ports.UnitOfWork) *Log {
	return &Log{repo: repo, uow: uow, clock: fleet.NewClock(time.Now)}
}

// QueryOptions bounds are inclusive. Zero values mean unbounded.
type QueryOptions struct {
	SinceID   uint64
	SinceTime *time.Time
	Limit     int
}

// Append stores data verbatim. A nil timestamp is replaced with the server
// time, taken inside the transaction so that server stamped readings are
// non-decreasing in id order.
func (l *Log) Append(ctx context.Context, data blob.Payload, timestamp *time.Time) (uint64, error) {
	if err := l.ready(ctx); err != nil {
		return 0, err
	}
	if _, err := blob.Encode(data); err != nil {
		return 0, errs.Wrap(err, "telemetry data")
	}

	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	var id uint64
	if err := l.uow.WithTx(ctx, func(txCtx context.Context) error {
		reading := fleet.TelemetryReading{Data: data, Timestamp: l.clock.Stamp(timestamp)}
		var err error
		id, err = l.repo.Append(txCtx, reading)
		return err
	}); err != nil {
		return 0, err
	}
	return id, nil
}

// Query returns readings in ascending id order.
func (l *Log) Query(ctx context.Context, opts QueryOptions) ([]fleet.TelemetryReading, error) {
	if err := l.ready(ctx); err != nil {
		return nil, err
	}
	if opts.Limit < 0 {
		opts.Limit = 0
	}

	var items []fleet.TelemetryReading
	if err := l.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		items, err = l.repo.Query(txCtx, ports.TelemetryFilter{
			SinceID:   opts.SinceID,
			SinceTime: opts.SinceTime,
			Limit:     opts.Limit,
		})
		return err
	}); err != nil {
		return nil, err
	}
	return items, nil
}

func (l *Log) Count(ctx context.Context) (int64, error) {
	if err := l.ready(ctx); err != nil {
		return 0, err
	}

	var n int64
	if err := l.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		n, err = l.repo.Count(txCtx)
		return err
	}); err != nil {
		return 0, err
	}
	return n, nil
}

// Backlog returns the newest readings first, as a forwarder draining the
// store after a broker outage reads them.
func (l *Log) Backlog(ctx context.Context, limit int) ([]fleet.TelemetryReading, error) {
	if err := l.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultBacklogLimit
	}

	var items []fleet.TelemetryReading
	if err := l.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		items, err = l.repo.Newest(txCtx, limit)
		return err
	}); err != nil {
		return nil, err
	}
	return items, nil
}

func (l *Log) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if l.repo == nil {
		return errors.New("telemetry repository is required")
	}
	if l.uow == nil {
		return errors.New("telemetry unit of work is required")
	}
	return nil
}
