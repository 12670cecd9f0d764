package ports

import (
	"context"
	"time"

	"raptorfleet/internal/domain/fleet"
)

// TelemetryFilter bounds are inclusive. Zero values mean unbounded.
type TelemetryFilter struct {
	SinceID   uint64
	SinceTime *time.Time
	Limit     int
}

// TelemetryRepository is append-only: there is no update or delete.
type TelemetryRepository interface {
	Append(ctx context.Context, reading fleet.TelemetryReading) (uint64, error)
	Query(ctx context.Context, filter TelemetryFilter) ([]fleet.TelemetryReading, error)
	Count(ctx context.Context) (int64, error)
	Newest(ctx context.Context, limit int) ([]fleet.TelemetryReading, error)
}

type FirmwareRepository interface {
	Append(ctx context.Context, report fleet.FirmwareReport) (uint64, error)
	Latest(ctx context.Context) (fleet.FirmwareReport, error)
	Newest(ctx context.Context, limit int) ([]fleet.FirmwareReport, error)
}

type TelemetryConfigRepository interface {
	Get(ctx context.Context) (fleet.TelemetryConfiguration, error)
	Put(ctx context.Context, cfg fleet.TelemetryConfiguration) error
}
