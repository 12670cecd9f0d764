package ports

import (
	"context"

	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
)

type HardwareRepository interface {
	Create(ctx context.Context, instance fleet.HardwareInstance) (uint64, error)
	Get(ctx context.Context, id uint64) (fleet.HardwareInstance, error)
	UpdateParameters(ctx context.Context, id uint64, parameters blob.Payload) error
	SetEnabled(ctx context.Context, id uint64, enabled bool) error
	// ListEnabledAfter returns at most limit enabled rows with id > afterID,
	// ascending by id.
	ListEnabledAfter(ctx context.Context, afterID uint64, limit int) ([]fleet.HardwareInstance, error)
	ListByType(ctx context.Context, hardwareType string) ([]fleet.HardwareInstance, error)
	DeleteAll(ctx context.Context) (int64, error)
}
