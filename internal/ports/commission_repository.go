package ports

import (
	"context"
	"time"

	"raptorfleet/internal/domain/fleet"
)

// CommissionCreate is the insert payload for a new commission row.
type CommissionCreate struct {
	RaptorID     string
	APIKey       string
	APIKeyDigest string
	FirmwareTag  *string
	CreatedAt    time.Time
}

type CommissionReadRepository interface {
	GetByRaptorID(ctx context.Context, raptorID string) (fleet.Commission, error)
	GetByAPIKeyDigest(ctx context.Context, digest string) (fleet.Commission, error)
	List(ctx context.Context) ([]fleet.Commission, error)
}

// CommissionRepository persists the unit registry. Uniqueness of raptor_id
// and api_key is enforced by the store and reported as
// fleet.ErrDuplicateIdentity or fleet.ErrDuplicateCredential.
type CommissionRepository interface {
	CommissionReadRepository
	Create(ctx context.Context, input CommissionCreate) (fleet.Commission, error)
	UpdateFirmwareTag(ctx context.Context, raptorID string, tag *string, updatedAt time.Time) error
	UpdateAPIKey(ctx context.Context, raptorID string, apiKey string, digest string, updatedAt time.Time) error
	SetDisabled(ctx context.Context, raptorID string, disabled bool, updatedAt time.Time) error
}

// SiteRepository holds the singleton raptor row.
type SiteRepository interface {
	GetSite(ctx context.Context) (fleet.SiteInfo, error)
	PutSite(ctx context.Context, site fleet.SiteInfo) error
}
