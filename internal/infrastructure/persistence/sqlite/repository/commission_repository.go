package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/infrastructure/persistence/sqlite/model"
	"raptorfleet/internal/infrastructure/persistence/sqlite/storeerr"
	"raptorfleet/internal/ports"
)

type CommissionRepository struct {
	base
}

var _ ports.CommissionRepository = (*CommissionRepository)(nil)

func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{base: base{db: db}}
}

// Create inserts the row in a single statement. Duplicate raptor ids and api
// keys are rejected by the unique indexes, never by a prior read.
func (r *CommissionRepository) Create(ctx context.Context, input ports.CommissionCreate) (fleet.Commission, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return fleet.Commission{}, err
	}

	now := model.FormatTime(input.CreatedAt)
	row := model.Commission{
		RaptorID:     input.RaptorID,
		APIKey:       input.APIKey,
		APIKeyDigest: input.APIKeyDigest,
		FirmwareTag:  input.FirmwareTag,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(&row).Error; err != nil {
		return fleet.Commission{}, errs.Wrap(storeerr.Classify(err), "insert commission")
	}
	return mapCommission(row)
}

func (r *CommissionRepository) GetByRaptorID(ctx context.Context, raptorID string) (fleet.Commission, error) {
	return r.take(ctx, "raptor_id = ?", raptorID)
}

func (r *CommissionRepository) GetByAPIKeyDigest(ctx context.Context, digest string) (fleet.Commission, error) {
	return r.take(ctx, "api_key_digest = ?", digest)
}

func (r *CommissionRepository) take(ctx context.Context, where string, arg string) (fleet.Commission, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return fleet.Commission{}, err
	}

	var row model.Commission
	if err := db.Where(where, arg).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fleet.Commission{}, errs.Wrap(fleet.ErrNotFound, "commission")
		}
		return fleet.Commission{}, errs.Wrap(storeerr.Classify(err), "query commission")
	}
	return mapCommission(row)
}

func (r *CommissionRepository) List(ctx context.Context) ([]fleet.Commission, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Commission
	if err := db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(storeerr.Classify(err), "query commissions")
	}

	items := make([]fleet.Commission, 0, len(rows))
	for _, row := range rows {
		item, err := mapCommission(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *CommissionRepository) UpdateFirmwareTag(ctx context.Context, raptorID string, tag *string, updatedAt time.Time) error {
	return r.update(ctx, raptorID, map[string]any{
		"firmware_tag": tag,
		"updated_at":   model.FormatTime(updatedAt),
	}, "update firmware tag")
}

func (r *CommissionRepository) UpdateAPIKey(ctx context.Context, raptorID string, apiKey string, digest string, updatedAt time.Time) error {
	return r.update(ctx, raptorID, map[string]any{
		"api_key":        apiKey,
		"api_key_digest": digest,
		"updated_at":     model.FormatTime(updatedAt),
	}, "update api key")
}

func (r *CommissionRepository) SetDisabled(ctx context.Context, raptorID string, disabled bool, updatedAt time.Time) error {
	return r.update(ctx, raptorID, map[string]any{
		"disabled":   disabled,
		"updated_at": model.FormatTime(updatedAt),
	}, "update disabled flag")
}

func (r *CommissionRepository) update(ctx context.Context, raptorID string, values map[string]any, op string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Commission{}).Where("raptor_id = ?", raptorID).Updates(values)
	if result.Error != nil {
		return errs.Wrap(storeerr.Classify(result.Error), op)
	}
	if result.RowsAffected == 0 {
		return errs.Wrap(fleet.ErrNotFound, "commission")
	}
	return nil
}

type SiteRepository struct {
	base
}

var _ ports.SiteRepository = (*SiteRepository)(nil)

func NewSiteRepository(db *gorm.DB) *SiteRepository {
	return &SiteRepository{base: base{db: db}}
}

func (r *SiteRepository) GetSite(ctx context.Context) (fleet.SiteInfo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return fleet.SiteInfo{}, err
	}

	var row model.RaptorSite
	if err := db.Where("id = ?", singletonID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fleet.SiteInfo{}, errs.Wrap(fleet.ErrNotFound, "site info")
		}
		return fleet.SiteInfo{}, errs.Wrap(storeerr.Classify(err), "query site info")
	}
	return fleet.SiteInfo{Location: row.Location, Client: row.Client}, nil
}

func (r *SiteRepository) PutSite(ctx context.Context, site fleet.SiteInfo) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.RaptorSite{ID: singletonID, Location: site.Location, Client: site.Client}
	if err := db.Clauses(upsertByID("location", "client")).Create(&row).Error; err != nil {
		return errs.Wrap(storeerr.Classify(err), "upsert site info")
	}
	return nil
}
