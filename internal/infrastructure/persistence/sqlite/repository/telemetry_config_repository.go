package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/infrastructure/persistence/sqlite/model"
	"raptorfleet/internal/infrastructure/persistence/sqlite/storeerr"
	"raptorfleet/internal/ports"
)

type TelemetryConfigRepository struct {
	base
}

var _ ports.TelemetryConfigRepository = (*TelemetryConfigRepository)(nil)

func NewTelemetryConfigRepository(db *gorm.DB) *TelemetryConfigRepository {
	return &TelemetryConfigRepository{base: base{db: db}}
}

func (r *TelemetryConfigRepository) Get(ctx context.Context) (fleet.TelemetryConfiguration, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return fleet.TelemetryConfiguration{}, err
	}

	var row model.TelemetryConfiguration
	if err := db.Where("id = ?", singletonID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fleet.TelemetryConfiguration{}, errs.Wrap(fleet.ErrNotFound, "telemetry configuration")
		}
		return fleet.TelemetryConfiguration{}, errs.Wrap(storeerr.Classify(err), "query telemetry configuration")
	}

	updatedAt, err := model.ParseTime(row.UpdatedAt)
	if err != nil {
		return fleet.TelemetryConfiguration{}, errs.Wrap(err, "parse telemetry configuration updated_at")
	}
	return fleet.TelemetryConfiguration{
		MQTTConfig:      blob.Decode(row.MQTTConfig, blob.EncodingJSON),
		TelemetryConfig: blob.Decode(row.TelemetryConfig, blob.EncodingJSON),
		UpdatedAt:       updatedAt,
	}, nil
}

// Put overwrites the singleton row in place.
func (r *TelemetryConfigRepository) Put(ctx context.Context, cfg fleet.TelemetryConfiguration) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	mqtt, err := blob.Encode(cfg.MQTTConfig)
	if err != nil {
		return errs.Wrap(err, "encode mqtt config")
	}
	telemetry, err := blob.Encode(cfg.TelemetryConfig)
	if err != nil {
		return errs.Wrap(err, "encode telemetry config")
	}

	updatedAt := cfg.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	row := model.TelemetryConfiguration{
		ID:              singletonID,
		MQTTConfig:      mqtt,
		TelemetryConfig: telemetry,
		UpdatedAt:       model.FormatTime(updatedAt),
	}
	if err := db.Clauses(upsertByID("mqtt_config", "telemetry_config", "updated_at")).Create(&row).Error; err != nil {
		return errs.Wrap(storeerr.Classify(err), "upsert telemetry configuration")
	}
	return nil
}

func upsertByID(columns ...string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}
}
