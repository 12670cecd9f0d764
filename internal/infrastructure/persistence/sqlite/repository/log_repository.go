package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/infrastructure/persistence/sqlite/model"
	"raptorfleet/internal/infrastructure/persistence/sqlite/storeerr"
	"raptorfleet/internal/ports"
)

type TelemetryRepository struct {
	base
}

var _ ports.TelemetryRepository = (*TelemetryRepository)(nil)

func NewTelemetryRepository(db *gorm.DB) *TelemetryRepository {
	return &TelemetryRepository{base: base{db: db}}
}

func (r *TelemetryRepository) Append(ctx context.Context, reading fleet.TelemetryReading) (uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	data, err := blob.Encode(reading.Data)
	if err != nil {
		return 0, err
	}
	row := model.TelemetryData{
		Data:      data,
		Timestamp: model.FormatTime(reading.Timestamp),
	}
	if err := db.Create(&row).Error; err != nil {
		return 0, errs.Wrap(storeerr.Classify(err), "insert telemetry")
	}
	return row.ID, nil
}

func (r *TelemetryRepository) Query(ctx context.Context, filter ports.TelemetryFilter) ([]fleet.TelemetryReading, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.TelemetryData{})
	if filter.SinceID > 0 {
		query = query.Where("id >= ?", filter.SinceID)
	}
	if filter.SinceTime != nil {
		query = query.Where("timestamp >= ?", model.FormatTime(*filter.SinceTime))
	}
	query = query.Order("id asc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return findTelemetry(query, "query telemetry")
}

func (r *TelemetryRepository) Count(ctx context.Context) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := db.Model(&model.TelemetryData{}).Count(&n).Error; err != nil {
		return 0, errs.Wrap(storeerr.Classify(err), "count telemetry")
	}
	return n, nil
}

func (r *TelemetryRepository) Newest(ctx context.Context, limit int) ([]fleet.TelemetryReading, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.TelemetryData{}).Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return findTelemetry(query, "query telemetry backlog")
}

func findTelemetry(query *gorm.DB, op string) ([]fleet.TelemetryReading, error) {
	var rows []model.TelemetryData
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(storeerr.Classify(err), op)
	}

	items := make([]fleet.TelemetryReading, 0, len(rows))
	for _, row := range rows {
		ts, err := model.ParseTime(row.Timestamp)
		if err != nil {
			return nil, errs.Wrapf(err, "parse telemetry %d timestamp", row.ID)
		}
		items = append(items, fleet.TelemetryReading{
			ID:        row.ID,
			Data:      blob.Decode(row.Data, blob.EncodingJSON),
			Timestamp: ts,
		})
	}
	return items, nil
}

type FirmwareRepository struct {
	base
}

var _ ports.FirmwareRepository = (*FirmwareRepository)(nil)

func NewFirmwareRepository(db *gorm.DB) *FirmwareRepository {
	return &FirmwareRepository{base: base{db: db}}
}

func (r *FirmwareRepository) Append(ctx context.Context, report fleet.FirmwareReport) (uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	row := model.FirmwareStatus{
		VersionTag: report.VersionTag,
		Timestamp:  model.FormatTime(report.Timestamp),
	}
	if err := db.Create(&row).Error; err != nil {
		return 0, errs.Wrap(storeerr.Classify(err), "insert firmware status")
	}
	return row.ID, nil
}

func (r *FirmwareRepository) Latest(ctx context.Context) (fleet.FirmwareReport, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return fleet.FirmwareReport{}, err
	}

	var row model.FirmwareStatus
	if err := db.Order("id desc").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fleet.FirmwareReport{}, errs.Wrap(fleet.ErrNotFound, "firmware status")
		}
		return fleet.FirmwareReport{}, errs.Wrap(storeerr.Classify(err), "query latest firmware status")
	}
	return mapFirmware(row)
}

func (r *FirmwareRepository) Newest(ctx context.Context, limit int) ([]fleet.FirmwareReport, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.FirmwareStatus
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(storeerr.Classify(err), "query firmware history")
	}

	items := make([]fleet.FirmwareReport, 0, len(rows))
	for _, row := range rows {
		item, err := mapFirmware(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
