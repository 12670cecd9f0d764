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

type HardwareRepository struct {
	base
}

var _ ports.HardwareRepository = (*HardwareRepository)(nil)

func NewHardwareRepository(db *gorm.DB) *HardwareRepository {
	return &HardwareRepository{base: base{db: db}}
}

func (r *HardwareRepository) Create(ctx context.Context, instance fleet.HardwareInstance) (uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	row, err := hardwareRow(instance)
	if err != nil {
		return 0, err
	}
	if err := db.Create(&row).Error; err != nil {
		return 0, errs.Wrap(storeerr.Classify(err), "insert hardware")
	}
	return row.ID, nil
}

func (r *HardwareRepository) Get(ctx context.Context, id uint64) (fleet.HardwareInstance, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return fleet.HardwareInstance{}, err
	}

	var row model.Hardware
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fleet.HardwareInstance{}, errs.Wrapf(fleet.ErrNotFound, "hardware %d", id)
		}
		return fleet.HardwareInstance{}, errs.Wrap(storeerr.Classify(err), "query hardware")
	}
	return mapHardware(row), nil
}

func (r *HardwareRepository) UpdateParameters(ctx context.Context, id uint64, parameters blob.Payload) error {
	stored, err := blob.Encode(parameters)
	if err != nil {
		return err
	}
	return r.update(ctx, id, map[string]any{"parameters": stored}, "update hardware parameters")
}

func (r *HardwareRepository) SetEnabled(ctx context.Context, id uint64, enabled bool) error {
	return r.update(ctx, id, map[string]any{"enabled": enabled}, "update hardware enabled")
}

func (r *HardwareRepository) update(ctx context.Context, id uint64, values map[string]any, op string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Hardware{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return errs.Wrap(storeerr.Classify(result.Error), op)
	}
	if result.RowsAffected == 0 {
		return errs.Wrapf(fleet.ErrNotFound, "hardware %d", id)
	}
	return nil
}

func (r *HardwareRepository) ListEnabledAfter(ctx context.Context, afterID uint64, limit int) ([]fleet.HardwareInstance, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Where("enabled = ? AND id > ?", true, afterID).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return findHardware(query, "query enabled hardware")
}

func (r *HardwareRepository) ListByType(ctx context.Context, hardwareType string) ([]fleet.HardwareInstance, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Where(`hardware_type LIKE ? ESCAPE '\'`, containsPattern(hardwareType)).Order("id asc")
	return findHardware(query, "query hardware by type")
}

func (r *HardwareRepository) DeleteAll(ctx context.Context) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Hardware{})
	if result.Error != nil {
		return 0, errs.Wrap(storeerr.Classify(result.Error), "delete hardware")
	}
	return result.RowsAffected, nil
}

func findHardware(query *gorm.DB, op string) ([]fleet.HardwareInstance, error) {
	var rows []model.Hardware
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(storeerr.Classify(err), op)
	}

	items := make([]fleet.HardwareInstance, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapHardware(row))
	}
	return items, nil
}
