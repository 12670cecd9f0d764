package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raptorfleet/internal/errs"
	"raptorfleet/internal/infrastructure/persistence/sqlite/model"
	"raptorfleet/internal/ports"
)

// MetaCache is a ports.Cache backed by the meta_kv table of the fleet store.
type MetaCache struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Cache = (*MetaCache)(nil)

func NewMetaCache(db *gorm.DB) *MetaCache {
	return &MetaCache{db: db, now: time.Now}
}

func (c *MetaCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	var row model.MetaKV
	if err := c.db.WithContext(ctx).Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query meta key")
	}

	if row.ExpiresAt != nil && *row.ExpiresAt <= model.FormatTime(c.now()) {
		return "", false, nil
	}
	return row.Value, true, nil
}

// Set upserts key. A positive ttl makes the entry invisible to Get once it
// has elapsed; expired rows are overwritten by the next Set.
func (c *MetaCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	now := c.now()
	row := model.MetaKV{
		Key:       trimmedKey,
		Value:     value,
		UpdatedAt: model.FormatTime(now),
	}
	if ttl > 0 {
		expiresAt := model.FormatTime(now.Add(ttl))
		row.ExpiresAt = &expiresAt
	}

	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert meta key")
	}
	return nil
}

func (c *MetaCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.db.WithContext(ctx).Where("key = ?", trimmedKey).Delete(&model.MetaKV{}).Error; err != nil {
		return errs.Wrap(err, "delete meta key")
	}
	return nil
}

func checkKey(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("key is required")
	}
	return trimmed, nil
}
