package model

// MetaKV holds advisory bookkeeping values such as the last applied
// provisioning document. ExpiresAt is empty for entries that never expire.
type MetaKV struct {
	Key       string  `gorm:"column:key;type:varchar(191);primaryKey"`
	Value     string  `gorm:"column:value;type:text;not null"`
	ExpiresAt *string `gorm:"column:expires_at;type:text"`
	UpdatedAt string  `gorm:"column:updated_at;type:text;not null"`
}

func (MetaKV) TableName() string {
	return "meta_kv"
}
