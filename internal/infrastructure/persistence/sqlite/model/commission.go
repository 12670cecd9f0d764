package model

type Commission struct {
	ID           uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	RaptorID     string  `gorm:"column:raptor_id;type:varchar(24);not null;uniqueIndex:idx_commission_raptor_id;check:chk_commission_raptor_id_len,length(raptor_id) = 24"`
	APIKey       string  `gorm:"column:api_key;type:varchar(64);not null;uniqueIndex:idx_commission_api_key"`
	APIKeyDigest string  `gorm:"column:api_key_digest;type:varchar(64);not null;uniqueIndex:idx_commission_api_key_digest"`
	FirmwareTag  *string `gorm:"column:firmware_tag;type:text"`
	Disabled     bool    `gorm:"column:disabled;not null;default:false"`
	CreatedAt    string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt    string  `gorm:"column:updated_at;type:text;not null"`
}

func (Commission) TableName() string {
	return "commission"
}

// RaptorSite is the singleton unit identity row. ID is always 1.
type RaptorSite struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement:false"`
	Location string `gorm:"column:location;type:text;not null"`
	Client   string `gorm:"column:client;type:text;not null"`
}

func (RaptorSite) TableName() string {
	return "raptor"
}
