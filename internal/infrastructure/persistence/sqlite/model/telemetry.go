package model

type TelemetryData struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Data      string `gorm:"column:data;type:text;not null"`
	Timestamp string `gorm:"column:timestamp;type:text;not null;index:idx_telemetry_data_timestamp"`
}

func (TelemetryData) TableName() string {
	return "telemetry_data"
}

type FirmwareStatus struct {
	ID         uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	VersionTag string `gorm:"column:version_tag;type:text;not null"`
	Timestamp  string `gorm:"column:timestamp;type:text;not null"`
}

func (FirmwareStatus) TableName() string {
	return "firmware_status"
}

// TelemetryConfiguration is stored as a singleton row with ID 1.
type TelemetryConfiguration struct {
	ID              uint64 `gorm:"column:id;primaryKey;autoIncrement:false"`
	MQTTConfig      string `gorm:"column:mqtt_config;type:text"`
	TelemetryConfig string `gorm:"column:telemetry_config;type:text"`
	UpdatedAt       string `gorm:"column:updated_at;type:text;not null"`
}

func (TelemetryConfiguration) TableName() string {
	return "telemetry_configuration"
}
