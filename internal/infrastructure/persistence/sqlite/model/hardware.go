package model

type Hardware struct {
	ID           uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	HardwareType string  `gorm:"column:hardware_type;type:text;not null;index:idx_hardware_type"`
	DriverPath   string  `gorm:"column:driver_path;type:text;not null"`
	Parameters   string  `gorm:"column:parameters;type:text;not null"`
	ScanGroups   *string `gorm:"column:scan_groups;type:text"`
	Devices      *string `gorm:"column:devices;type:text"`
	// Pointer so that an explicit false is written instead of the column default.
	Enabled     *bool  `gorm:"column:enabled;not null;default:true;index:idx_hardware_enabled"`
	ExternalRef string `gorm:"column:external_ref;type:text;not null"`
}

func (Hardware) TableName() string {
	return "hardware"
}
