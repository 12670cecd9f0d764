package fleet

import (
	"time"

	"raptorfleet/internal/domain/blob"
)

// HardwareInstance is one configured hardware integration. Parameters,
// ScanGroups and Devices are owned by the driver and never interpreted here.
type HardwareInstance struct {
	ID           uint64
	HardwareType string
	DriverPath   string
	Parameters   blob.Payload
	ScanGroups   *blob.Payload
	Devices      *blob.Payload
	Enabled      bool
	ExternalRef  string
}

// TelemetryReading is one appended telemetry payload.
type TelemetryReading struct {
	ID        uint64
	Data      blob.Payload
	Timestamp time.Time
}

// FirmwareReport is one appended firmware version report.
type FirmwareReport struct {
	ID         uint64
	VersionTag string
	Timestamp  time.Time
}

// TelemetryConfiguration is the process-wide transport and shaping config.
type TelemetryConfiguration struct {
	MQTTConfig      blob.Payload
	TelemetryConfig blob.Payload
	UpdatedAt       time.Time
}

// FirmwareDrift compares the last reported firmware against the tag the
// registry believes a unit runs.
type FirmwareDrift struct {
	RaptorID    string
	RegistryTag string
	ReportedTag string
	HasReport   bool
	InSync      bool
}

func NewFirmwareDrift(c Commission, reported string, hasReport bool) FirmwareDrift {
	registry := c.FirmwareTagOrEmpty()
	return FirmwareDrift{
		RaptorID:    c.RaptorID,
		RegistryTag: registry,
		ReportedTag: reported,
		HasReport:   hasReport,
		InSync:      hasReport && registry == reported,
	}
}
