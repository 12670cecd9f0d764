package repository

import (
	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/infrastructure/persistence/sqlite/model"
)

func mapCommission(row model.Commission) (fleet.Commission, error) {
	createdAt, err := model.ParseTime(row.CreatedAt)
	if err != nil {
		return fleet.Commission{}, errs.Wrapf(err, "parse commission %d created_at", row.ID)
	}
	updatedAt, err := model.ParseTime(row.UpdatedAt)
	if err != nil {
		return fleet.Commission{}, errs.Wrapf(err, "parse commission %d updated_at", row.ID)
	}

	return fleet.Commission{
		ID:          row.ID,
		RaptorID:    row.RaptorID,
		APIKey:      row.APIKey,
		FirmwareTag: row.FirmwareTag,
		Disabled:    row.Disabled,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func hardwareRow(instance fleet.HardwareInstance) (model.Hardware, error) {
	parameters, err := blob.Encode(instance.Parameters)
	if err != nil {
		return model.Hardware{}, errs.Wrap(err, "encode parameters")
	}
	scanGroups, err := blob.EncodeOptional(instance.ScanGroups)
	if err != nil {
		return model.Hardware{}, errs.Wrap(err, "encode scan_groups")
	}
	devices, err := blob.EncodeOptional(instance.Devices)
	if err != nil {
		return model.Hardware{}, errs.Wrap(err, "encode devices")
	}

	enabled := instance.Enabled
	return model.Hardware{
		HardwareType: instance.HardwareType,
		DriverPath:   instance.DriverPath,
		Parameters:   parameters,
		ScanGroups:   scanGroups,
		Devices:      devices,
		Enabled:      &enabled,
		ExternalRef:  instance.ExternalRef,
	}, nil
}

func mapHardware(row model.Hardware) fleet.HardwareInstance {
	enabled := true
	if row.Enabled != nil {
		enabled = *row.Enabled
	}
	return fleet.HardwareInstance{
		ID:           row.ID,
		HardwareType: row.HardwareType,
		DriverPath:   row.DriverPath,
		Parameters:   blob.Decode(row.Parameters, blob.EncodingJSON),
		ScanGroups:   blob.DecodeOptional(row.ScanGroups, blob.EncodingJSON),
		Devices:      blob.DecodeOptional(row.Devices, blob.EncodingJSON),
		Enabled:      enabled,
		ExternalRef:  row.ExternalRef,
	}
}

func mapFirmware(row model.FirmwareStatus) (fleet.FirmwareReport, error) {
	ts, err := model.ParseTime(row.Timestamp)
	if err != nil {
		return fleet.FirmwareReport{}, errs.Wrapf(err, "parse firmware status %d timestamp", row.ID)
	}
	return fleet.FirmwareReport{ID: row.ID, VersionTag: row.VersionTag, Timestamp: ts}, nil
}
