package ports

import "context"

const (
	SubjectCommissionRegistered = "raptor.commission.registered"
	SubjectCommissionRotated    = "raptor.commission.rotated"
	SubjectFirmwareReported     = "raptor.firmware.reported"
	SubjectHardwareChanged      = "raptor.hardware.changed"
)

// EventPublisher emits change notifications. Publishing is best effort and
// never part of a unit of work.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload map[string]any) error
}
