package commissioning

import (
	"context"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/ports"
)

// UpdateFirmwareTag sets the firmware label the registry believes the unit
// runs. An empty tag clears it. Repeating the call is harmless.
func (r *Registry) UpdateFirmwareTag(ctx context.Context, raptorID string, tag string) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	return r.uow.WithTx(ctx, func(txCtx context.Context) error {
		return r.commissions.UpdateFirmwareTag(txCtx, raptorID, normalizeTag(tag), r.clock.Now())
	})
}

// RotateAPIKey replaces the unit's credential. The old key stops
// authenticating as soon as the call returns.
func (r *Registry) RotateAPIKey(ctx context.Context, raptorID string, newKey string) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	if err := fleet.ValidateAPIKey(newKey); err != nil {
		return err
	}

	if err := r.uow.WithTx(ctx, func(txCtx context.Context) error {
		return r.commissions.UpdateAPIKey(txCtx, raptorID, newKey, fleet.APIKeyDigest(newKey), r.clock.Now())
	}); err != nil {
		return err
	}

	r.publishBestEffort(ctx, ports.SubjectCommissionRotated, map[string]any{"raptor_id": raptorID})
	return nil
}

// Decommission soft-disables a unit. Its row and log history are kept.
func (r *Registry) Decommission(ctx context.Context, raptorID string) error {
	return r.setDisabled(ctx, raptorID, true)
}

func (r *Registry) Recommission(ctx context.Context, raptorID string) error {
	return r.setDisabled(ctx, raptorID, false)
}

func (r *Registry) setDisabled(ctx context.Context, raptorID string, disabled bool) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	return r.uow.WithTx(ctx, func(txCtx context.Context) error {
		return r.commissions.SetDisabled(txCtx, raptorID, disabled, r.clock.Now())
	})
}
