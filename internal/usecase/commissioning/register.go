package commissioning

import (
	"context"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/ports"
)

// Register commissions a new unit and returns its id. Identity and key
// format are validated before anything is written; duplicates are reported
// by the store's unique indexes, so concurrent registrations of one raptor
// id yield exactly one success.
func (r *Registry) Register(ctx context.Context, input RegisterInput) (uint64, error) {
	if err := r.ready(ctx); err != nil {
		return 0, err
	}
	if err := fleet.ValidateRaptorID(input.RaptorID); err != nil {
		return 0, err
	}
	if err := fleet.ValidateAPIKey(input.APIKey); err != nil {
		return 0, err
	}

	var created fleet.Commission
	if err := r.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = r.commissions.Create(txCtx, ports.CommissionCreate{
			RaptorID:     input.RaptorID,
			APIKey:       input.APIKey,
			APIKeyDigest: fleet.APIKeyDigest(input.APIKey),
			FirmwareTag:  input.FirmwareTag,
			CreatedAt:    r.clock.Now(),
		})
		return err
	}); err != nil {
		return 0, err
	}

	r.publishBestEffort(ctx, ports.SubjectCommissionRegistered, map[string]any{
		"commission_id": created.ID,
		"raptor_id":     created.RaptorID,
		"firmware_tag":  created.FirmwareTagOrEmpty(),
	})
	return created.ID, nil
}

// Commission applies a commissioning payload: a known unit gets the new key
// and firmware tag and is re-enabled, an unknown unit is registered.
func (r *Registry) Commission(ctx context.Context, input CommissionInput) (CommissionResult, error) {
	if err := r.ready(ctx); err != nil {
		return CommissionResult{}, err
	}
	if err := fleet.ValidateRaptorID(input.RaptorID); err != nil {
		return CommissionResult{}, err
	}
	if err := fleet.ValidateAPIKey(input.APIKey); err != nil {
		return CommissionResult{}, err
	}

	// A concurrent first commissioning of the same unit loses the insert
	// race; the second pass then takes the update path.
	var result CommissionResult
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		result, err = r.commissionOnce(ctx, input)
		if err == nil || !isDuplicateIdentity(err) {
			break
		}
	}
	if err != nil {
		return CommissionResult{}, err
	}

	subject := ports.SubjectCommissionRotated
	if result.Created {
		subject = ports.SubjectCommissionRegistered
	}
	r.publishBestEffort(ctx, subject, map[string]any{
		"commission_id": result.ID,
		"raptor_id":     input.RaptorID,
	})
	return result, nil
}

func (r *Registry) commissionOnce(ctx context.Context, input CommissionInput) (CommissionResult, error) {
	var result CommissionResult
	err := r.uow.WithTx(ctx, func(txCtx context.Context) error {
		now := r.clock.Now()

		existing, err := r.commissions.GetByRaptorID(txCtx, input.RaptorID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err == nil {
			if existing.APIKey != input.APIKey {
				if err := r.commissions.UpdateAPIKey(txCtx, input.RaptorID, input.APIKey, fleet.APIKeyDigest(input.APIKey), now); err != nil {
					return err
				}
			}
			if err := r.commissions.UpdateFirmwareTag(txCtx, input.RaptorID, input.FirmwareTag, now); err != nil {
				return err
			}
			if existing.Disabled {
				if err := r.commissions.SetDisabled(txCtx, input.RaptorID, false, now); err != nil {
					return err
				}
			}
			result = CommissionResult{ID: existing.ID}
			return nil
		}

		created, err := r.commissions.Create(txCtx, ports.CommissionCreate{
			RaptorID:     input.RaptorID,
			APIKey:       input.APIKey,
			APIKeyDigest: fleet.APIKeyDigest(input.APIKey),
			FirmwareTag:  input.FirmwareTag,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		result = CommissionResult{ID: created.ID, Created: true}
		return nil
	})
	return result, err
}
