package commissioning

import (
	"context"
	"errors"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
)

func (r *Registry) LookupByRaptorID(ctx context.Context, raptorID string) (fleet.Commission, error) {
	if err := r.ready(ctx); err != nil {
		return fleet.Commission{}, err
	}

	var found fleet.Commission
	if err := r.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		found, err = r.commissions.GetByRaptorID(txCtx, raptorID)
		return err
	}); err != nil {
		return fleet.Commission{}, err
	}
	return found, nil
}

// LookupByAPIKey authenticates a bearer key. The row is located through the
// key digest and the key itself is compared in constant time. Unknown,
// mismatched and decommissioned units all report fleet.ErrNotFound.
func (r *Registry) LookupByAPIKey(ctx context.Context, apiKey string) (fleet.Commission, error) {
	if err := r.ready(ctx); err != nil {
		return fleet.Commission{}, err
	}
	if apiKey == "" {
		return fleet.Commission{}, fleet.MissingField("api_key")
	}

	var found fleet.Commission
	if err := r.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		found, err = r.commissions.GetByAPIKeyDigest(txCtx, fleet.APIKeyDigest(apiKey))
		return err
	}); err != nil {
		return fleet.Commission{}, err
	}

	if !found.MatchesAPIKey(apiKey) || found.Disabled {
		return fleet.Commission{}, errs.Wrap(fleet.ErrNotFound, "commission")
	}
	return found, nil
}

func (r *Registry) List(ctx context.Context) ([]fleet.Commission, error) {
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	var items []fleet.Commission
	if err := r.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		items, err = r.commissions.List(txCtx)
		return err
	}); err != nil {
		return nil, err
	}
	return items, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, fleet.ErrNotFound)
}

func isDuplicateIdentity(err error) bool {
	return errors.Is(err, fleet.ErrDuplicateIdentity)
}
