package commissioning

import (
	"context"
	"errors"
	"strings"

	"raptorfleet/internal/domain/fleet"
)

// SetSiteInfo records where this unit is installed and for whom.
func (r *Registry) SetSiteInfo(ctx context.Context, location string, client string) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	if r.sites == nil {
		return errors.New("site repository is required")
	}

	site := fleet.SiteInfo{
		Location: strings.TrimSpace(location),
		Client:   strings.TrimSpace(client),
	}
	return r.uow.WithTx(ctx, func(txCtx context.Context) error {
		return r.sites.PutSite(txCtx, site)
	})
}

func (r *Registry) SiteInfo(ctx context.Context) (fleet.SiteInfo, error) {
	if err := r.ready(ctx); err != nil {
		return fleet.SiteInfo{}, err
	}
	if r.sites == nil {
		return fleet.SiteInfo{}, errors.New("site repository is required")
	}

	var site fleet.SiteInfo
	if err := r.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		site, err = r.sites.GetSite(txCtx)
		return err
	}); err != nil {
		return fleet.SiteInfo{}, err
	}
	return site, nil
}
