package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/ports"
)

const testRaptorID = "A1B2C3D4E5F6A1B2C3D4E5F6"

func createInput(raptorID, apiKey string) ports.CommissionCreate {
	return ports.CommissionCreate{
		RaptorID:     raptorID,
		APIKey:       apiKey,
		APIKeyDigest: fleet.APIKeyDigest(apiKey),
		CreatedAt:    time.Now(),
	}
}

func TestCommissionCreateAndLookup(t *testing.T) {
	repo := NewCommissionRepository(setupDB(t))
	ctx := context.Background()

	tag := "v1.0.0"
	input := createInput(testRaptorID, "k1")
	input.FirmwareTag = &tag

	created, err := repo.Create(ctx, input)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("Create() id = %d, want 1", created.ID)
	}

	byID, err := repo.GetByRaptorID(ctx, testRaptorID)
	if err != nil {
		t.Fatalf("GetByRaptorID() error = %v", err)
	}
	if byID.APIKey != "k1" || byID.FirmwareTagOrEmpty() != "v1.0.0" || byID.Disabled {
		t.Fatalf("GetByRaptorID() = %+v", byID)
	}

	byKey, err := repo.GetByAPIKeyDigest(ctx, fleet.APIKeyDigest("k1"))
	if err != nil {
		t.Fatalf("GetByAPIKeyDigest() error = %v", err)
	}
	if byKey.ID != created.ID {
		t.Fatalf("GetByAPIKeyDigest() id = %d", byKey.ID)
	}

	if _, err := repo.GetByRaptorID(ctx, "ZZZZZZZZZZZZZZZZZZZZZZZZ"); !errors.Is(err, fleet.ErrNotFound) {
		t.Fatalf("GetByRaptorID(unknown) error = %v", err)
	}
}

func TestCommissionCreateMapsUniqueViolations(t *testing.T) {
	repo := NewCommissionRepository(setupDB(t))
	ctx := context.Background()

	if _, err := repo.Create(ctx, createInput(testRaptorID, "k1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := repo.Create(ctx, createInput(testRaptorID, "k2"))
	if !errors.Is(err, fleet.ErrDuplicateIdentity) {
		t.Fatalf("Create(same raptor id) error = %v", err)
	}

	_, err = repo.Create(ctx, createInput("B1B2C3D4E5F6A1B2C3D4E5F6", "k1"))
	if !errors.Is(err, fleet.ErrDuplicateCredential) {
		t.Fatalf("Create(same api key) error = %v", err)
	}

	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("List() len = %d, want 1", len(items))
	}
}

func TestCommissionUpdates(t *testing.T) {
	repo := NewCommissionRepository(setupDB(t))
	ctx := context.Background()
	now := time.Now()

	if _, err := repo.Create(ctx, createInput(testRaptorID, "k1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.Create(ctx, createInput("B1B2C3D4E5F6A1B2C3D4E5F6", "k2")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tag := "v2.0.0"
	if err := repo.UpdateFirmwareTag(ctx, testRaptorID, &tag, now); err != nil {
		t.Fatalf("UpdateFirmwareTag() error = %v", err)
	}
	if err := repo.UpdateFirmwareTag(ctx, testRaptorID, &tag, now); err != nil {
		t.Fatalf("UpdateFirmwareTag(again) error = %v", err)
	}

	err := repo.UpdateAPIKey(ctx, testRaptorID, "k2", fleet.APIKeyDigest("k2"), now)
	if !errors.Is(err, fleet.ErrDuplicateCredential) {
		t.Fatalf("UpdateAPIKey(taken) error = %v", err)
	}
	if err := repo.UpdateAPIKey(ctx, testRaptorID, "k3", fleet.APIKeyDigest("k3"), now); err != nil {
		t.Fatalf("UpdateAPIKey() error = %v", err)
	}
	if err := repo.SetDisabled(ctx, testRaptorID, true, now); err != nil {
		t.Fatalf("SetDisabled() error = %v", err)
	}

	got, err := repo.GetByAPIKeyDigest(ctx, fleet.APIKeyDigest("k3"))
	if err != nil {
		t.Fatalf("GetByAPIKeyDigest() error = %v", err)
	}
	if got.APIKey != "k3" || got.FirmwareTagOrEmpty() != "v2.0.0" || !got.Disabled {
		t.Fatalf("commission after updates = %+v", got)
	}

	if err := repo.UpdateFirmwareTag(ctx, "ZZZZZZZZZZZZZZZZZZZZZZZZ", &tag, now); !errors.Is(err, fleet.ErrNotFound) {
		t.Fatalf("UpdateFirmwareTag(unknown) error = %v", err)
	}
}

func TestSiteRepositoryUpsertsSingleton(t *testing.T) {
	repo := NewSiteRepository(setupDB(t))
	ctx := context.Background()

	if _, err := repo.GetSite(ctx); !errors.Is(err, fleet.ErrNotFound) {
		t.Fatalf("GetSite(empty) error = %v", err)
	}
	if err := repo.PutSite(ctx, fleet.SiteInfo{Location: "plant-a", Client: "acme"}); err != nil {
		t.Fatalf("PutSite() error = %v", err)
	}
	if err := repo.PutSite(ctx, fleet.SiteInfo{Location: "plant-b", Client: "acme"}); err != nil {
		t.Fatalf("PutSite(update) error = %v", err)
	}

	site, err := repo.GetSite(ctx)
	if err != nil {
		t.Fatalf("GetSite() error = %v", err)
	}
	if site.Location != "plant-b" || site.Client != "acme" {
		t.Fatalf("GetSite() = %+v", site)
	}
}
