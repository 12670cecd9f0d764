package provisioning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/infrastructure/cache"
	"raptorfleet/internal/infrastructure/persistence/schema"
	sqliterepo "raptorfleet/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "raptorfleet/internal/infrastructure/persistence/sqlite/uow"
)

type fixture struct {
	service  *Service
	hardware *sqliterepo.HardwareRepository
	configs  *sqliterepo.TelemetryConfigRepository
	sites    *sqliterepo.SiteRepository
	telem    *sqliterepo.TelemetryRepository
}

func setup(t *testing.T) fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "fleet.sqlite") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if _, err := schema.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := fixture{
		hardware: sqliterepo.NewHardwareRepository(db),
		configs:  sqliterepo.NewTelemetryConfigRepository(db),
		sites:    sqliterepo.NewSiteRepository(db),
		telem:    sqliterepo.NewTelemetryRepository(db),
	}
	f.service = NewService(f.configs, f.hardware, f.sites, sqliteuow.NewUnitOfWork(db), cache.NewMetaCache(db), nil)
	return f
}

func TestApplyReplacesConfiguration(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// A stale row and a telemetry reading from before provisioning.
	if _, err := f.hardware.Create(ctx, fleet.HardwareInstance{
		HardwareType: "old", DriverPath: "drivers.Old", Parameters: blob.JSON([]byte("{}")), Enabled: true, ExternalRef: "old-1",
	}); err != nil {
		t.Fatalf("seed hardware: %v", err)
	}
	if _, err := f.telem.Append(ctx, fleet.TelemetryReading{Data: blob.JSON([]byte(`{"kept":true}`))}); err != nil {
		t.Fatalf("seed telemetry: %v", err)
	}

	doc, err := Parse(FormatJSON, []byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	result, err := f.service.Apply(ctx, doc, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.HardwareCreated != 3 || result.HardwareRemoved != 1 || result.Skipped || result.Digest == "" {
		t.Fatalf("Apply() = %+v", result)
	}

	items, err := f.hardware.ListByType(ctx, "")
	if err != nil {
		t.Fatalf("ListByType() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("hardware rows = %d, want 3", len(items))
	}
	// Types are inserted in name order, entries in document order.
	if items[0].HardwareType != "bms" || items[0].ExternalRef != "bms-a" || items[2].HardwareType != "inverter" {
		t.Fatalf("hardware order = %+v", items)
	}
	if items[0].Parameters.String() != `{"unit":1}` || items[0].ScanGroups.String() != `[[1,2]]` || items[0].Devices == nil {
		t.Fatalf("bms-a = %+v", items[0])
	}
	if items[1].Enabled || items[1].ScanGroups.String() != "[]" || items[1].Devices != nil {
		t.Fatalf("bms-b = %+v", items[1])
	}
	if items[2].ExternalRef != "17" {
		t.Fatalf("inverter external ref = %q", items[2].ExternalRef)
	}

	cfg, err := f.configs.Get(ctx)
	if err != nil {
		t.Fatalf("configs.Get() error = %v", err)
	}
	if cfg.MQTTConfig.String() != `{"broker":"mqtt.example.com","client_id":"raptor-1","format":"hier-1","password":"p","port":8883,"qos":1,"username":"u"}` {
		t.Fatalf("mqtt config = %s", cfg.MQTTConfig)
	}

	site, err := f.sites.GetSite(ctx)
	if err != nil {
		t.Fatalf("GetSite() error = %v", err)
	}
	if site.Location != "Depot 4" || site.Client != "Acme" {
		t.Fatalf("GetSite() = %+v", site)
	}

	n, err := f.telem.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("telemetry rows = %d, want history kept", n)
	}
}

func TestApplySkipsUnchangedDocument(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc, err := Parse(FormatJSON, []byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	first, err := f.service.Apply(ctx, doc, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	second, err := f.service.Apply(ctx, doc, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply(second) error = %v", err)
	}
	if !second.Skipped || second.Digest != first.Digest {
		t.Fatalf("Apply(second) = %+v", second)
	}

	forced, err := f.service.Apply(ctx, doc, ApplyOptions{Force: true})
	if err != nil {
		t.Fatalf("Apply(force) error = %v", err)
	}
	if forced.Skipped || forced.HardwareRemoved != 3 || forced.HardwareCreated != 3 {
		t.Fatalf("Apply(force) = %+v", forced)
	}

	digest, at, found := f.service.LastApplied(ctx)
	if !found || digest != first.Digest || at.IsZero() {
		t.Fatalf("LastApplied() = %q, %v, %v", digest, at, found)
	}
}

func TestApplyRewritesStoreThatDriftedFromDocument(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc, err := Parse(FormatJSON, []byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := f.service.Apply(ctx, doc, ApplyOptions{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	drifts := []struct {
		name  string
		drift func() error
	}{
		{
			name: "hardware wiped",
			drift: func() error {
				_, err := f.hardware.DeleteAll(ctx)
				return err
			},
		},
		{
			name: "hardware disabled",
			drift: func() error {
				rows, err := f.hardware.ListByType(ctx, "")
				if err != nil {
					return err
				}
				return f.hardware.SetEnabled(ctx, rows[0].ID, !rows[0].Enabled)
			},
		},
		{
			name: "parameters edited",
			drift: func() error {
				rows, err := f.hardware.ListByType(ctx, "")
				if err != nil {
					return err
				}
				return f.hardware.UpdateParameters(ctx, rows[len(rows)-1].ID, blob.JSON([]byte(`{"unit":9}`)))
			},
		},
		{
			name: "telemetry configuration replaced",
			drift: func() error {
				return f.configs.Put(ctx, fleet.TelemetryConfiguration{
					MQTTConfig:      blob.JSON([]byte(`{"broker":"other"}`)),
					TelemetryConfig: blob.JSON([]byte(`{}`)),
				})
			},
		},
		{
			name: "site changed",
			drift: func() error {
				return f.sites.PutSite(ctx, fleet.SiteInfo{Location: "elsewhere"})
			},
		},
	}

	for _, tt := range drifts {
		if err := tt.drift(); err != nil {
			t.Fatalf("%s: drift error = %v", tt.name, err)
		}
		result, err := f.service.Apply(ctx, doc, ApplyOptions{})
		if err != nil {
			t.Fatalf("%s: Apply() error = %v", tt.name, err)
		}
		if result.Skipped || result.HardwareCreated != 3 {
			t.Fatalf("%s: Apply() = %+v, want a full rewrite", tt.name, result)
		}
		rows, err := f.hardware.ListByType(ctx, "")
		if err != nil {
			t.Fatalf("%s: ListByType() error = %v", tt.name, err)
		}
		if len(rows) != 3 {
			t.Fatalf("%s: hardware rows = %d, want 3", tt.name, len(rows))
		}
	}

	again, err := f.service.Apply(ctx, doc, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply(again) error = %v", err)
	}
	if !again.Skipped {
		t.Fatalf("Apply(again) = %+v, want skipped once the store matches", again)
	}
}

func TestApplyFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "raptor.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}

	result, err := f.service.ApplyFile(ctx, path, ApplyOptions{})
	if err != nil {
		t.Fatalf("ApplyFile() error = %v", err)
	}
	if result.HardwareCreated != 3 {
		t.Fatalf("ApplyFile() = %+v", result)
	}

	bad := filepath.Join(t.TempDir(), "raptor.json")
	if err := os.WriteFile(bad, []byte(`{"mqtt": {}}`), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}
	if _, err := f.service.ApplyFile(ctx, bad, ApplyOptions{}); !errors.Is(err, fleet.ErrMissingField) {
		t.Fatalf("ApplyFile(bad) error = %v", err)
	}

	items, err := f.hardware.ListByType(ctx, "")
	if err != nil {
		t.Fatalf("ListByType() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("rejected document changed hardware: %d rows", len(items))
	}
}
