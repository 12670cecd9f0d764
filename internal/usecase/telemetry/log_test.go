package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/infrastructure/persistence/schema"
	sqliterepo "raptorfleet/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "raptorfleet/internal/infrastructure/persistence/sqlite/uow"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "fleet.sqlite") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
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
	return db
}

func setupLog(t *testing.T) *Log {
	t.Helper()
	db := openTestDB(t)
	return NewLog(sqliterepo.NewTelemetryRepository(db), sqliteuow.NewUnitOfWork(db, sqliteuow.WithRetryBudget(5*time.Second)))
}

func TestAppendWithoutTimestampKeepsOrder(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()

	payloads := []string{`{"v":1}`, `{"v":2}`, `{"v":3}`}
	for _, p := range payloads {
		if _, err := log.Append(ctx, blob.JSON([]byte(p)), nil); err != nil {
			t.Fatalf("Append(%s) error = %v", p, err)
		}
	}

	items, err := log.Query(ctx, QueryOptions{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(items) != len(payloads) {
		t.Fatalf("Query() len = %d, want %d", len(items), len(payloads))
	}
	for i, item := range items {
		if string(item.Data.Data) != payloads[i] {
			t.Fatalf("items[%d].Data = %q, want %q", i, item.Data.Data, payloads[i])
		}
		if item.Timestamp.IsZero() {
			t.Fatalf("items[%d].Timestamp is zero", i)
		}
		if i == 0 {
			continue
		}
		if item.ID <= items[i-1].ID {
			t.Fatalf("ids not increasing: %d then %d", items[i-1].ID, item.ID)
		}
		if item.Timestamp.Before(items[i-1].Timestamp) {
			t.Fatalf("timestamps decreasing: %v then %v", items[i-1].Timestamp, item.Timestamp)
		}
	}
}

func TestAppendRoundTripsBytes(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()

	raw := "  {\"temp\": 21.5,\n \"unit\":\"C\" }\t"
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.FixedZone("UTC+2", 2*60*60))
	id, err := log.Append(ctx, blob.Text(raw), &at)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	items, err := log.Query(ctx, QueryOptions{SinceID: id, Limit: 1})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(items) != 1 || string(items[0].Data.Data) != raw {
		t.Fatalf("Query() = %+v", items)
	}
	if !items[0].Timestamp.Equal(at) {
		t.Fatalf("Timestamp = %v, want %v", items[0].Timestamp, at)
	}
}

func TestQueryBoundsAreInclusive(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []uint64
	for i := 0; i < 5; i++ {
		at := start.Add(time.Duration(i) * time.Minute)
		id, err := log.Append(ctx, blob.JSON([]byte(`{}`)), &at)
		if err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
		ids = append(ids, id)
	}

	items, err := log.Query(ctx, QueryOptions{SinceID: ids[2]})
	if err != nil {
		t.Fatalf("Query(SinceID) error = %v", err)
	}
	if len(items) != 3 || items[0].ID != ids[2] {
		t.Fatalf("Query(SinceID) = %+v", items)
	}

	since := start.Add(3 * time.Minute)
	items, err = log.Query(ctx, QueryOptions{SinceTime: &since})
	if err != nil {
		t.Fatalf("Query(SinceTime) error = %v", err)
	}
	if len(items) != 2 || items[0].ID != ids[3] {
		t.Fatalf("Query(SinceTime) = %+v", items)
	}

	items, err = log.Query(ctx, QueryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Query(Limit) error = %v", err)
	}
	if len(items) != 2 || items[0].ID != ids[0] || items[1].ID != ids[1] {
		t.Fatalf("Query(Limit) = %+v", items)
	}
}

func TestCountAndBacklog(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()

	var last uint64
	for i := 0; i < 4; i++ {
		id, err := log.Append(ctx, blob.JSON([]byte(`{}`)), nil)
		if err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
		last = id
	}

	n, err := log.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 4 {
		t.Fatalf("Count() = %d", n)
	}

	items, err := log.Backlog(ctx, 3)
	if err != nil {
		t.Fatalf("Backlog() error = %v", err)
	}
	if len(items) != 3 || items[0].ID != last {
		t.Fatalf("Backlog() = %+v", items)
	}

	items, err = log.Backlog(ctx, 0)
	if err != nil {
		t.Fatalf("Backlog(default) error = %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("Backlog(default) len = %d", len(items))
	}
}

func TestConcurrentAppendsAllLand(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := log.Append(ctx, blob.JSON([]byte(`{"w":true}`)), nil); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("Append() error = %v", err)
	}

	n, err := log.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != writers {
		t.Fatalf("Count() = %d, want %d", n, writers)
	}

	items, err := log.Query(ctx, QueryOptions{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	for i := 1; i < len(items); i++ {
		if items[i].Timestamp.Before(items[i-1].Timestamp) {
			t.Fatalf("reading %d stamped %s before reading %d at %s", items[i].ID, items[i].Timestamp, items[i-1].ID, items[i-1].Timestamp)
		}
	}
}

func TestAppendReportsStoreUnavailableWhenDatabaseIsClosed(t *testing.T) {
	db := openTestDB(t)
	log := NewLog(sqliterepo.NewTelemetryRepository(db), sqliteuow.NewUnitOfWork(db, sqliteuow.WithRetryBudget(100*time.Millisecond)))
	ctx := context.Background()

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close sql db: %v", err)
	}

	if _, err := log.Append(ctx, blob.JSON([]byte("{}")), nil); !errors.Is(err, fleet.ErrStoreUnavailable) {
		t.Fatalf("Append() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := log.Count(ctx); !errors.Is(err, fleet.ErrStoreUnavailable) {
		t.Fatalf("Count() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestAppendRejectsInvalidText(t *testing.T) {
	log := setupLog(t)

	_, err := log.Append(context.Background(), blob.Payload{Encoding: blob.EncodingText, Data: []byte{0xc3, 0x28}}, nil)
	if !errors.Is(err, blob.ErrNotText) {
		t.Fatalf("Append() error = %v, want ErrNotText", err)
	}
}

func TestConfigStoreOverwritesSingleton(t *testing.T) {
	db := openTestDB(t)
	store := NewConfigStore(sqliterepo.NewTelemetryConfigRepository(db), sqliteuow.NewUnitOfWork(db))
	ctx := context.Background()

	if _, err := store.Get(ctx); !errors.Is(err, fleet.ErrNotFound) {
		t.Fatalf("Get(empty) error = %v", err)
	}

	mqtt := blob.Text(`{"broker":"mqtt.local","port":8883}`)
	shaping := blob.Text("interval = 30\n")
	if err := store.Put(ctx, mqtt, shaping); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, blob.Text(`{"broker":"other"}`), shaping); err != nil {
		t.Fatalf("Put(second) error = %v", err)
	}

	cfg, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cfg.MQTTConfig.String() != `{"broker":"other"}` || cfg.TelemetryConfig.String() != "interval = 30\n" {
		t.Fatalf("Get() = %+v", cfg)
	}

	var rows int64
	if err := db.Table("telemetry_configuration").Count(&rows).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("telemetry_configuration rows = %d, want 1", rows)
	}

	if err := store.Put(ctx, blob.Payload{}, shaping); err != nil {
		t.Fatalf("Put(empty mqtt) error = %v", err)
	}
	cfg, err = store.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !cfg.MQTTConfig.IsEmpty() || cfg.TelemetryConfig.String() != "interval = 30\n" {
		t.Fatalf("Get() after empty mqtt = %+v", cfg)
	}
}
