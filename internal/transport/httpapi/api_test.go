package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"raptorfleet/internal/infrastructure/cache"
	"raptorfleet/internal/infrastructure/metrics"
	"raptorfleet/internal/infrastructure/persistence/schema"
	sqliterepo "raptorfleet/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "raptorfleet/internal/infrastructure/persistence/sqlite/uow"
	"raptorfleet/internal/usecase/commissioning"
	"raptorfleet/internal/usecase/firmware"
	"raptorfleet/internal/usecase/hardware"
	"raptorfleet/internal/usecase/provisioning"
	"raptorfleet/internal/usecase/telemetry"
)

const unitID = "A1B2C3D4E5F6A1B2C3D4E5F6"

func newTestServer(t *testing.T) *httptest.Server {
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

	uow := sqliteuow.NewUnitOfWork(db)
	commissions := sqliterepo.NewCommissionRepository(db)
	sites := sqliterepo.NewSiteRepository(db)
	hardwareRepo := sqliterepo.NewHardwareRepository(db)
	configs := sqliterepo.NewTelemetryConfigRepository(db)

	api, err := New(Services{
		Registry:        commissioning.NewRegistry(commissions, sites, uow, nil),
		Hardware:        hardware.NewStore(hardwareRepo, uow, nil),
		Telemetry:       telemetry.NewLog(sqliterepo.NewTelemetryRepository(db), uow),
		TelemetryConfig: telemetry.NewConfigStore(configs, uow),
		Firmware:        firmware.NewTracker(sqliterepo.NewFirmwareRepository(db), commissions, uow, nil),
		Provisioning:    provisioning.NewService(configs, hardwareRepo, sites, uow, cache.NewMetaCache(db), nil),
	}, metrics.New(), sqlDB.PingContext)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestCommissionEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/v1/commissions", `{"raptor_id":"`+unitID+`","api_key":"secret-1","firmware_tag":"v1"}`)
	if status != http.StatusCreated || body["id"] != float64(1) {
		t.Fatalf("register = %d %v", status, body)
	}

	status, body = do(t, srv, http.MethodPost, "/v1/commissions", `{"raptor_id":"`+unitID+`","api_key":"secret-2"}`)
	if status != http.StatusConflict {
		t.Fatalf("duplicate register = %d %v", status, body)
	}

	status, _ = do(t, srv, http.MethodPost, "/v1/commissions", `{"raptor_id":"short","api_key":"secret-3"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("short id register = %d", status)
	}

	status, body = do(t, srv, http.MethodGet, "/v1/commissions/"+unitID, "")
	if status != http.StatusOK {
		t.Fatalf("get = %d %v", status, body)
	}
	commission := body["commission"].(map[string]any)
	if commission["raptor_id"] != unitID || commission["firmware_tag"] != "v1" {
		t.Fatalf("get body = %v", commission)
	}
	if _, ok := commission["api_key"]; ok {
		t.Fatalf("api key leaked: %v", commission)
	}

	status, _ = do(t, srv, http.MethodPost, "/v1/commissions/verify", `{"api_key":"secret-1"}`)
	if status != http.StatusOK {
		t.Fatalf("verify = %d", status)
	}
	status, _ = do(t, srv, http.MethodPost, "/v1/commissions/verify", `{"api_key":"nope"}`)
	if status != http.StatusNotFound {
		t.Fatalf("verify unknown = %d", status)
	}

	status, _ = do(t, srv, http.MethodGet, "/v1/commissions/ZZZZZZZZZZZZZZZZZZZZZZZZ", "")
	if status != http.StatusNotFound {
		t.Fatalf("get unknown = %d", status)
	}
}

func TestHardwareEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/v1/hardware", `{"hardware_type":"sensor","driver_path":"","parameters":{},"external_ref":"ext-1"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("create without driver = %d %v", status, body)
	}

	status, body = do(t, srv, http.MethodPost, "/v1/hardware", `{"hardware_type":"sensor","driver_path":"drivers.Sensor","parameters":{"port":502},"external_ref":"ext-1"}`)
	if status != http.StatusCreated {
		t.Fatalf("create = %d %v", status, body)
	}

	status, body = do(t, srv, http.MethodGet, "/v1/hardware", "")
	if status != http.StatusOK {
		t.Fatalf("list = %d %v", status, body)
	}
	items := body["hardware"].([]any)
	if len(items) != 1 {
		t.Fatalf("list = %v", items)
	}
	params := items[0].(map[string]any)["parameters"].(map[string]any)
	if params["port"] != float64(502) {
		t.Fatalf("parameters = %v", params)
	}

	status, _ = do(t, srv, http.MethodPost, "/v1/hardware/1/disable", "")
	if status != http.StatusNoContent {
		t.Fatalf("disable = %d", status)
	}
	_, body = do(t, srv, http.MethodGet, "/v1/hardware", "")
	if len(body["hardware"].([]any)) != 0 {
		t.Fatalf("list after disable = %v", body)
	}
	_, body = do(t, srv, http.MethodGet, "/v1/hardware?type=sens", "")
	if len(body["hardware"].([]any)) != 1 {
		t.Fatalf("list by type = %v", body)
	}

	status, _ = do(t, srv, http.MethodGet, "/v1/hardware/99", "")
	if status != http.StatusNotFound {
		t.Fatalf("get unknown = %d", status)
	}
	status, _ = do(t, srv, http.MethodGet, "/v1/hardware/abc", "")
	if status != http.StatusBadRequest {
		t.Fatalf("get bad id = %d", status)
	}
}

func TestTelemetryAndFirmwareEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, data := range []string{`{"v":1}`, `{"v":2}`} {
		status, body := do(t, srv, http.MethodPost, "/v1/telemetry", `{"data":`+data+`}`)
		if status != http.StatusCreated {
			t.Fatalf("append = %d %v", status, body)
		}
	}

	status, body := do(t, srv, http.MethodGet, "/v1/telemetry?since_id=2", "")
	if status != http.StatusOK {
		t.Fatalf("query = %d %v", status, body)
	}
	readings := body["readings"].([]any)
	if len(readings) != 1 || readings[0].(map[string]any)["data"].(map[string]any)["v"] != float64(2) {
		t.Fatalf("query = %v", readings)
	}

	_, body = do(t, srv, http.MethodGet, "/v1/telemetry/count", "")
	if body["count"] != float64(2) {
		t.Fatalf("count = %v", body)
	}

	status, _ = do(t, srv, http.MethodGet, "/v1/firmware/latest", "")
	if status != http.StatusNotFound {
		t.Fatalf("latest empty = %d", status)
	}
	status, _ = do(t, srv, http.MethodPost, "/v1/firmware", `{"version_tag":"v3.1.0"}`)
	if status != http.StatusCreated {
		t.Fatalf("report = %d", status)
	}
	_, body = do(t, srv, http.MethodGet, "/v1/firmware/latest", "")
	if body["version_tag"] != "v3.1.0" {
		t.Fatalf("latest = %v", body)
	}

	status, _ = do(t, srv, http.MethodGet, "/v1/telemetry-config", "")
	if status != http.StatusNotFound {
		t.Fatalf("config empty = %d", status)
	}
	status, _ = do(t, srv, http.MethodPut, "/v1/telemetry-config", `{"mqtt_config":{"broker":"b"},"telemetry_config":"interval=5"}`)
	if status != http.StatusNoContent {
		t.Fatalf("config put = %d", status)
	}
	_, body = do(t, srv, http.MethodGet, "/v1/telemetry-config", "")
	if body["telemetry_config"] != "interval=5" {
		t.Fatalf("config = %v", body)
	}
}

func TestProvisionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	doc := `{
  "mqtt": {"broker": "b", "port": 1883, "username": "u", "password": "p", "client_id": "c"},
  "telemetry": {"mode": "mqtt", "interval": 10, "telemetry_path": "t"},
  "hardware": {"bms": [{"driver_path": "drivers.BMS", "parameters": {}, "crem3_id": "x"}]},
  "raptor": {"location": "L", "client": "C"}
}`
	status, body := do(t, srv, http.MethodPost, "/v1/provision", doc)
	if status != http.StatusOK || body["hardware_created"] != float64(1) {
		t.Fatalf("provision = %d %v", status, body)
	}

	_, body = do(t, srv, http.MethodGet, "/v1/site", "")
	if body["location"] != "L" || body["client"] != "C" {
		t.Fatalf("site = %v", body)
	}

	status, body = do(t, srv, http.MethodPost, "/v1/provision", `{"mqtt": {}}`)
	if status != http.StatusBadRequest {
		t.Fatalf("provision invalid = %d %v", status, body)
	}

	status, body = do(t, srv, http.MethodGet, "/v1/provision/schema", "")
	if status != http.StatusOK || body["required"] == nil {
		t.Fatalf("schema = %d %v", status, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/healthz", "")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", status, body)
	}

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), `raptorfleet_http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("metrics missing healthz sample:\n%s", raw)
	}
}
