package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"raptorfleet/internal/infrastructure/metrics"
	"raptorfleet/internal/usecase/commissioning"
	"raptorfleet/internal/usecase/firmware"
	"raptorfleet/internal/usecase/hardware"
	"raptorfleet/internal/usecase/provisioning"
	"raptorfleet/internal/usecase/telemetry"
)

const requestTimeout = 30 * time.Second

// Services are the usecases exposed over the admin API.
type Services struct {
	Registry        *commissioning.Registry
	Hardware        *hardware.Store
	Telemetry       *telemetry.Log
	TelemetryConfig *telemetry.ConfigStore
	Firmware        *firmware.Tracker
	Provisioning    *provisioning.Service
}

// Pinger reports whether the store is reachable.
type Pinger func(ctx context.Context) error

// API serves the fleet admin endpoints. Device traffic does not go through
// it, and no response ever carries an api key.
type API struct {
	services Services
	metrics  *metrics.Metrics
	ping     Pinger
}

func New(services Services, m *metrics.Metrics, ping Pinger) (*API, error) {
	switch {
	case services.Registry == nil:
		return nil, errors.New("commission registry is required")
	case services.Hardware == nil:
		return nil, errors.New("hardware store is required")
	case services.Telemetry == nil || services.TelemetryConfig == nil:
		return nil, errors.New("telemetry services are required")
	case services.Firmware == nil:
		return nil, errors.New("firmware tracker is required")
	case services.Provisioning == nil:
		return nil, errors.New("provisioning service is required")
	}
	return &API{services: services, metrics: m, ping: ping}, nil
}

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.observe)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", a.handleHealth)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", a.handleListCommissions)
			r.Post("/", a.handleRegister)
			r.Put("/", a.handleCommission)
			r.Post("/verify", a.handleVerifyKey)
			r.Get("/{raptorID}", a.handleGetCommission)
			r.Put("/{raptorID}/firmware-tag", a.handleUpdateFirmwareTag)
			r.Post("/{raptorID}/rotate-key", a.handleRotateKey)
			r.Post("/{raptorID}/decommission", a.handleSetDisabled(true))
			r.Post("/{raptorID}/recommission", a.handleSetDisabled(false))
		})

		r.Route("/hardware", func(r chi.Router) {
			r.Get("/", a.handleListHardware)
			r.Post("/", a.handleCreateHardware)
			r.Get("/{id}", a.handleGetHardware)
			r.Put("/{id}/parameters", a.handleUpdateParameters)
			r.Post("/{id}/enable", a.handleSetEnabled(true))
			r.Post("/{id}/disable", a.handleSetEnabled(false))
		})

		r.Route("/telemetry", func(r chi.Router) {
			r.Get("/", a.handleQueryTelemetry)
			r.Post("/", a.handleAppendTelemetry)
			r.Get("/count", a.handleCountTelemetry)
			r.Get("/backlog", a.handleBacklog)
		})

		r.Route("/firmware", func(r chi.Router) {
			r.Post("/", a.handleReportFirmware)
			r.Get("/latest", a.handleLatestFirmware)
			r.Get("/history", a.handleFirmwareHistory)
			r.Get("/reconcile/{raptorID}", a.handleReconcile)
		})

		r.Get("/telemetry-config", a.handleGetTelemetryConfig)
		r.Put("/telemetry-config", a.handlePutTelemetryConfig)

		r.Get("/site", a.handleGetSite)
		r.Put("/site", a.handlePutSite)

		r.Post("/provision", a.handleProvision)
		r.Get("/provision/schema", a.handleProvisionSchema)
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.ping != nil {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		if err := a.ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// observe records every request under its route pattern so path parameters
// do not explode the label space.
func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		a.metrics.ObserveRequest(r.Method, route, status, started)
	})
}
