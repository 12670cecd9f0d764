package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/usecase/telemetry"
)

type readingView struct {
	ID        uint64    `json:"id"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func toReadingViews(items []fleet.TelemetryReading) []readingView {
	views := make([]readingView, 0, len(items))
	for _, item := range items {
		views = append(views, readingView{ID: item.ID, Data: blobValue(item.Data), Timestamp: item.Timestamp})
	}
	return views
}

func (a *API) handleAppendTelemetry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data      json.RawMessage `json:"data"`
		Timestamp *time.Time      `json:"timestamp"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	id, err := a.services.Telemetry.Append(r.Context(), payloadFrom(req.Data), req.Timestamp)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (a *API) handleQueryTelemetry(w http.ResponseWriter, r *http.Request) {
	sinceID, err := queryUint(r, "since_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	sinceTime, err := queryTime(r, "since_time")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	items, err := a.services.Telemetry.Query(r.Context(), telemetry.QueryOptions{
		SinceID:   sinceID,
		SinceTime: sinceTime,
		Limit:     limit,
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"readings": toReadingViews(items)})
}

func (a *API) handleCountTelemetry(w http.ResponseWriter, r *http.Request) {
	n, err := a.services.Telemetry.Count(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (a *API) handleBacklog(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	items, err := a.services.Telemetry.Backlog(r.Context(), limit)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"readings": toReadingViews(items)})
}

func (a *API) handleGetTelemetryConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.services.TelemetryConfig.Get(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"mqtt_config":      blobValue(cfg.MQTTConfig),
		"telemetry_config": blobValue(cfg.TelemetryConfig),
		"updated_at":       cfg.UpdatedAt,
	})
}

func (a *API) handlePutTelemetryConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MQTTConfig      json.RawMessage `json:"mqtt_config"`
		TelemetryConfig json.RawMessage `json:"telemetry_config"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.services.TelemetryConfig.Put(r.Context(), payloadFrom(req.MQTTConfig), payloadFrom(req.TelemetryConfig)); err != nil {
		respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
