package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (a *API) handleReportFirmware(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VersionTag string     `json:"version_tag"`
		Timestamp  *time.Time `json:"timestamp"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	id, err := a.services.Firmware.Report(r.Context(), req.VersionTag, req.Timestamp)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (a *API) handleLatestFirmware(w http.ResponseWriter, r *http.Request) {
	version, err := a.services.Firmware.LatestVersion(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"version_tag": version})
}

func (a *API) handleFirmwareHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	items, err := a.services.Firmware.History(r.Context(), limit)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	type reportView struct {
		ID         uint64    `json:"id"`
		VersionTag string    `json:"version_tag"`
		Timestamp  time.Time `json:"timestamp"`
	}
	views := make([]reportView, 0, len(items))
	for _, item := range items {
		views = append(views, reportView{ID: item.ID, VersionTag: item.VersionTag, Timestamp: item.Timestamp})
	}
	respondJSON(w, http.StatusOK, map[string]any{"reports": views})
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	drift, err := a.services.Firmware.Reconcile(r.Context(), chi.URLParam(r, "raptorID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"raptor_id":    drift.RaptorID,
		"registry_tag": drift.RegistryTag,
		"reported_tag": drift.ReportedTag,
		"has_report":   drift.HasReport,
		"in_sync":      drift.InSync,
	})
}
