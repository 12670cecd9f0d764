package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/usecase/commissioning"
)

type commissionView struct {
	ID          uint64    `json:"id"`
	RaptorID    string    `json:"raptor_id"`
	FirmwareTag *string   `json:"firmware_tag"`
	Disabled    bool      `json:"disabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCommissionView(c fleet.Commission) commissionView {
	return commissionView{
		ID:          c.ID,
		RaptorID:    c.RaptorID,
		FirmwareTag: c.FirmwareTag,
		Disabled:    c.Disabled,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type commissionRequest struct {
	RaptorID    string  `json:"raptor_id"`
	APIKey      string  `json:"api_key"`
	FirmwareTag *string `json:"firmware_tag"`
}

func (a *API) handleListCommissions(w http.ResponseWriter, r *http.Request) {
	items, err := a.services.Registry.List(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	views := make([]commissionView, 0, len(items))
	for _, item := range items {
		views = append(views, toCommissionView(item))
	}
	respondJSON(w, http.StatusOK, map[string]any{"commissions": views})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req commissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	id, err := a.services.Registry.Register(r.Context(), commissioning.RegisterInput{
		RaptorID:    strings.TrimSpace(req.RaptorID),
		APIKey:      req.APIKey,
		FirmwareTag: req.FirmwareTag,
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (a *API) handleCommission(w http.ResponseWriter, r *http.Request) {
	var req commissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.services.Registry.Commission(r.Context(), commissioning.CommissionInput{
		RaptorID:    strings.TrimSpace(req.RaptorID),
		APIKey:      req.APIKey,
		FirmwareTag: req.FirmwareTag,
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]any{"id": result.ID, "created": result.Created})
}

func (a *API) handleVerifyKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	found, err := a.services.Registry.LookupByAPIKey(r.Context(), req.APIKey)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"commission": toCommissionView(found)})
}

func (a *API) handleGetCommission(w http.ResponseWriter, r *http.Request) {
	found, err := a.services.Registry.LookupByRaptorID(r.Context(), chi.URLParam(r, "raptorID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"commission": toCommissionView(found)})
}

func (a *API) handleUpdateFirmwareTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirmwareTag string `json:"firmware_tag"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.services.Registry.UpdateFirmwareTag(r.Context(), chi.URLParam(r, "raptorID"), req.FirmwareTag); err != nil {
		respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.services.Registry.RotateAPIKey(r.Context(), chi.URLParam(r, "raptorID"), req.APIKey); err != nil {
		respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSetDisabled(disabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raptorID := chi.URLParam(r, "raptorID")

		var err error
		if disabled {
			err = a.services.Registry.Decommission(r.Context(), raptorID)
		} else {
			err = a.services.Registry.Recommission(r.Context(), raptorID)
		}
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) handleGetSite(w http.ResponseWriter, r *http.Request) {
	site, err := a.services.Registry.SiteInfo(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"location": site.Location, "client": site.Client})
}

func (a *API) handlePutSite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string `json:"location"`
		Client   string `json:"client"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.services.Registry.SetSiteInfo(r.Context(), req.Location, req.Client); err != nil {
		respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
