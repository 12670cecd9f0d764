package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/usecase/hardware"
)

type hardwareView struct {
	ID           uint64 `json:"id"`
	HardwareType string `json:"hardware_type"`
	DriverPath   string `json:"driver_path"`
	Parameters   any    `json:"parameters"`
	ScanGroups   any    `json:"scan_groups"`
	Devices      any    `json:"devices"`
	Enabled      bool   `json:"enabled"`
	ExternalRef  string `json:"external_ref"`
}

func toHardwareView(h fleet.HardwareInstance) hardwareView {
	return hardwareView{
		ID:           h.ID,
		HardwareType: h.HardwareType,
		DriverPath:   h.DriverPath,
		Parameters:   blobValue(h.Parameters),
		ScanGroups:   optionalBlobValue(h.ScanGroups),
		Devices:      optionalBlobValue(h.Devices),
		Enabled:      h.Enabled,
		ExternalRef:  h.ExternalRef,
	}
}

func hardwareID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.New("hardware id must be a positive integer")
	}
	return id, nil
}

// handleListHardware lists by type when ?type= is given and the enabled
// instances otherwise.
func (a *API) handleListHardware(w http.ResponseWriter, r *http.Request) {
	views := []hardwareView{}

	if hardwareType, ok := r.URL.Query()["type"]; ok {
		items, err := a.services.Hardware.ListByType(r.Context(), hardwareType[0])
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		for _, item := range items {
			views = append(views, toHardwareView(item))
		}
		respondJSON(w, http.StatusOK, map[string]any{"hardware": views})
		return
	}

	for item, err := range a.services.Hardware.ListEnabled(r.Context()) {
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		views = append(views, toHardwareView(item))
	}
	respondJSON(w, http.StatusOK, map[string]any{"hardware": views})
}

func (a *API) handleCreateHardware(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HardwareType string          `json:"hardware_type"`
		DriverPath   string          `json:"driver_path"`
		Parameters   json.RawMessage `json:"parameters"`
		ScanGroups   json.RawMessage `json:"scan_groups"`
		Devices      json.RawMessage `json:"devices"`
		ExternalRef  string          `json:"external_ref"`
		Enabled      *bool           `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	id, err := a.services.Hardware.CreateInstance(r.Context(), hardware.CreateInstanceInput{
		HardwareType: req.HardwareType,
		DriverPath:   req.DriverPath,
		Parameters:   payloadFrom(req.Parameters),
		ScanGroups:   optionalPayloadFrom(req.ScanGroups),
		Devices:      optionalPayloadFrom(req.Devices),
		ExternalRef:  req.ExternalRef,
		Enabled:      req.Enabled,
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (a *API) handleGetHardware(w http.ResponseWriter, r *http.Request) {
	id, err := hardwareID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	instance, err := a.services.Hardware.Get(r.Context(), id)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"hardware": toHardwareView(instance)})
}

func (a *API) handleUpdateParameters(w http.ResponseWriter, r *http.Request) {
	id, err := hardwareID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.services.Hardware.UpdateParameters(r.Context(), id, payloadFrom(req.Parameters)); err != nil {
		respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := hardwareID(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.services.Hardware.SetEnabled(r.Context(), id, enabled); err != nil {
			respondFailure(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
