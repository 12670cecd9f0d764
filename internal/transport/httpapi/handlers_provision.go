package httpapi

import (
	"io"
	"net/http"
	"strings"

	"raptorfleet/internal/usecase/provisioning"
)

// handleProvision applies a raw document. The format comes from ?format=
// and falls back to the Content-Type, then JSON.
func (a *API) handleProvision(w http.ResponseWriter, r *http.Request) {
	format, err := requestFormat(r)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	doc, err := provisioning.Parse(format, data)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	result, err := a.services.Provisioning.Apply(r.Context(), doc, provisioning.ApplyOptions{
		Force: r.URL.Query().Get("force") == "true",
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"digest":           result.Digest,
		"skipped":          result.Skipped,
		"hardware_created": result.HardwareCreated,
		"hardware_removed": result.HardwareRemoved,
	})
}

func (a *API) handleProvisionSchema(w http.ResponseWriter, r *http.Request) {
	data, err := provisioning.Schema()
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func requestFormat(r *http.Request) (provisioning.Format, error) {
	if raw := r.URL.Query().Get("format"); raw != "" {
		return provisioning.ParseFormat(raw)
	}
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "yaml"):
		return provisioning.FormatYAML, nil
	case strings.Contains(contentType, "toml"):
		return provisioning.FormatTOML, nil
	default:
		return provisioning.FormatJSON, nil
	}
}
