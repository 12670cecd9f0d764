package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/usecase/provisioning"
)

const maxBodyBytes = 4 << 20

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// respondFailure maps a usecase error onto a status code.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		logging.Error(logging.WithAttrs(ctx, slog.String("component", "transport.httpapi")),
			"request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", errs.Loggable(err)),
		)
	}
	respondError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fleet.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fleet.ErrDuplicateIdentity), errors.Is(err, fleet.ErrDuplicateCredential):
		return http.StatusConflict
	case errors.Is(err, fleet.ErrInvalidIdentityLength),
		errors.Is(err, fleet.ErrMissingField),
		errors.Is(err, fleet.ErrInvalidCredential),
		errors.Is(err, blob.ErrNotText),
		errors.Is(err, blob.ErrUnknownEncoding),
		errors.Is(err, provisioning.ErrInvalidDocument),
		errors.Is(err, provisioning.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, fleet.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func queryUint(r *http.Request, key string) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, errors.New(key + " must be an RFC 3339 timestamp")
	}
	return &t, nil
}

// blobValue renders a payload inline when it holds JSON and as a string
// otherwise.
func blobValue(p blob.Payload) any {
	if json.Valid(p.Data) {
		return json.RawMessage(p.Data)
	}
	return p.String()
}

func optionalBlobValue(p *blob.Payload) any {
	if p == nil {
		return nil
	}
	return blobValue(*p)
}

// payloadFrom turns a request field back into a payload. A JSON string is
// stored as its text, anything else as the JSON the client sent.
func payloadFrom(raw json.RawMessage) blob.Payload {
	if len(raw) == 0 || string(raw) == "null" {
		return blob.Payload{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return blob.Text(s)
	}
	return blob.JSON(raw)
}

func optionalPayloadFrom(raw json.RawMessage) *blob.Payload {
	p := payloadFrom(raw)
	if p.IsEmpty() {
		return nil
	}
	return &p
}
