package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/backend"
)

const maxRequestBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// errorPayload is the failure shape shared with the backend.
type errorPayload struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

func payloadFor(err error) errorPayload {
	be, ok := backend.AsError(err)
	if !ok {
		return errorPayload{Error: err.Error()}
	}
	return errorPayload{Error: be.Message, Details: be.Details, ErrorType: be.Type}
}

// mirroredStatus returns the backend's own non-2xx status, or 500 for local
// and unexpected failures.
func mirroredStatus(err error) int {
	var be *backend.Error
	if errors.As(err, &be) && be.Kind == backend.KindBackend && be.StatusCode >= 400 {
		return be.StatusCode
	}
	return http.StatusInternalServerError
}
