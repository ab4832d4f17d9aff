package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

// writeError answers with a failed result so the client sees one shape
// whether the failure came from a service or from the HTTP layer.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, domain.Result[struct{}]{Status: status, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeResult answers with the result itself, using its status as HTTP status.
func writeResult[T any](w http.ResponseWriter, res domain.Result[T], logger *zap.Logger) {
	if res.Status >= http.StatusInternalServerError {
		logger.Error("operation failed", zap.Int("status", res.Status), zap.String("error", res.Error))
	}
	writeJSON(w, res.Status, res)
}

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body into v, answering 400 when it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// decodeUpdate decodes like decodeBody and also returns the top-level keys the
// client sent as an explicit null, which an update treats as "clear".
func decodeUpdate(w http.ResponseWriter, r *http.Request, v any) ([]string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err == nil {
		err = json.Unmarshal(body, v)
	}
	var fields map[string]json.RawMessage
	if err == nil {
		err = json.Unmarshal(body, &fields)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}

	var unset []string
	for k, raw := range fields {
		if string(raw) == "null" {
			unset = append(unset, k)
		}
	}
	return unset, true
}

// handleServiceError maps errors raised outside a service Result (auth, request
// parsing, store outages surfaced by the breaker) to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, domain.StatusFor(err), "internal server error")
	}
}
