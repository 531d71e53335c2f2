package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"marketlens/internal/breaker"
	"marketlens/internal/logger"
	"marketlens/internal/model"
)

// errBadRequest marks missing or malformed query parameters.
var errBadRequest = errors.New("bad request")

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrUnknownTimeframe), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, breaker.ErrOpen):
		return http.StatusServiceUnavailable
	}
	var ue *model.UpstreamError
	if errors.As(err, &ue) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "err", err)
	}
}

// writeError logs server-side failures and writes {"error": msg}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code >= 500 {
		slog.Error("request failed", append([]any{"path", r.URL.Path, "err", err}, logger.LogWithTrace(r.Context())...)...)
	}
	writeJSON(w, code, ErrorBody{Error: err.Error()})
}
