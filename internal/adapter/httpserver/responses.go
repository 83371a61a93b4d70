// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the gateway's admin surface, the per-worker service API,
// and the user-configuration endpoints. The package follows clean
// architecture principles and keeps HTTP concerns separate from the
// gateway/worker/coordinator business logic.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/peter0524/service-fabric/internal/domain"
)

type errorEnvelope struct {
	Error     apiError `json:"error"`
	Timestamp string   `json:"timestamp"`
	Path      string   `json:"path"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
		codeStr = "CONFLICT"
	case errors.Is(err, domain.ErrServiceDisabled):
		code = http.StatusServiceUnavailable
		codeStr = "SERVICE_DISABLED"
	case errors.Is(err, domain.ErrBreakerOpen):
		code = http.StatusServiceUnavailable
		codeStr = "BREAKER_OPEN"
	case errors.Is(err, domain.ErrServiceUnavailable):
		code = http.StatusServiceUnavailable
		codeStr = "SERVICE_UNAVAILABLE"
	case errors.Is(err, domain.ErrTimeout):
		code = http.StatusGatewayTimeout
		codeStr = "TIMEOUT"
	}

	var path string
	if r != nil && r.URL != nil {
		path = r.URL.Path
	}
	writeJSON(w, code, errorEnvelope{
		Error:     apiError{Code: codeStr, Message: err.Error(), Details: details},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      path,
	})
}
