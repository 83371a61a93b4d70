package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/peter0524/service-fabric/internal/domain"
)

type respErr struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

func Test_writeError_Mapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid", domain.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"notfound", domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"conflict", domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"disabled", domain.ErrServiceDisabled, http.StatusServiceUnavailable, "SERVICE_DISABLED"},
		{"breaker", domain.ErrBreakerOpen, http.StatusServiceUnavailable, "BREAKER_OPEN"},
		{"unavailable", domain.ErrServiceUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"timeout", domain.ErrTimeout, http.StatusGatewayTimeout, "TIMEOUT"},
		{"internal", assertError("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x/y", nil)
			rw := httptest.NewRecorder()
			writeError(rw, r, c.err, nil)
			res := rw.Result()
			if res.StatusCode != c.wantStatus {
				t.Fatalf("status: got %d want %d", res.StatusCode, c.wantStatus)
			}
			var e respErr
			_ = json.NewDecoder(res.Body).Decode(&e)
			_ = res.Body.Close()
			if e.Error.Code != c.wantCode {
				t.Fatalf("code: got %s want %s", e.Error.Code, c.wantCode)
			}
			if e.Path != "/x/y" {
				t.Fatalf("path: got %q", e.Path)
			}
			if e.Timestamp == "" {
				t.Fatal("expected non-empty timestamp")
			}
		})
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }
