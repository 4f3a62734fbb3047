package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
)

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("response = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		status   Status
		wantCode int
		wantBody string
	}{
		{StatusHealthy, http.StatusOK, "OK"},
		{StatusDegraded, http.StatusOK, "DEGRADED"},
		{StatusUnhealthy, http.StatusServiceUnavailable, "UNHEALTHY"},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			agg := NewAggregator()
			agg.Register("sessions", static("sessions", tt.status))

			rec := httptest.NewRecorder()
			ReadinessHandler(agg)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.wantCode || rec.Body.String() != tt.wantBody {
				t.Errorf("response = %d %q, want %d %q", rec.Code, rec.Body.String(), tt.wantCode, tt.wantBody)
			}
		})
	}
}

func TestRegisterHandlers(t *testing.T) {
	agg := NewAggregator()
	agg.Register("sessions", static("sessions", StatusHealthy))
	agg.Register("jwks", NewCheckerFunc("jwks", func(context.Context) Result {
		return Degraded("refresh failed, serving cached keys").WithDetails(map[string]any{"keys": 2})
	}))

	router := httprouter.New()
	RegisterHandlers(router.Handler, agg)

	apitest.New().Handler(router).Get("/healthz").Expect(t).Status(http.StatusOK).Body("OK").End()
	apitest.New().Handler(router).Get("/readyz").Expect(t).Status(http.StatusOK).Body("DEGRADED").End()
	apitest.New().
		Handler(router).
		Get("/health").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.status", "degraded")).
		Assert(jsonpath.Equal("$.checks.sessions.status", "healthy")).
		Assert(jsonpath.Equal("$.checks.jwks.message", "refresh failed, serving cached keys")).
		Assert(jsonpath.Equal("$.checks.jwks.details.keys", float64(2))).
		End()
}

func TestDetailedHandler_Unhealthy(t *testing.T) {
	agg := NewAggregator()
	agg.Register("sessions", NewCheckerFunc("sessions", func(context.Context) Result {
		return Unhealthy("ping failed", errors.New("connection refused"))
	}))

	apitest.New().
		HandlerFunc(DetailedHandler(agg)).
		Get("/health").
		Expect(t).
		Status(http.StatusServiceUnavailable).
		Assert(jsonpath.Equal("$.status", "unhealthy")).
		Assert(jsonpath.Equal("$.checks.sessions.error", "connection refused")).
		End()
}
