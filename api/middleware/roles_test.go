package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/foodway/foodway-backend/pkg/enums"
	"github.com/foodway/foodway-backend/pkg/logger"
)

func TestRequireRole(t *testing.T) {
	guard := RequireRole(nil, enums.ActorRoleDelivery)

	cases := []struct {
		name   string
		actor  *Actor
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"customer", &Actor{ID: "c-1", Role: enums.ActorRoleCustomer}, http.StatusForbidden},
		{"service", &ServiceActor, http.StatusForbidden},
		{"worker", &Actor{ID: "w-1", Role: enums.ActorRoleDelivery}, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/worker/ping", nil)
		if tc.actor != nil {
			req = req.WithContext(WithActor(req.Context(), *tc.actor))
		}
		rec := httptest.NewRecorder()
		guard(okHandler()).ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.status, rec.Code)
		}
	}
}

func TestWorkerIDOnlyForDeliveryRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := WorkerIDFromContext(req.Context()); ok {
		t.Fatalf("expected no worker on a bare request")
	}
	if _, ok := WorkerIDFromContext(WithActor(req.Context(), ServiceActor)); ok {
		t.Fatalf("service actor is not a worker")
	}
	id, ok := WorkerIDFromContext(WithActor(req.Context(), Actor{ID: "w-9", Role: enums.ActorRoleDelivery}))
	if !ok || id != "w-9" {
		t.Fatalf("unexpected worker %q ok=%v", id, ok)
	}
}

func TestLoggingSkipsHealthyProbes(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "mw-test", Output: buf})
	handler := Logging(logg)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected probe to be quiet, got %s", buf.String())
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/worker/ping", nil))
	out := buf.String()
	for _, want := range []string{"request.complete", `"status":200`, `"path":"/api/v1/worker/ping"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestLoggingFlagsServerErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "mw-test", Output: buf})
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	Logging(logg)(failing).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if !strings.Contains(buf.String(), "request.failed") {
		t.Fatalf("expected failing probe to be logged, got %s", buf.String())
	}
}
