package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware())
	var seenReqID string
	r.Get("/calendars/{id}", func(w http.ResponseWriter, req *http.Request) {
		seenReqID = RequestIDFromContext(req.Context())
		w.WriteHeader(http.StatusInternalServerError)
	})

	before := testutil.ToFloat64(httpErrorsTotal.WithLabelValues(http.MethodGet, "/calendars/{id}", "500"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calendars/abc", nil))

	after := testutil.ToFloat64(httpErrorsTotal.WithLabelValues(http.MethodGet, "/calendars/{id}", "500"))
	if after-before != 1 {
		t.Fatalf("expected one error observation, got %v", after-before)
	}
	if seenReqID == "" {
		t.Fatalf("expected request id to be propagated into the context")
	}
}

func TestObserveCalDAV(t *testing.T) {
	before := testutil.ToFloat64(caldavOperations.WithLabelValues("PUT", "ok"))
	ObserveCalDAV("PUT", "ok")
	if got := testutil.ToFloat64(caldavOperations.WithLabelValues("PUT", "ok")) - before; got != 1 {
		t.Fatalf("expected counter increment, got %v", got)
	}
}

func TestRouteFromContextDefaultsToUnknown(t *testing.T) {
	if got := routeFromContext(context.Background()); got != "unknown" {
		t.Fatalf("expected unknown route, got %q", got)
	}
}
