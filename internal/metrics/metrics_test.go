package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePushCountsByResult(t *testing.T) {
	m := New()
	m.ObservePush("sale", nil)
	m.ObservePush("sale", errors.New("offline"))
	m.ObservePush("sale", errors.New("offline"))

	if got := testutil.ToFloat64(m.pushesTotal.WithLabelValues("sale", "ok")); got != 1 {
		t.Fatalf("expected 1 ok push, got %v", got)
	}
	if got := testutil.ToFloat64(m.pushesTotal.WithLabelValues("sale", "error")); got != 2 {
		t.Fatalf("expected 2 failed pushes, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveFetch("products", nil)
	m.ObserveRequest(http.MethodGet, "/healthz", "200", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"sheets_fetch_total", "http_requests_total", "http_request_duration_seconds"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}
