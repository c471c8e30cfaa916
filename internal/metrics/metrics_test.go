package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.ObserveRequest("solve", "ok", 3*time.Millisecond)
	m.ObserveRequest("solve", "ok", time.Millisecond)
	m.ObserveRequest("solve", "syntax_error", time.Millisecond)
	m.Warning("verification")
	m.RateLimited()

	if got := testutil.ToFloat64(m.RequestsCollector().WithLabelValues("solve", "ok")); got != 2 {
		t.Errorf("want 2 ok solves, got %g", got)
	}
	if got := testutil.ToFloat64(m.RequestsCollector().WithLabelValues("solve", "syntax_error")); got != 1 {
		t.Errorf("want 1 failed solve, got %g", got)
	}
	if got := testutil.ToFloat64(m.WarningsCollector().WithLabelValues("verification")); got != 1 {
		t.Errorf("want 1 warning, got %g", got)
	}
	if got := testutil.ToFloat64(m.RateLimitedCollector()); got != 1 {
		t.Errorf("want 1 rate limited, got %g", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("solve", "ok", time.Second)
	m.Warning("x")
	m.RateLimited()
	if m.Registry() != nil {
		t.Fatal("nil metrics has no registry")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("want 404 from nil handler, got %d", rec.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest("equilibrium", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`chemsolve_requests_total{kind="ok",op="equilibrium"} 1`,
		"chemsolve_solve_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition lacks %q", want)
		}
	}
}
