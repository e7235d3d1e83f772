package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"llamabridge/internal/session"
)

// TestMetricsMiddleware_SessionRoutesUsePattern checks that per-session routes
// are labeled by pattern so session ids never reach the label set.
func TestMetricsMiddleware_SessionRoutesUsePattern(t *testing.T) {
	h := NewMux(&mockService{})
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/sessions/{id}/load", http.MethodPost, "200"))
	if w := postJSON(t, h, "/sessions/s1/load", `{"path":"/m.gguf"}`); w.Code != http.StatusOK {
		t.Fatalf("load=%d", w.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/sessions/{id}/load", http.MethodPost, "200"))
	if after-before != 1 {
		t.Fatalf("counter delta=%v", after-before)
	}

	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if bytes.Contains(mrr.Body.Bytes(), []byte(`path="/sessions/s1/load"`)) {
		t.Fatalf("raw session path leaked into metrics labels")
	}
}

func TestMetricsMiddleware_BusyCountsBackpressure(t *testing.T) {
	h := NewMux(&mockService{genErr: session.ErrBusy})
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("busy"))
	if w := postJSON(t, h, "/generate", `{"prompt":"hi"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("generate=%d", w.Code)
	}
	if d := testutil.ToFloat64(backpressureTotal.WithLabelValues("busy")) - before; d != 1 {
		t.Fatalf("backpressure delta=%v", d)
	}
}

func TestItoa(t *testing.T) {
	for n, want := range map[int]string{0: "0", 7: "7", 200: "200", 507: "507"} {
		if got := itoa(n); got != want {
			t.Fatalf("itoa(%d)=%q", n, got)
		}
	}
}
