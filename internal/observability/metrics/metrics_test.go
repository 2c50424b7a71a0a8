package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRenderSwapMetrics(t *testing.T) {
	c := newCollector()
	c.observeSwap("settled", false, 2*time.Millisecond)
	c.observeSwap("settled", true, 20*time.Millisecond)
	c.observeSwap("ROUTER_CALL_FAILED", false, 10*time.Second)

	out := c.render()
	for _, want := range []string{
		`swaprelay_swaps_total{outcome="ROUTER_CALL_FAILED"} 1`,
		`swaprelay_swaps_total{outcome="settled"} 2`,
		`swaprelay_zero_output_settlements_total 1`,
		`swaprelay_swap_duration_seconds_bucket{le="0.005"} 1`,
		`swaprelay_swap_duration_seconds_bucket{le="0.05"} 2`,
		`swaprelay_swap_duration_seconds_bucket{le="+Inf"} 3`,
		`swaprelay_swap_duration_seconds_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderHTTPMetrics(t *testing.T) {
	c := newCollector()
	c.observeHTTP("/api/v1/swaps", http.MethodPost, http.StatusOK, 30*time.Millisecond)
	c.observeHTTP("/api/v1/swaps", http.MethodPost, http.StatusInternalServerError, 3*time.Second)

	rec := httptest.NewRecorder()
	c.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	for _, want := range []string{
		`swaprelay_http_requests_total{handler="/api/v1/swaps",method="POST",code="200"} 1`,
		`swaprelay_http_requests_total{handler="/api/v1/swaps",method="POST",code="500"} 1`,
		`swaprelay_http_request_errors_total{handler="/api/v1/swaps",method="POST"} 1`,
		`swaprelay_http_request_duration_seconds_bucket{handler="/api/v1/swaps",method="POST",le="0.05"} 1`,
		`swaprelay_http_request_duration_seconds_count{handler="/api/v1/swaps",method="POST"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestEscapeLabels(t *testing.T) {
	if got := escape("a\"b\\c\nd"); got != `a\"b\\cd` {
		t.Fatalf("unexpected escape result %q", got)
	}
}
