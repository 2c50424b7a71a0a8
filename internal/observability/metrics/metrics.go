package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestKey struct {
	handler string
	method  string
	code    string
}

type routeKey struct {
	handler string
	method  string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu          sync.Mutex
	requests    map[requestKey]uint64
	errors      map[routeKey]uint64
	latency     map[routeKey]*histogram
	swaps       map[string]uint64
	zeroOutput  uint64
	swapLatency *histogram
}

func newCollector() *collector {
	return &collector{
		requests:    make(map[requestKey]uint64),
		errors:      make(map[routeKey]uint64),
		latency:     make(map[routeKey]*histogram),
		swaps:       make(map[string]uint64),
		swapLatency: newHistogram(swapBuckets),
	}
}

var (
	httpBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	swapBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

	defaultCollector = newCollector()
)

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	defaultCollector.observeHTTP(handler, method, status, duration)
}

// ObserveSwap records one relay invocation. outcome is "settled" or the
// error code of the failure.
func ObserveSwap(outcome string, zeroOutput bool, duration time.Duration) {
	defaultCollector.observeSwap(outcome, zeroOutput, duration)
}

func (c *collector) observeHTTP(handler, method string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests[requestKey{handler: handler, method: method, code: strconv.Itoa(status)}]++
	key := routeKey{handler: handler, method: method}
	if status >= 500 {
		c.errors[key]++
	}
	hist := c.latency[key]
	if hist == nil {
		hist = newHistogram(httpBuckets)
		c.latency[key] = hist
	}
	hist.observe(duration.Seconds())
}

func (c *collector) observeSwap(outcome string, zeroOutput bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.swaps[outcome]++
	if zeroOutput {
		c.zeroOutput++
	}
	c.swapLatency.observe(duration.Seconds())
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	// 超出最后一个桶的值只计入 +Inf，即 h.count。
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			return
		}
	}
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return defaultCollector.handler()
}

func (c *collector) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, c.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var builder strings.Builder
	builder.Grow(2048)

	builder.WriteString("# HELP swaprelay_swaps_total Relay invocations by outcome.\n")
	builder.WriteString("# TYPE swaprelay_swaps_total counter\n")
	outcomes := make([]string, 0, len(c.swaps))
	for outcome := range c.swaps {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Fprintf(&builder, "swaprelay_swaps_total{outcome=\"%s\"} %d\n", escape(outcome), c.swaps[outcome])
	}

	builder.WriteString("# HELP swaprelay_zero_output_settlements_total Settlements in which the relay received no output.\n")
	builder.WriteString("# TYPE swaprelay_zero_output_settlements_total counter\n")
	fmt.Fprintf(&builder, "swaprelay_zero_output_settlements_total %d\n", c.zeroOutput)

	builder.WriteString("# HELP swaprelay_swap_duration_seconds Relay invocation duration in seconds.\n")
	builder.WriteString("# TYPE swaprelay_swap_duration_seconds histogram\n")
	writeHistogram(&builder, "swaprelay_swap_duration_seconds", "", c.swapLatency)

	reqs := make([]requestKey, 0, len(c.requests))
	for key := range c.requests {
		reqs = append(reqs, key)
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].handler == reqs[j].handler {
			if reqs[i].method == reqs[j].method {
				return reqs[i].code < reqs[j].code
			}
			return reqs[i].method < reqs[j].method
		}
		return reqs[i].handler < reqs[j].handler
	})
	routes := make([]routeKey, 0, len(c.latency))
	for key := range c.latency {
		routes = append(routes, key)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].handler == routes[j].handler {
			return routes[i].method < routes[j].method
		}
		return routes[i].handler < routes[j].handler
	})

	builder.WriteString("# HELP swaprelay_http_requests_total Total number of HTTP requests processed.\n")
	builder.WriteString("# TYPE swaprelay_http_requests_total counter\n")
	for _, key := range reqs {
		fmt.Fprintf(&builder, "swaprelay_http_requests_total{handler=\"%s\",method=\"%s\",code=\"%s\"} %d\n",
			escape(key.handler), escape(key.method), escape(key.code), c.requests[key])
	}

	builder.WriteString("# HELP swaprelay_http_request_errors_total Total number of HTTP requests that resulted in a server error.\n")
	builder.WriteString("# TYPE swaprelay_http_request_errors_total counter\n")
	for _, key := range routes {
		if n := c.errors[key]; n > 0 {
			fmt.Fprintf(&builder, "swaprelay_http_request_errors_total{handler=\"%s\",method=\"%s\"} %d\n",
				escape(key.handler), escape(key.method), n)
		}
	}

	builder.WriteString("# HELP swaprelay_http_request_duration_seconds HTTP request duration in seconds.\n")
	builder.WriteString("# TYPE swaprelay_http_request_duration_seconds histogram\n")
	for _, key := range routes {
		labels := fmt.Sprintf("handler=\"%s\",method=\"%s\"", escape(key.handler), escape(key.method))
		writeHistogram(&builder, "swaprelay_http_request_duration_seconds", labels, c.latency[key])
	}

	return builder.String()
}

func writeHistogram(builder *strings.Builder, name, labels string, hist *histogram) {
	prefix := labels
	if prefix != "" {
		prefix += ","
	}
	for idx, bound := range hist.buckets {
		fmt.Fprintf(builder, "%s_bucket{%sle=\"%s\"} %d\n", name, prefix, formatFloat(bound), hist.counts[idx])
	}
	fmt.Fprintf(builder, "%s_bucket{%sle=\"+Inf\"} %d\n", name, prefix, hist.count)
	if labels == "" {
		fmt.Fprintf(builder, "%s_sum %s\n", name, formatFloat(hist.sum))
		fmt.Fprintf(builder, "%s_count %d\n", name, hist.count)
		return
	}
	fmt.Fprintf(builder, "%s_sum{%s} %s\n", name, labels, formatFloat(hist.sum))
	fmt.Fprintf(builder, "%s_count{%s} %d\n", name, labels, hist.count)
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
