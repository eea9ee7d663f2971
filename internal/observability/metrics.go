package observability

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Metric names shared by the pipelines.
const (
	MetricHTTPRequests = "xarxa_http_requests_total"
	MetricHTTPFailures = "xarxa_http_failures_total"
	MetricCacheHits    = "xarxa_cache_hits_total"
	MetricCacheMisses  = "xarxa_cache_misses_total"
	MetricCacheFlushes = "xarxa_cache_flushes_total"
	MetricPagesFetched = "xarxa_pages_fetched_total"
	MetricStreamEvents = "xarxa_stream_events_total"
	MetricFetchLatency = "xarxa_fetch_latency_ms"
)

// MetricEntry represents a single metric value.
type MetricEntry struct {
	Name  string  `json:"name"`
	Help  string  `json:"help"`
	Value float64 `json:"value"`
}

// -----------------------------------------------------------------------
// Counter
// -----------------------------------------------------------------------

// Counter is a monotonically increasing counter. A nil *Counter is a valid
// no-op so components can run without a registry.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.value.Add(1)
}

// Add increments the counter by delta. Negative deltas are ignored.
func (c *Counter) Add(delta int64) {
	if c == nil || delta < 0 {
		return
	}
	c.value.Add(delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	if c == nil {
		return 0
	}
	return c.value.Load()
}

// -----------------------------------------------------------------------
// Histogram
// -----------------------------------------------------------------------

// Histogram tracks value distributions in buckets.
// Buckets are upper-bound inclusive: a value <= bucket[i] increments counts[i].
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	buckets []float64
	counts  []int64
	sum     float64
	count   int64
}

// Observe records a value into the histogram.
func (h *Histogram) Observe(v float64) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
		}
	}
}

// Count returns the total number of observations.
func (h *Histogram) Count() int64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Mean returns the average observation, 0 when empty.
func (h *Histogram) Mean() float64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}

// -----------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------

// Registry manages all metrics. It is safe for concurrent use and a nil
// *Registry hands out nil (no-op) metrics.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	histograms map[string]*Histogram
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		histograms: make(map[string]*Histogram),
	}
}

// NewCounter registers and returns a counter. An existing counter with the
// same name is returned as-is.
func (r *Registry) NewCounter(name, help string) *Counter {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[name]; ok {
		return existing
	}
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	return c
}

// NewHistogram registers and returns a histogram.
func (r *Registry) NewHistogram(name, help string, buckets []float64) *Histogram {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.histograms[name]; ok {
		return existing
	}
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)

	h := &Histogram{
		name:    name,
		help:    help,
		buckets: sorted,
		counts:  make([]int64, len(sorted)),
	}
	r.histograms[name] = h
	return h
}

// Counter returns a registered counter or nil.
func (r *Registry) Counter(name string) *Counter {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// Histogram returns a registered histogram or nil.
func (r *Registry) Histogram(name string) *Histogram {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// AllMetrics returns a snapshot of every metric, sorted by name.
// Histograms report their observation count.
func (r *Registry) AllMetrics() []MetricEntry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]MetricEntry, 0, len(r.counters)+len(r.histograms))
	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		entries = append(entries, MetricEntry{Name: c.name, Help: c.help, Value: float64(c.Value())})
	}
	for _, name := range sortedKeys(r.histograms) {
		h := r.histograms[name]
		entries = append(entries, MetricEntry{Name: h.name, Help: h.help, Value: float64(h.Count())})
	}
	return entries
}

// LogSummary writes every metric as one structured log line.
func (r *Registry) LogSummary() {
	if r == nil {
		return
	}
	ev := log.Info()
	for _, m := range r.AllMetrics() {
		ev = ev.Float64(m.Name, m.Value)
	}
	if h := r.Histogram(MetricFetchLatency); h != nil {
		ev = ev.Float64("fetch_latency_mean_ms", h.Mean())
	}
	ev.Msg("run metrics")
}

// DefaultLatencyBuckets for latency histograms (in milliseconds).
var DefaultLatencyBuckets = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// XarxaMetrics creates a registry with the standard pipeline metrics.
func XarxaMetrics() *Registry {
	r := NewRegistry()

	r.NewCounter(MetricHTTPRequests, "Remote API requests issued")
	r.NewCounter(MetricHTTPFailures, "Remote API requests that degraded to an empty result")
	r.NewCounter(MetricCacheHits, "Address lookups served from the transaction cache")
	r.NewCounter(MetricCacheMisses, "Address lookups delegated to the fetcher")
	r.NewCounter(MetricCacheFlushes, "Full rewrites of the persisted cache")
	r.NewCounter(MetricPagesFetched, "Paginated API pages that returned items")
	r.NewCounter(MetricStreamEvents, "Address events received from the live feed")

	r.NewHistogram(MetricFetchLatency, "Remote API latency in milliseconds", DefaultLatencyBuckets)

	return r
}

// sortedKeys is a generic helper that returns sorted keys for any map[string]V.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
