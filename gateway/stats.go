package gateway

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// requestsTotal is the Prometheus counterpart of statsTracker's in-memory
// byService map, scraped by /metrics instead of /stats. A package-level
// registration (rather than one per Server) means repeated NewServer calls
// within the same process — as in tests — would collide on re-registration,
// so it is registered lazily, once, the first time a Server is built.
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholaris_gateway_requests_total",
			Help: "Total gateway requests processed, by backing service.",
		},
		[]string{"service"},
	)
	registerMetricsOnce sync.Once
)

func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(requestsTotal)
	})
}

// statsTracker holds the process-wide counters spec.md §4.1 names for the
// /stats endpoint: total requests, per-backing-service counts, and
// uptime. Non-persistent by design — it resets on restart. recordRequest
// also increments the Prometheus counter exposed at /metrics, so the two
// endpoints stay in lockstep without either owning the other's storage.
type statsTracker struct {
	mu            sync.Mutex
	startedAt     time.Time
	totalRequests int64
	byService     map[string]int64
}

func newStatsTracker() *statsTracker {
	registerMetrics()
	return &statsTracker{
		startedAt: time.Now(),
		byService: make(map[string]int64),
	}
}

func (t *statsTracker) recordRequest(service string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalRequests++
	t.byService[service]++
	requestsTotal.WithLabelValues(service).Inc()
}

// Snapshot is the stable, JSON-able view of the tracked counters.
type Snapshot struct {
	TotalRequests    int64            `json:"total_requests"`
	RequestsByService map[string]int64 `json:"requests_by_service"`
	UptimeSeconds    float64          `json:"uptime_seconds"`
	RequestsPerMinute float64         `json:"requests_per_minute"`
}

func (t *statsTracker) snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	byService := make(map[string]int64, len(t.byService))
	for k, v := range t.byService {
		byService[k] = v
	}

	uptime := time.Since(t.startedAt).Seconds()
	perMinute := 0.0
	if uptime > 0 {
		perMinute = float64(t.totalRequests) / (uptime / 60)
	}

	return Snapshot{
		TotalRequests:     t.totalRequests,
		RequestsByService: byService,
		UptimeSeconds:     uptime,
		RequestsPerMinute: perMinute,
	}
}
