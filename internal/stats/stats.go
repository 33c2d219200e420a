// Package stats provides runtime statistics for GRIND, exported both as
// a JSON snapshot and as Prometheus metrics.
package stats

import (
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and tracks system statistics. It is safe for
// concurrent use by every surface.
type Collector struct {
	startTime time.Time

	requestCount       atomic.Int64
	errorCount         atomic.Int64
	totalDuration      atomic.Int64 // nanoseconds
	remindersDelivered atomic.Int64
	fallbackCount      atomic.Int64

	mu     sync.Mutex
	routes map[string]int64

	registry         *prometheus.Registry
	requests         prometheus.Counter
	errors           prometheus.Counter
	requestDuration  prometheus.Histogram
	routeSelections  *prometheus.CounterVec
	backendAttempts  *prometheus.CounterVec
	backendLatency   *prometheus.HistogramVec
	reminderDelivery prometheus.Counter
}

// NewCollector creates a new stats collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Collector{
		startTime: time.Now(),
		routes:    make(map[string]int64),
		registry:  reg,
		requests: factory.NewCounter(prometheus.CounterOpts{
			Name: "grind_requests_total",
			Help: "Total number of orchestrated messages",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "grind_errors_total",
			Help: "Total number of messages answered with a failure report",
		}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "grind_request_duration_seconds",
			Help:    "End-to-end orchestration latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		routeSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grind_route_selections_total",
			Help: "Messages routed per chain kind",
		}, []string{"kind"}),
		backendAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grind_backend_attempts_total",
			Help: "Backend attempts by outcome",
		}, []string{"backend", "outcome"}),
		backendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "grind_backend_latency_seconds",
			Help: "Backend attempt latency in seconds",
		}, []string{"backend"}),
		reminderDelivery: factory.NewCounter(prometheus.CounterOpts{
			Name: "grind_reminders_delivered_total",
			Help: "Reminders delivered to the user",
		}),
	}
}

// Stats represents system statistics at a point in time.
type Stats struct {
	// System resources
	MemoryStats MemoryStats `json:"memory"`
	Goroutines  int         `json:"goroutines"`
	Uptime      string      `json:"uptime"`

	// Orchestrator metrics
	RequestCount       int64            `json:"request_count"`
	ErrorCount         int64            `json:"error_count"`
	FallbackCount      int64            `json:"fallback_count"`
	RemindersDelivered int64            `json:"reminders_delivered"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	Routes             map[string]int64 `json:"routes"`

	// Database info
	DBSize   int64   `json:"db_size_bytes"`
	DBSizeMB float64 `json:"db_size_mb"`
	DBPath   string  `json:"db_path,omitempty"`
}

// MemoryStats represents memory usage statistics.
type MemoryStats struct {
	// Heap memory
	HeapAlloc   int64   `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	HeapSys     int64   `json:"heap_sys_bytes"`
	HeapSysMB   float64 `json:"heap_sys_mb"`
	HeapObjects uint64  `json:"heap_objects"`

	// GC stats
	NumGC        uint32        `json:"num_gc"`
	LastGC       string        `json:"last_gc,omitempty"`
	GCPauseTotal time.Duration `json:"gc_pause_total"`
}

// Collect returns current system statistics.
func (c *Collector) Collect(dbSize int64, dbPath string) *Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	requests := c.requestCount.Load()
	avgLatency := float64(0)
	if requests > 0 {
		avgLatency = float64(c.totalDuration.Load()) / float64(requests) / 1e6 // nanos to millis
	}

	lastGC := ""
	if m.LastGC > 0 {
		lastGC = time.Unix(0, int64(m.LastGC)).Format(time.RFC3339)
	}

	return &Stats{
		MemoryStats: MemoryStats{
			HeapAlloc:    int64(m.HeapAlloc),
			HeapAllocMB:  bytesToMB(int64(m.HeapAlloc)),
			HeapSys:      int64(m.HeapSys),
			HeapSysMB:    bytesToMB(int64(m.HeapSys)),
			HeapObjects:  m.HeapObjects,
			NumGC:        m.NumGC,
			LastGC:       lastGC,
			GCPauseTotal: time.Duration(m.PauseTotalNs),
		},
		Goroutines:         runtime.NumGoroutine(),
		Uptime:             time.Since(c.startTime).Round(time.Second).String(),
		RequestCount:       requests,
		ErrorCount:         c.errorCount.Load(),
		FallbackCount:      c.fallbackCount.Load(),
		RemindersDelivered: c.remindersDelivered.Load(),
		AvgLatencyMs:       avgLatency,
		Routes:             c.routeCounts(),
		DBSize:             dbSize,
		DBSizeMB:           bytesToMB(dbSize),
		DBPath:             dbPath,
	}
}

// RecordRequest records a completed orchestration.
func (c *Collector) RecordRequest(duration time.Duration) {
	c.requestCount.Add(1)
	c.totalDuration.Add(duration.Nanoseconds())
	c.requests.Inc()
	c.requestDuration.Observe(duration.Seconds())
}

// RecordError records a message whose every backend failed.
func (c *Collector) RecordError() {
	c.errorCount.Add(1)
	c.errors.Inc()
}

// RecordRoute records the chain kind chosen for a message.
func (c *Collector) RecordRoute(kind string) {
	c.mu.Lock()
	c.routes[kind]++
	c.mu.Unlock()
	c.routeSelections.WithLabelValues(kind).Inc()
}

// RecordReminders records n delivered reminders.
func (c *Collector) RecordReminders(n int) {
	if n <= 0 {
		return
	}
	c.remindersDelivered.Add(int64(n))
	c.reminderDelivery.Add(float64(n))
}

// ObserveAttempt records one backend attempt of a fallback chain.
func (c *Collector) ObserveAttempt(backend string, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		c.fallbackCount.Add(1)
	}
	c.backendAttempts.WithLabelValues(backend, outcome).Inc()
	c.backendLatency.WithLabelValues(backend).Observe(d.Seconds())
}

// Handler serves the Prometheus exposition of this collector.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so callers can add gauges
// backed by their own state.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// StartTime returns when the collector started.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

func (c *Collector) routeCounts() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.routes))
	for k, v := range c.routes {
		out[k] = v
	}
	return out
}

// bytesToMB converts bytes to megabytes.
func bytesToMB(b int64) float64 {
	return float64(b) / 1024 / 1024
}
