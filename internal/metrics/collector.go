// Package metrics exposes prometheus instruments for the service. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so several instances can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	jobsSubmitted   prometheus.Counter
	jobTransitions  *prometheus.CounterVec
	pollRequests    *prometheus.CounterVec
	activeJobs      prometheus.Gauge
	pollerRunning   prometheus.Gauge
	relayRequests   *prometheus.CounterVec
	relayBytes      prometheus.Counter
	viewerLoads     *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
}

// NewCollector registers every instrument under namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		jobsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Generation jobs accepted by the upstream API",
		}),
		jobTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Job state transitions applied by the poll loop",
		}, []string{"transition"}),
		pollRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_requests_total",
			Help:      "Operation status polls by outcome",
		}, []string{"result"}),
		activeJobs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Jobs that have not reached a terminal state",
		}),
		pollerRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_running",
			Help:      "1 while the poll timer exists",
		}),
		relayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_requests_total",
			Help:      "Relay fetches by upstream status",
		}, []string{"status"}),
		relayBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_bytes_total",
			Help:      "Bytes streamed through the relay",
		}),
		viewerLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewer_loads_total",
			Help:      "Viewer session loads by result",
		}, []string{"result"}),
		upstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of generation API calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"operation"}),
	}
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and latency keyed by the chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		c.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (c *Collector) JobSubmitted() {
	if c == nil {
		return
	}
	c.jobsSubmitted.Inc()
}

func (c *Collector) JobTransition(name string) {
	if c == nil {
		return
	}
	c.jobTransitions.WithLabelValues(name).Inc()
}

// PollResult counts one status poll; result is ok, transient or remote_error.
func (c *Collector) PollResult(result string) {
	if c == nil {
		return
	}
	c.pollRequests.WithLabelValues(result).Inc()
}

func (c *Collector) SetActiveJobs(n int) {
	if c == nil {
		return
	}
	c.activeJobs.Set(float64(n))
}

func (c *Collector) SetPollerRunning(running bool) {
	if c == nil {
		return
	}
	if running {
		c.pollerRunning.Set(1)
		return
	}
	c.pollerRunning.Set(0)
}

func (c *Collector) RelayFetched(status int, bytes int64) {
	if c == nil {
		return
	}
	c.relayRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	if bytes > 0 {
		c.relayBytes.Add(float64(bytes))
	}
}

func (c *Collector) ViewerLoad(result string) {
	if c == nil {
		return
	}
	c.viewerLoads.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveUpstream(operation string, d time.Duration) {
	if c == nil {
		return
	}
	c.upstreamLatency.WithLabelValues(operation).Observe(d.Seconds())
}
