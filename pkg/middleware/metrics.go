package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/pushserve/pkg/assets"
	"github.com/vango-dev/pushserve/pkg/push"
	"github.com/vango-dev/pushserve/pkg/render"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "pushserve").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "pushserve",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics collects request, push and pipeline metrics.
//
// Metrics collected:
//   - pushserve_requests_total: requests by route and status
//   - pushserve_request_duration_seconds: request duration by route
//   - pushserve_pushes_total: pushes by outcome
//   - pushserve_pipelines_total: render pipelines by terminal state
//   - pushserve_active_streams: parent streams being served
//
// Metrics implements push.Observer and render.Observer, and Handler wraps an
// http.Handler to count requests.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pushesTotal     *prometheus.CounterVec
	pipelinesTotal  *prometheus.CounterVec
	activeStreams   prometheus.Gauge
}

// NewMetrics registers the metrics with the configured registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of requests served",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Request duration in seconds, including render delays",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		pushesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pushes_total",
			Help:        "Total number of pushes by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		pipelinesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pipelines_total",
			Help:        "Total number of render pipelines by terminal state",
			ConstLabels: config.ConstLabels,
		}, []string{"state"}),

		activeStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_streams",
			Help:        "Number of parent streams being served",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// ObservePush implements push.Observer.
func (m *Metrics) ObservePush(_ assets.Descriptor, o push.Outcome) {
	m.pushesTotal.WithLabelValues(o.String()).Inc()
}

// ObservePipeline implements render.Observer.
func (m *Metrics) ObservePipeline(s render.State) {
	m.pipelinesTotal.WithLabelValues(s.String()).Inc()
}

// ObserveActiveStreams records the size of the active stream table.
func (m *Metrics) ObserveActiveStreams(n int) {
	m.activeStreams.Set(float64(n))
}

// Handler counts and times every request passing through next. The response
// writer handed to next keeps http.Pusher and http.Flusher.
func (m *Metrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := RouteLabel(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

var (
	_ push.Observer   = (*Metrics)(nil)
	_ render.Observer = (*Metrics)(nil)
)
