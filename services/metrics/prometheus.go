package metricssvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/escolar/core/dashboard"
)

const namespace = "escolar"

// Recorder exposes the dashboard & HTTP metrics to Prometheus.
type Recorder struct {
	gatherer     prometheus.Gatherer
	aggregations *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	requests     *prometheus.HistogramVec
}

var _ dashboard.Recorder = (*Recorder)(nil)

// NewRecorder registers the collectors on a new registry, along with the go & process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{
		gatherer: reg,
		aggregations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of dashboard aggregations, fetches included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "fetch_failures_total",
			Help:      "Failed fetches degraded to empty results.",
		}, []string{"source"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "cache_lookups_total",
			Help:      "Metrics cache lookups by result.",
		}, []string{"result"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(r.aggregations, r.failures, r.cacheLookups, r.requests)
	return r
}

func (r *Recorder) ObserveAggregation(name string, d time.Duration) {
	r.aggregations.WithLabelValues(name).Observe(d.Seconds())
}

func (r *Recorder) FetchFailed(source string) {
	r.failures.WithLabelValues(source).Inc()
}

func (r *Recorder) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registered metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Middleware observes the duration of each request, labelled by route pattern.
func (r *Recorder) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			code := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					code = he.Code
				} else if code < http.StatusBadRequest {
					code = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unknown"
			}
			r.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(code)).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
