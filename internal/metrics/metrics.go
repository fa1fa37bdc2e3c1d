// Package metrics exposes Prometheus instruments for the API, the AI advisor and the
// vehicle state.
//
// Every method is safe on a nil *Collector so components can run without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/maintenance"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carbook"

// Collector holds the service's Prometheus instruments.
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	aiCalls       *prometheus.CounterVec
	aiLatency     *prometheus.HistogramVec
	mileage       prometheus.Gauge
	tasksByStatus *prometheus.GaugeVec
	invoices      *prometheus.CounterVec
	history       *prometheus.CounterVec
	odometer      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewCollector creates the instruments and registers them on reg.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		aiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_calls_total",
			Help:      "AI advisor calls by flow and result",
		}, []string{"flow", "result"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_call_duration_seconds",
			Help:      "AI advisor call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"flow"}),
		mileage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vehicle_mileage_km",
			Help:      "Current odometer reading in kilometers",
		}),
		tasksByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "maintenance_tasks",
			Help:      "Maintenance tasks by status at the last evaluation",
		}, []string{"status"}),
		invoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_saved_total",
			Help:      "Invoices saved by mode (normal or failsafe)",
		}, []string{"mode"}),
		history: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_upserts_total",
			Help:      "Service history writes by result (created or existing)",
		}, []string{"result"}),
		odometer: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "odometer_readings_total",
			Help:      "Odometer feed readings by result",
		}, []string{"result"}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.aiCalls,
		c.aiLatency,
		c.mileage,
		c.tasksByStatus,
		c.invoices,
		c.history,
		c.odometer,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveAI records one advisor call; result is "ok", "error", "timeout" or "rejected".
func (c *Collector) ObserveAI(flow, result string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.aiCalls.WithLabelValues(flow, result).Inc()
	c.aiLatency.WithLabelValues(flow).Observe(elapsed.Seconds())
}

func (c *Collector) SetMileage(km int) {
	if c == nil {
		return
	}
	c.mileage.Set(float64(km))
}

// SetTaskCounts publishes the count of every level, zero included.
func (c *Collector) SetTaskCounts(counts map[maintenance.Level]int) {
	if c == nil {
		return
	}
	for _, level := range []maintenance.Level{maintenance.LevelOverdue, maintenance.LevelDueSoon, maintenance.LevelOK} {
		c.tasksByStatus.WithLabelValues(string(level)).Set(float64(counts[level]))
	}
}

func (c *Collector) RecordInvoice(failsafe bool) {
	if c == nil {
		return
	}
	mode := "normal"
	if failsafe {
		mode = "failsafe"
	}
	c.invoices.WithLabelValues(mode).Inc()
}

func (c *Collector) RecordHistoryUpsert(created bool) {
	if c == nil {
		return
	}
	result := "existing"
	if created {
		result = "created"
	}
	c.history.WithLabelValues(result).Inc()
}

// RecordOdometer records a feed reading by result: accepted, rejected, invalid or failed.
func (c *Collector) RecordOdometer(result string) {
	if c == nil {
		return
	}
	c.odometer.WithLabelValues(result).Inc()
}
