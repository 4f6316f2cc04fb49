// Package metrics exposes the sample loop and the HTTP API to Prometheus.
//
// Every method is safe to call on a nil *Metrics, so components can run
// without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heatwatch"

// Metrics holds the collectors of one heatwatchd process.
type Metrics struct {
	registry *prometheus.Registry

	ticksTotal     prometheus.Counter
	ticksMissed    prometheus.Counter
	tickDuration   prometheus.Histogram
	sensorFailures *prometheus.CounterVec
	storeFailures  *prometheus.CounterVec
	storeDuration  prometheus.Histogram
	samplesTotal   prometheus.Counter
	alertsTotal    prometheus.Counter
	panicsTotal    *prometheus.CounterVec
	temperatureF   prometheus.Gauge
	moisture       prometheus.Gauge
	lastSampleTime prometheus.Gauge
	thresholdF     prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them on a private registry
// together with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total ticks executed by the sample loop.",
		}),
		ticksMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_missed_total",
			Help:      "Scheduled ticks skipped because a previous tick overran.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Histogram of tick durations.",
			Buckets:   prometheus.DefBuckets,
		}),
		sensorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_failures_total",
			Help:      "Sensor reads that produced no reading, by kind.",
		}, []string{"kind"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Records that were not persisted, by kind.",
		}, []string{"kind"}),
		storeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_write_duration_seconds",
			Help:      "Histogram of store write durations.",
			Buckets:   prometheus.DefBuckets,
		}),
		samplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Readings successfully sampled and normalized.",
		}),
		alertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts handed to the alert sinks.",
		}),
		panicsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_total",
			Help:      "Panics recovered inside a tick, by stage.",
		}, []string{"stage"}),
		temperatureF: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_fahrenheit",
			Help:      "Last normalized temperature.",
		}),
		moisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "moisture",
			Help:      "Last moisture reading.",
		}),
		lastSampleTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sample_timestamp_seconds",
			Help:      "Capture time of the last successful reading.",
		}),
		thresholdF: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold_fahrenheit",
			Help:      "Configured alert threshold.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticksTotal,
		m.ticksMissed,
		m.tickDuration,
		m.sensorFailures,
		m.storeFailures,
		m.storeDuration,
		m.samplesTotal,
		m.alertsTotal,
		m.panicsTotal,
		m.temperatureF,
		m.moisture,
		m.lastSampleTime,
		m.thresholdF,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// =============================================================================
// Sample Loop
// =============================================================================

// Tick records a completed tick.
func (m *Metrics) Tick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	m.tickDuration.Observe(d.Seconds())
}

// TicksMissed records scheduled ticks skipped after an overrun.
func (m *Metrics) TicksMissed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ticksMissed.Add(float64(n))
}

// SensorFailure records a failed read.
func (m *Metrics) SensorFailure(kind string) {
	if m == nil {
		return
	}
	m.sensorFailures.WithLabelValues(kind).Inc()
}

// StoreWrite records a store write and its outcome. kind is empty on success.
func (m *Metrics) StoreWrite(d time.Duration, kind string) {
	if m == nil {
		return
	}
	m.storeDuration.Observe(d.Seconds())
	if kind != "" {
		m.storeFailures.WithLabelValues(kind).Inc()
	}
}

// Sample records a successful reading.
func (m *Metrics) Sample(temperatureF float64, moisture int64, capturedAtMs int64) {
	if m == nil {
		return
	}
	m.samplesTotal.Inc()
	m.temperatureF.Set(temperatureF)
	m.moisture.Set(float64(moisture))
	m.lastSampleTime.Set(float64(capturedAtMs) / 1000)
}

// Alert records an alert handed to the sinks.
func (m *Metrics) Alert() {
	if m == nil {
		return
	}
	m.alertsTotal.Inc()
}

// Panic records a recovered panic.
func (m *Metrics) Panic(stage string) {
	if m == nil {
		return
	}
	m.panicsTotal.WithLabelValues(stage).Inc()
}

// ObserveSuppressed exports the alerts withheld by hysteresis, read from
// suppressed at scrape time. Only the first observer is registered.
func (m *Metrics) ObserveSuppressed(suppressed func() uint64) {
	if m == nil || suppressed == nil {
		return
	}
	_ = m.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_suppressed_total",
		Help:      "Alerts withheld by hysteresis.",
	}, func() float64 {
		return float64(suppressed())
	}))
}

// SetThreshold publishes the configured threshold.
func (m *Metrics) SetThreshold(valueF float64) {
	if m == nil {
		return
	}
	m.thresholdF.Set(valueF)
}

// =============================================================================
// HTTP
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and observes their duration under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}
