package metrics

import (
    "fmt"
    "net/http"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/mst-edu/idm-infra/pkg/logger"
)

// MetricsInterface is the narrow surface directory and tablesync
// components depend on, so unit tests can substitute a no-op or
// recording fake instead of the real Prometheus registry.
type MetricsInterface interface {
    IncrementCounter(name string, labels map[string]string)
    ObserveHistogram(name string, value float64, labels map[string]string)
    SetGauge(name string, value float64, labels map[string]string)
}

type PrometheusMetrics struct {
    counters   map[string]*prometheus.CounterVec
    histograms map[string]*prometheus.HistogramVec
    gauges     map[string]*prometheus.GaugeVec
}

func NewPrometheusMetrics() *PrometheusMetrics {
    pm := &PrometheusMetrics{
        counters:   make(map[string]*prometheus.CounterVec),
        histograms: make(map[string]*prometheus.HistogramVec),
        gauges:     make(map[string]*prometheus.GaugeVec),
    }

    // Register common metrics
    pm.registerMetrics()

    return pm
}

func (pm *PrometheusMetrics) registerMetrics() {
    // Counters
    pm.counters["directory_binds_total"] = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "directory_binds_total",
            Help: "Total LDAP bind attempts",
        },
        []string{"server", "status"},
    )

    pm.counters["directory_searches_total"] = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "directory_searches_total",
            Help: "Total LDAP search round trips",
        },
        []string{"scope", "status"},
    )

    pm.counters["directory_mutations_total"] = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "directory_mutations_total",
            Help: "Total directory mutations (add/modify/delete/moddn)",
        },
        []string{"op", "status"},
    )

    pm.counters["tablesync_rows_total"] = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "tablesync_rows_total",
            Help: "Total rows inserted or deleted by reconciliation jobs",
        },
        []string{"job", "op"},
    )

    pm.counters["tablesync_commits_total"] = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "tablesync_commits_total",
            Help: "Total intermediate commits triggered by the pending-row cap",
        },
        []string{"job"},
    )

    pm.counters["tablesync_cap_hits_total"] = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "tablesync_cap_hits_total",
            Help: "Total times a job hit its max_inserts/max_deletes safety cap",
        },
        []string{"job", "cap"},
    )

    // Histograms
    pm.histograms["directory_search_duration"] = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Name:    "directory_search_duration_seconds",
            Help:    "LDAP search round-trip duration in seconds",
            Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
        },
        []string{"scope"},
    )

    pm.histograms["tablesync_run_duration"] = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Name:    "tablesync_run_duration_seconds",
            Help:    "Reconciliation job wall-clock duration in seconds",
            Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
        },
        []string{"job"},
    )

    // Gauges
    pm.gauges["tablesync_pending_rows"] = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Name: "tablesync_pending_rows",
            Help: "Rows pending commit in the current reconciliation transaction",
        },
        []string{"job"},
    )

    pm.gauges["directory_connections_active"] = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Name: "directory_connections_active",
            Help: "Currently open LDAP connections",
        },
        []string{},
    )

    // Register all metrics
    for _, counter := range pm.counters {
        prometheus.MustRegister(counter)
    }
    for _, histogram := range pm.histograms {
        prometheus.MustRegister(histogram)
    }
    for _, gauge := range pm.gauges {
        prometheus.MustRegister(gauge)
    }
}

func (pm *PrometheusMetrics) IncrementCounter(name string, labels map[string]string) {
    if counter, exists := pm.counters[name]; exists {
        counter.With(prometheus.Labels(labels)).Inc()
    }
}

func (pm *PrometheusMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
    if histogram, exists := pm.histograms[name]; exists {
        histogram.With(prometheus.Labels(labels)).Observe(value)
    }
}

func (pm *PrometheusMetrics) SetGauge(name string, value float64, labels map[string]string) {
    if gauge, exists := pm.gauges[name]; exists {
        if labels == nil {
            labels = make(map[string]string)
        }
        gauge.With(prometheus.Labels(labels)).Set(value)
    }
}

func (pm *PrometheusMetrics) ServeHTTP(port int) error {
    http.Handle("/metrics", promhttp.Handler())
    addr := fmt.Sprintf(":%d", port)
    logger.WithField("addr", addr).Info("Metrics server started")
    return http.ListenAndServe(addr, nil)
}
