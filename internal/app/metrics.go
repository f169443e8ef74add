package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samvad-hq/crm-bff/internal/logger"
)

const metricsNamespace = "crm_bff"

// Snapshot results.
const (
	resultOK          = "ok"
	resultAuth        = "auth"
	resultUnavailable = "unavailable"
	resultPublish     = "publish"
	resultError       = "error"
)

// Metrics holds the snapshotter's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	snapshots  *prometheus.CounterVec
	duration   prometheus.Histogram
	deliveries prometheus.Counter
	renewals   *prometheus.CounterVec
}

// NewMetrics registers the snapshotter collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshots_total",
			Help:      "Dashboard snapshots attempted, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Time to build and publish one dashboard snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_deliveries_total",
			Help:      "Successful snapshot deliveries summed over publishers.",
		}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_renewals_total",
			Help:      "Session logins and refreshes, by method.",
		}, []string{"method"}),
	}
	m.registry.MustRegister(m.snapshots, m.duration, m.deliveries, m.renewals)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeSnapshot(result string, elapsed time.Duration, delivered int) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
	if delivered > 0 {
		m.deliveries.Add(float64(delivered))
	}
}

func (m *Metrics) observeRenewal(method string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(method).Inc()
}

// serveMetrics runs the metrics endpoint on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, m *Metrics, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.InfoObj("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorObj("metrics endpoint failed", "error", err.Error())
	}
}
