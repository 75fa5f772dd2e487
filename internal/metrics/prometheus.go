package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	inflight           *prometheus.GaugeVec
	eventsTotal        *prometheus.CounterVec
}

// NewPrometheusRecorder registers the lifecycle metrics on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		invocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routine_invocations_total",
				Help: "Total number of finished invocations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		invocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "routine_invocation_duration_seconds",
				Help:    "Time from trigger to terminal event in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		inflight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "routine_inflight",
				Help: "Invocations currently awaiting their call",
			},
			[]string{"operation"},
		),
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routine_events_total",
				Help: "Total number of lifecycle events applied to state by kind",
			},
			[]string{"kind"},
		),
	}
}

// InvocationStarted increments the in-flight gauge.
func (p *PrometheusRecorder) InvocationStarted(operation string) {
	p.inflight.WithLabelValues(operation).Inc()
}

// InvocationFinished records the outcome and decrements the in-flight gauge.
func (p *PrometheusRecorder) InvocationFinished(operation, outcome string, duration time.Duration) {
	p.inflight.WithLabelValues(operation).Dec()
	p.invocationsTotal.WithLabelValues(operation, outcome).Inc()
	p.invocationDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// EventApplied counts an applied event.
func (p *PrometheusRecorder) EventApplied(kind string) {
	p.eventsTotal.WithLabelValues(kind).Inc()
}

// Serve exposes /metrics for gatherer on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
