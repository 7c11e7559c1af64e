// Package metrics is the one surviving inbound adapter: an optional
// Prometheus /metrics endpoint. Nothing in the pipeline depends on it —
// the embedding process chooses whether to serve it at all — it exists
// purely so an operator can watch rejection/duration/breach counters,
// mirroring the teacher's internal/adapter/inbound/http/metrics.go
// narrowed from HTTP-proxy request metrics down to this module's own
// pipeline stages.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus instrument this adapter exposes.
type Metrics struct {
	ValidationRejectsTotal  *prometheus.CounterVec
	TransformDuration       prometheus.Histogram
	ExecutionDuration       prometheus.Histogram
	ResourceCeilingBreaches *prometheus.CounterVec
	ExecutionsTotal         *prometheus.CounterVec
	ToolCallsTotal          *prometheus.CounterVec
}

// NewMetrics creates and registers every instrument against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ValidationRejectsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "enclave",
				Name:      "validation_rejects_total",
				Help:      "Total scripts rejected by validation, labeled by rule code.",
			},
			[]string{"rule_code"},
		),
		TransformDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "enclave",
				Name:      "transform_duration_seconds",
				Help:      "Time spent rewriting a validated script before execution.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ExecutionDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "enclave",
				Name:      "execution_duration_seconds",
				Help:      "Wall-clock time spent executing a transformed script.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ResourceCeilingBreaches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "enclave",
				Name:      "resource_ceiling_breaches_total",
				Help:      "Total executions that hit a resource ceiling, labeled by error code.",
			},
			[]string{"code"},
		),
		ExecutionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "enclave",
				Name:      "executions_total",
				Help:      "Total executions, labeled by outcome (success/failure).",
			},
			[]string{"outcome"},
		),
		ToolCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "enclave",
				Name:      "tool_calls_total",
				Help:      "Total mediated tool calls, labeled by name and whether policy allowed them.",
			},
			[]string{"name", "allowed"},
		),
	}
}

// ObserveTransform records one transform stage's duration.
func (m *Metrics) ObserveTransform(d time.Duration) {
	m.TransformDuration.Observe(d.Seconds())
}

// ObserveExecution records one execution's duration and final outcome.
func (m *Metrics) ObserveExecution(d time.Duration, success bool) {
	m.ExecutionDuration.Observe(d.Seconds())
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.ExecutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordValidationReject increments the rejects counter for one rule code.
func (m *Metrics) RecordValidationReject(ruleCode string) {
	m.ValidationRejectsTotal.WithLabelValues(ruleCode).Inc()
}

// RecordResourceCeilingBreach increments the breach counter for one
// sandboxerr code (CodeIterationLimitExceeded, CodeMemoryLimitExceeded,
// CodeSandboxAborted, ...).
func (m *Metrics) RecordResourceCeilingBreach(code string) {
	m.ResourceCeilingBreaches.WithLabelValues(code).Inc()
}

// RecordToolCall increments the tool-call counter for one mediated call.
func (m *Metrics) RecordToolCall(name string, allowed bool) {
	label := "true"
	if !allowed {
		label = "false"
	}
	m.ToolCallsTotal.WithLabelValues(name, label).Inc()
}

// Server serves /metrics and /health on its own listener, independent
// of any transport the embedding process might run — this module has
// no request-serving surface of its own to attach a middleware to, so
// unlike the teacher's MetricsMiddleware this is a standalone mux
// rather than a wrapper around an existing handler chain.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a /metrics + /health server bound to addr. Call
// Serve to start it and Shutdown to stop it.
func NewServer(addr string, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{httpServer: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Serve blocks until the server stops or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the server immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
