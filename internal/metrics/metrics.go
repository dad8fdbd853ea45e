// Package metrics holds the Prometheus collectors for the decision loop and
// the HTTP endpoint that exposes them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gerunddev/pokeagent/internal/log"
)

const namespace = "pokeagent"

// Metrics bundles every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal        *prometheus.CounterVec   // result: ok | failed
	TickFailures      *prometheus.CounterVec   // kind, stage
	TickDuration      prometheus.Histogram     // whole tick, seconds
	OracleRequests    *prometheus.CounterVec   // backend, label, status
	OracleDuration    *prometheus.HistogramVec // backend, label
	FallbackActions   *prometheus.CounterVec   // reason: battle | empty_party | default
	PlanReplacements  prometheus.Counter
	ButtonsTotal      *prometheus.CounterVec // button
	DroppedTokens     prometheus.Counter
	ActionHistorySize prometheus.Gauge
	MemoryEntries     prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Decision ticks by result.",
		}, []string{"result"}),
		TickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_failures_total",
			Help:      "Failed ticks by error kind and stage.",
		}, []string{"kind", "stage"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a decision tick.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		OracleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_total",
			Help:      "Oracle calls by backend, call label and status.",
		}, []string{"backend", "label", "status"}),
		OracleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_request_duration_seconds",
			Help:      "Oracle call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "label"}),
		FallbackActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_actions_total",
			Help:      "Action responses with no valid buttons, by default applied.",
		}, []string{"reason"}),
		PlanReplacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_replacements_total",
			Help:      "Plans created after the previous one was absent or complete.",
		}),
		ButtonsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buttons_total",
			Help:      "Buttons emitted by the agent.",
		}, []string{"button"}),
		DroppedTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_action_tokens_total",
			Help:      "Action tokens discarded as invalid.",
		}),
		ActionHistorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "action_history_size",
			Help:      "Batches currently held in the action history.",
		}),
		MemoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_entries",
			Help:      "Entries currently held in agent memory.",
		}),
	}

	reg.MustRegister(
		m.TicksTotal, m.TickFailures, m.TickDuration,
		m.OracleRequests, m.OracleDuration,
		m.FallbackActions, m.PlanReplacements,
		m.ButtonsTotal, m.DroppedTokens,
		m.ActionHistorySize, m.MemoryEntries,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveOracle records one oracle call.
func (m *Metrics) ObserveOracle(backend, label string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OracleRequests.WithLabelValues(backend, label, status).Inc()
	m.OracleDuration.WithLabelValues(backend, label).Observe(d.Seconds())
}

// ObserveTick records a completed or failed tick.
func (m *Metrics) ObserveTick(d time.Duration, failed bool, kind, stage string) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(d.Seconds())
	if failed {
		m.TicksTotal.WithLabelValues("failed").Inc()
		m.TickFailures.WithLabelValues(kind, stage).Inc()
		return
	}
	m.TicksTotal.WithLabelValues("ok").Inc()
}

// ObserveButtons counts each emitted button.
func (m *Metrics) ObserveButtons(buttons []string) {
	if m == nil {
		return
	}
	for _, b := range buttons {
		m.ButtonsTotal.WithLabelValues(b).Inc()
	}
}

// ObserveFallback records a default action.
func (m *Metrics) ObserveFallback(reason string) {
	if m == nil {
		return
	}
	m.FallbackActions.WithLabelValues(reason).Inc()
}

// ObservePlanCreated records a new plan.
func (m *Metrics) ObservePlanCreated() {
	if m == nil {
		return
	}
	m.PlanReplacements.Inc()
}

// ObserveDropped adds n discarded action tokens.
func (m *Metrics) ObserveDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DroppedTokens.Add(float64(n))
}

// SetContextSizes records the committed context sizes.
func (m *Metrics) SetContextSizes(history, memory int) {
	if m == nil {
		return
	}
	m.ActionHistorySize.Set(float64(history))
	m.MemoryEntries.Set(float64(memory))
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
