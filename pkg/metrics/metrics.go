// Package metrics exposes Prometheus instrumentation for the agent engine.
//
// All recording methods are safe to call on a nil *Metrics, so components
// can be constructed without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatbi"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// TurnsTotal counts completion calls issued by the turn loop.
	// Labels: agent
	TurnsTotal *prometheus.CounterVec

	// CompletionDuration measures completion service latency in seconds.
	// Labels: agent, mode (stream|complete)
	CompletionDuration *prometheus.HistogramVec

	// CompletionErrors counts failed completion calls.
	// Labels: agent
	CompletionErrors *prometheus.CounterVec

	// TokensUsed tracks token consumption.
	// Labels: agent, type (prompt|completion)
	TokensUsed *prometheus.CounterVec

	// ToolCalls counts tool invocations.
	// Labels: tool, status (ok|invalid_arguments|unknown_tool|failed)
	ToolCalls *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// RunsTotal counts finished agent runs by terminal state.
	// Labels: agent, state
	RunsTotal *prometheus.CounterVec

	// HTTPRequests counts API requests.
	// Labels: method, path, status_code
	HTTPRequests *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_turns_total",
			Help:      "Completion calls issued by the turn loop",
		}, []string{"agent"}),
		CompletionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Completion service call latency",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"agent", "mode"}),
		CompletionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_errors_total",
			Help:      "Failed completion service calls",
		}, []string{"agent"}),
		TokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens consumed by completion calls",
		}, []string{"agent", "type"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by outcome",
		}, []string{"tool", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"tool"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Agent runs by terminal state",
		}, []string{"agent", "state"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests",
		}, []string{"method", "path", "status_code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TurnsTotal,
		m.CompletionDuration,
		m.CompletionErrors,
		m.TokensUsed,
		m.ToolCalls,
		m.ToolDuration,
		m.RunsTotal,
		m.HTTPRequests,
	)
	return m
}

// RegisterDroppedEvents exposes a counter backed by fn, typically
// events.Hub.Dropped.
func (m *Metrics) RegisterDroppedEvents(fn func() uint64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Log events dropped because the delivery queue was full",
	}, func() float64 { return float64(fn()) }))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordTurn(agent string) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(agent).Inc()
}

func (m *Metrics) RecordCompletion(agent, mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CompletionDuration.WithLabelValues(agent, mode).Observe(d.Seconds())
	if err != nil {
		m.CompletionErrors.WithLabelValues(agent).Inc()
	}
}

func (m *Metrics) RecordTokens(agent string, prompt, completion int) {
	if m == nil {
		return
	}
	m.TokensUsed.WithLabelValues(agent, "prompt").Add(float64(prompt))
	m.TokensUsed.WithLabelValues(agent, "completion").Add(float64(completion))
}

func (m *Metrics) RecordToolCall(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) RecordRun(agent, state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(agent, state).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path, statusCode string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}
