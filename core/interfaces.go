package core

import (
	"context"
	"sync"
)

// Logger is the minimal logging interface every kernel component depends on.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	// Context-aware methods for distributed tracing and request correlation
	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with component context support, so
// every subsystem can tag its own log lines while sharing one base logger.
//
//	kubectl logs ... | jq 'select(.component == "kernel/enforcement")'
//
// Component naming convention:
//   - "kernel/enforcement"    - Enforcement Engine
//   - "kernel/approval"       - Approval Workflow
//   - "kernel/audit"          - Audit Trail
//   - "kernel/missioncontrol" - Mission Control orchestrator
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// Telemetry is the optional tracing/metrics facade ambient code depends on.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a single telemetry span.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// NoOpLogger is the zero-value default: every kernel constructor falls back
// to it when the caller supplies no logger.
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

func (n *NoOpLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}

// NoOpTelemetry is the zero-value default telemetry facade.
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan is the zero-value default span.
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}

// ============================================================================
// Global registry pattern for telemetry integration
// ============================================================================

// MetricsRegistry lets the telemetry package register itself with core
// without core importing telemetry, so ProductionLogger can emit metrics for
// every log line once telemetry initializes.
type MetricsRegistry interface {
	// Counter increments a counter metric by 1.
	Counter(name string, labels ...string)

	// EmitWithContext emits a metric with context for trace correlation.
	EmitWithContext(ctx context.Context, name string, value float64, labels ...string)

	// GetBaggage returns baggage from context for correlation.
	GetBaggage(ctx context.Context) map[string]string

	// Gauge sets a gauge metric to a specific value.
	Gauge(name string, value float64, labels ...string)

	// Histogram records a value in a histogram distribution.
	Histogram(name string, value float64, labels ...string)
}

var globalMetricsRegistry MetricsRegistry

// SetMetricsRegistry allows the telemetry package to register itself.
func SetMetricsRegistry(registry MetricsRegistry) {
	globalMetricsRegistry = registry
	enableMetricsOnExistingLoggers()
}

// GetGlobalMetricsRegistry returns the global metrics registry if available.
func GetGlobalMetricsRegistry() MetricsRegistry {
	return globalMetricsRegistry
}

var createdLoggers []*ProductionLogger
var loggersMutex sync.RWMutex

func trackLogger(logger *ProductionLogger) {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()

	createdLoggers = append(createdLoggers, logger)
	if globalMetricsRegistry != nil {
		logger.EnableMetrics()
	}
}

func enableMetricsOnExistingLoggers() {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()

	for _, logger := range createdLoggers {
		logger.EnableMetrics()
	}
}
