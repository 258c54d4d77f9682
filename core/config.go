package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// LoggingConfig controls the ambient ProductionLogger's output shape.
type LoggingConfig struct {
	Level      string `json:"level" env:"GOVERNOR_LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"GOVERNOR_LOG_FORMAT" default:"json"`
	Output     string `json:"output" env:"GOVERNOR_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" env:"GOVERNOR_LOG_TIME_FORMAT" default:"2006-01-02T15:04:05.000Z07:00"`
}

// DevelopmentConfig holds settings for local development and testing. When
// Enabled=true the kernel favors human-readable logs and debug logging.
//
// WARNING: never enable development mode in production.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" env:"GOVERNOR_DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" env:"GOVERNOR_DEBUG" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" env:"GOVERNOR_PRETTY_LOGS" default:"false"`
}

// CORSConfig configures the optional httpapi surface's CORS middleware.
type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// DefaultLoggingConfig returns sane defaults, adjusted for the detected
// environment: Kubernetes-shaped environments get JSON logging, anything
// else gets human-readable text.
func DefaultLoggingConfig() LoggingConfig {
	cfg := LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		cfg.Format = "text"
	}
	return cfg
}

// ============================================================================
// ProductionLogger - layered observability
// ============================================================================

// ProductionLogger is the default Logger/ComponentAwareLogger implementation.
// It writes JSON or human-readable text and, once telemetry registers itself
// via SetMetricsRegistry, also emits a low-cardinality operation counter for
// every log line (the metrics layer is weakly coupled so core never imports
// telemetry directly).
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	component   string
	format      string
	output      io.Writer

	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	logger := &ProductionLogger{
		level:          strings.ToLower(logging.Level),
		debug:          dev.DebugLogging || logging.Level == "debug",
		serviceName:    serviceName,
		component:      "kernel",
		format:         logging.Format,
		output:         output,
		metricsEnabled: false,
	}
	trackLogger(logger)
	return logger
}

// WithComponent returns a logger scoped to the given component name,
// sharing this logger's configuration and output.
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		level:          p.level,
		debug:          p.debug,
		serviceName:    p.serviceName,
		component:      component,
		format:         p.format,
		output:         p.output,
		metricsEnabled: p.metricsEnabled,
	}
}

// EnableMetrics is called by the telemetry package to turn on the metrics
// layer once it has initialized.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if p.format == "json" {
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": p.component,
			"message":   msg,
		}

		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}

		for k, v := range fields {
			logEntry[k] = v
		}

		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s/%s] %s%s%s\n",
			timestamp, level, p.serviceName, p.component, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitComponentMetric(level, fields, ctx)
	}
}

// emitComponentMetric emits a cardinality-aware operation counter tagged by
// level, component, and any low-cardinality fields.
func (p *ProductionLogger) emitComponentMetric(level string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{
		"level", level,
		"service", p.serviceName,
		"component", p.component,
	}

	for k, v := range fields {
		switch k {
		case "operation", "status", "error_code", "action_kind":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "governor.kernel.operations", 1.0, labels...)
	} else {
		emitMetric("governor.kernel.operations", 1.0, labels...)
	}
}

func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
