package telemetry

// This file declares the metrics of each kernel subsystem. It lives
// in the telemetry package (rather than in clearance/audit/enforcement/
// approval themselves) to avoid those packages importing an OTel-specific
// dependency just to declare a metric name.

func init() {
	// Enforcement Engine metrics
	DeclareMetrics("enforcement", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "enforcement.decisions",
				Type:   "counter",
				Help:   "Enforcement verdicts by outcome",
				Labels: []string{"action_kind", "outcome"},
			},
			{
				Name:   "enforcement.clearance_violations",
				Type:   "counter",
				Help:   "Requests rejected for insufficient clearance",
				Labels: []string{"action_kind", "required_level", "actual_level"},
			},
			{
				Name:   "enforcement.already_executed",
				Type:   "counter",
				Help:   "Idempotency rejections of a repeated action-request id",
				Labels: []string{"action_kind"},
			},
			{
				Name:    "enforcement.pre_execute.duration_ms",
				Type:    "histogram",
				Help:    "preExecute latency",
				Labels:  []string{"action_kind"},
				Unit:    "ms",
				Buckets: []float64{0.1, 1, 5, 25, 100, 500},
			},
		},
	})

	// Approval Workflow metrics
	DeclareMetrics("approval", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "approval.requests",
				Type:   "counter",
				Help:   "Approval requests submitted",
				Labels: []string{"action_kind"},
			},
			{
				Name:   "approval.decisions",
				Type:   "counter",
				Help:   "Approval decisions recorded",
				Labels: []string{"action_kind", "approve"},
			},
			{
				Name:   "approval.outcomes",
				Type:   "counter",
				Help:   "Terminal approval states reached",
				Labels: []string{"outcome"},
			},
			{
				Name:   "approval.timeouts",
				Type:   "counter",
				Help:   "Escalation and expiry timer firings",
				Labels: []string{"phase"},
			},
			{
				Name:   "approval.pending",
				Type:   "gauge",
				Help:   "Approval requests currently pending",
				Labels: []string{},
			},
			{
				Name:    "approval.time_to_decision_ms",
				Type:    "histogram",
				Help:    "Time from submission to a terminal decision",
				Labels:  []string{"outcome"},
				Unit:    "ms",
				Buckets: []float64{100, 1000, 10000, 60000, 300000, 1800000},
			},
		},
	})

	// Audit Trail metrics
	DeclareMetrics("audit", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "audit.entries",
				Type:   "counter",
				Help:   "Audit entries appended",
				Labels: []string{"action_kind", "success"},
			},
			{
				Name:   "audit.chain_length",
				Type:   "gauge",
				Help:   "Total entries currently held in the trail",
				Labels: []string{},
			},
			{
				Name:   "audit.tamper_detected",
				Type:   "counter",
				Help:   "verifyChain failures by reason code",
				Labels: []string{"reason"},
			},
			{
				Name:    "audit.verify_chain.duration_ms",
				Type:    "histogram",
				Help:    "verifyChain walk latency",
				Labels:  []string{},
				Unit:    "ms",
				Buckets: []float64{0.1, 1, 10, 100, 1000},
			},
		},
	})

	// Mission Control metrics. These names are declared only: no package of
	// the module emits them.
	DeclareMetrics("missioncontrol", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "missioncontrol.executions",
				Type:   "counter",
				Help:   "execute() outcomes",
				Labels: []string{"action_kind", "outcome"},
			},
			{
				Name:   "missioncontrol.active_contexts",
				Type:   "gauge",
				Help:   "In-flight execution-context records",
				Labels: []string{},
			},
			{
				Name:   "missioncontrol.emergency_stops",
				Type:   "counter",
				Help:   "emergencyStop invocations",
				Labels: []string{},
			},
			{
				Name:   "missioncontrol.events_dispatched",
				Type:   "counter",
				Help:   "Event handler invocations by kind",
				Labels: []string{"kind"},
			},
			{
				Name:   "missioncontrol.event_handler_errors",
				Type:   "counter",
				Help:   "Event handlers that panicked or returned an error",
				Labels: []string{"kind"},
			},
		},
	})
}
