package enforcement

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ironclad-systems/governor/approval"
	"github.com/ironclad-systems/governor/clearance"
	"github.com/ironclad-systems/governor/core"
	"github.com/ironclad-systems/governor/internal/clock"
	"github.com/ironclad-systems/governor/telemetry"
)

// Reason codes returned by PreResult when proceed is false. Mission Control
// maps each onto the §7 tagged error taxonomy.
const (
	ReasonClearanceViolation = "clearance-violation"
	ReasonAlreadyExecuted    = "already-executed"
	ReasonApprovalPending    = "approval-pending"
	ReasonApprovalRejected   = "approval-rejected"
	ReasonApprovalExpired    = "approval-expired"
	ReasonApprovalRevoked    = "approval-revoked"
)

// ApprovalSubmitter is the subset of approval.Workflow the engine needs to
// create and query approval requests. Scoped to an interface so engine
// tests can substitute a fake without dragging in the full workflow state
// machine.
type ApprovalSubmitter interface {
	SubmitForApproval(ctx context.Context, req clearance.ActionRequest, requester clearance.AgentIdentity, expiresAt time.Time) (*approval.ApprovalRequest, error)
	ForActionRequest(actionRequestID string) *approval.ApprovalRequest
	ExpireIfPending(approvalID string) (*approval.ApprovalRequest, bool)
}

// Config configures the engine's L2 approval-request creation.
type Config struct {
	// L2ApprovalTimeoutMs is the absolute deadline after which a still-pending
	// L2 approval request is force-expired.
	L2ApprovalTimeoutMs int
	// AutoRejectOnTimeout, when true (default), transitions the request to
	// expired when the deadline fires. When false the deadline still emits
	// the approval-timeout event but leaves the request pending, making the
	// deadline informational only.
	AutoRejectOnTimeout bool
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{L2ApprovalTimeoutMs: 5 * 60 * 1000, AutoRejectOnTimeout: true}
}

// EnforcementVerdict is validate's pure decision output.
type EnforcementVerdict struct {
	RequiredClearance clearance.Level
	ActualClearance   clearance.Level
	Allowed           bool
	RequiresApproval  bool
	ApprovalRequest   *approval.ApprovalRequest
	Reason            string
}

// PreResult is preExecute's decision: whether the caller may proceed to
// invoke the executor, and with which (sanitized) payload.
type PreResult struct {
	Proceed          bool
	Reason           string
	ApprovalID       string
	SanitizedPayload interface{}
	Verdict          EnforcementVerdict
}

// PostResult is postExecute's report.
type PostResult struct {
	Success        bool
	CleanupActions []string
}

// Engine is the C3 Enforcement Engine: clearance arithmetic, idempotency,
// pre/post hooks, payload sanitization, and L2 approval-request creation
// with timeout scheduling.
type Engine struct {
	config   Config
	approval ApprovalSubmitter
	clock    clock.Clock
	logger   core.Logger
	events   clearance.EventSink

	idempotency *idempotencySet
	expiry      *expiryScheduler
}

// New constructs an Engine. approvalSubmitter is typically *approval.Workflow.
func New(cfg Config, approvalSubmitter ApprovalSubmitter, cl clock.Clock, logger core.Logger, events clearance.EventSink) *Engine {
	if cl == nil {
		cl = clock.Real
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if events == nil {
		events = clearance.NoOpEventSink{}
	}
	return &Engine{
		config:      cfg,
		approval:    approvalSubmitter,
		clock:       cl,
		logger:      logger,
		events:      events,
		idempotency: newIdempotencySet(),
		expiry:      newExpiryScheduler(cl),
	}
}

// Validate is the pure clearance decision plus, for an L2 request with no
// existing approval on file, the creation of a new pending approval request.
// For L2 kinds the agent's clearance rank is not compared: every L2 request
// is routed to the approval workflow.
func (e *Engine) Validate(ctx context.Context, req clearance.ActionRequest, agent clearance.AgentIdentity) EnforcementVerdict {
	required, ok := clearance.RequiredClearance(req.Kind)
	if !ok {
		return EnforcementVerdict{Allowed: false, Reason: "unbound action kind"}
	}

	v := EnforcementVerdict{RequiredClearance: required, ActualClearance: agent.Clearance}

	// L2-class actions always route through the approval workflow, even when
	// the requesting agent's own clearance is itself L2 — human sign-off,
	// not clearance rank, is what gates this class of action, and the
	// rank comparison below is never reached for it. Checking this before the
	// sufficiency shortcut is what makes spec scenario S3 (an L2-cleared
	// agent performing an L2 action) still produce a pending approval.
	if clearance.IsL2(req.Kind) {
		if existing := e.approval.ForActionRequest(req.ID); existing != nil {
			v.RequiresApproval = true
			v.ApprovalRequest = existing
			return v
		}

		expiresAt := e.clock.Now().Add(time.Duration(e.config.L2ApprovalTimeoutMs) * time.Millisecond)
		ar, err := e.approval.SubmitForApproval(ctx, req, agent, expiresAt)
		if err != nil {
			telemetry.RecordSpanError(ctx, err)
			v.Allowed = false
			v.Reason = err.Error()
			return v
		}

		approvalID := ar.ID
		e.expiry.schedule(approvalID, expiresAt, func() {
			if e.config.AutoRejectOnTimeout {
				e.approval.ExpireIfPending(approvalID)
			} else {
				e.events.Emit(clearance.EventApprovalTimeout, clearance.SeverityWarning, map[string]interface{}{
					"approvalId": approvalID,
					"phase":      "expiry-informational",
				})
			}
		})

		v.RequiresApproval = true
		v.ApprovalRequest = ar
		telemetry.Counter("enforcement.decisions", "action_kind", string(req.Kind), "outcome", "requires_approval")
		return v
	}

	if clearance.HasSufficient(agent.Clearance, required) {
		v.Allowed = true
		telemetry.Counter("enforcement.decisions", "action_kind", string(req.Kind), "outcome", "allowed")
		return v
	}

	v.Allowed = false
	v.Reason = ReasonClearanceViolation
	e.emitClearanceViolation(ctx, req, agent, required)
	telemetry.Counter("enforcement.decisions", "action_kind", string(req.Kind), "outcome", "denied")
	return v
}

func (e *Engine) emitClearanceViolation(ctx context.Context, req clearance.ActionRequest, agent clearance.AgentIdentity, required clearance.Level) {
	e.logger.Error("clearance violation", map[string]interface{}{
		"operation":          "enforcement.validate",
		"action_id":          req.ID,
		"required_clearance": required.String(),
		"actual_clearance":   agent.Clearance.String(),
	})
	e.events.Emit(clearance.EventClearanceViolation, clearance.SeverityCritical, map[string]interface{}{
		"actionId":          req.ID,
		"requiredClearance": required.String(),
		"actualClearance":   agent.Clearance.String(),
	})
	telemetry.AddSpanEvent(ctx, "enforcement.clearance_violation",
		attribute.String("governor.action.kind", string(req.Kind)),
		attribute.String("governor.clearance.required", required.String()),
		attribute.String("governor.clearance.actual", agent.Clearance.String()),
	)
	telemetry.Counter("enforcement.clearance_violations", "action_kind", string(req.Kind),
		"required_level", required.String(), "actual_level", agent.Clearance.String())
}

// PreExecute invokes Validate, enforces idempotency, resolves the approval
// short-circuit for L2 actions, and sanitizes the payload on fallthrough.
func (e *Engine) PreExecute(ctx context.Context, req clearance.ActionRequest, agent clearance.AgentIdentity) PreResult {
	start := time.Now()
	defer func() { telemetry.Duration("enforcement.pre_execute.duration_ms", start, "action_kind", string(req.Kind)) }()

	if e.idempotency.seen(req.ID) {
		telemetry.Counter("enforcement.already_executed", "action_kind", string(req.Kind))
		return PreResult{Proceed: false, Reason: ReasonAlreadyExecuted}
	}

	verdict := e.Validate(ctx, req, agent)

	if !verdict.RequiresApproval {
		if !verdict.Allowed {
			return PreResult{Proceed: false, Reason: verdict.Reason, Verdict: verdict}
		}
		return PreResult{Proceed: true, SanitizedPayload: sanitizePayload(req.Payload), Verdict: verdict}
	}

	ar := verdict.ApprovalRequest
	switch ar.State {
	case approval.StatePending:
		return PreResult{Proceed: false, Reason: ReasonApprovalPending, ApprovalID: ar.ID, Verdict: verdict}
	case approval.StateApproved:
		return PreResult{Proceed: true, SanitizedPayload: sanitizePayload(req.Payload), ApprovalID: ar.ID, Verdict: verdict}
	case approval.StateRejected:
		return PreResult{Proceed: false, Reason: ReasonApprovalRejected, ApprovalID: ar.ID, Verdict: verdict}
	case approval.StateExpired:
		return PreResult{Proceed: false, Reason: ReasonApprovalExpired, ApprovalID: ar.ID, Verdict: verdict}
	case approval.StateRevoked:
		return PreResult{Proceed: false, Reason: ReasonApprovalRevoked, ApprovalID: ar.ID, Verdict: verdict}
	default:
		return PreResult{Proceed: false, Reason: ReasonApprovalPending, ApprovalID: ar.ID, Verdict: verdict}
	}
}

// PostExecute marks the request id completed, emits the terminal event, and
// reports cleanup actions on failure.
func (e *Engine) PostExecute(ctx context.Context, req clearance.ActionRequest, res clearance.ActionResult, execErr error) PostResult {
	e.idempotency.markCompleted(req.ID)

	if execErr == nil && res.Success {
		e.logger.Info("action executed", map[string]interface{}{
			"operation": "enforcement.postExecute",
			"action_id": req.ID,
		})
		e.events.Emit(clearance.EventActionExecuted, clearance.SeverityInfo, map[string]interface{}{
			"actionId": req.ID,
		})
		telemetry.AddSpanEvent(ctx, "enforcement.post_execute.success", attribute.String("governor.action.kind", string(req.Kind)))
		return PostResult{Success: true}
	}

	e.logger.Warn("action failed", map[string]interface{}{
		"operation": "enforcement.postExecute",
		"action_id": req.ID,
	})
	e.events.Emit(clearance.EventActionFailed, clearance.SeverityWarning, map[string]interface{}{
		"actionId": req.ID,
	})
	if execErr != nil {
		telemetry.RecordSpanError(ctx, execErr)
	}
	return PostResult{Success: false, CleanupActions: []string{"ROLLBACK_PENDING_CHANGES", "RELEASE_RESOURCES"}}
}
