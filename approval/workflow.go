package approval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ironclad-systems/governor/clearance"
	"github.com/ironclad-systems/governor/core"
	"github.com/ironclad-systems/governor/internal/clock"
	"github.com/ironclad-systems/governor/telemetry"
)

// State is an ApprovalRequest's position in its state machine.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
	StateExpired  State = "expired"
	StateRevoked  State = "revoked"
)

// Decision records a single approver's vote.
type Decision struct {
	ApproverID string
	Approve    bool
	Reason     string
	Signature  []byte
	DecidedAt  time.Time
}

// ApprovalRequest is the C4 record tracked from submission to terminal state.
type ApprovalRequest struct {
	ID              string
	ActionRequestID string
	ActionKind      clearance.ActionKind
	Requester       clearance.AgentIdentity
	State           State
	ChosenApprovers []string
	Decisions       []Decision
	CreatedAt       time.Time
	ExpiresAt       time.Time
	EvidenceHash    string

	RevokedBy     string
	RevokeReason  string
}

func (a *ApprovalRequest) clone() *ApprovalRequest {
	c := *a
	c.ChosenApprovers = append([]string(nil), a.ChosenApprovers...)
	c.Decisions = append([]Decision(nil), a.Decisions...)
	return &c
}

// Config configures the approval workflow's approver-selection and
// escalation behavior (spec §4.3 / §6).
type Config struct {
	MinApprovers        int
	RequireUnanimous    bool
	EscalationTimeoutMs int
	NotifyChannels      []string
}

// DefaultConfig returns the workflow's standalone defaults: one approver,
// no unanimity, and EscalationTimeoutMs 0, which schedules no escalation
// timer. governor.NewGovernanceConfig derives a non-zero escalation delay
// when it builds the workflow's config.
func DefaultConfig() Config {
	return Config{
		MinApprovers:        1,
		RequireUnanimous:    false,
		EscalationTimeoutMs: 0,
	}
}

// Workflow owns the approval-request state machine (C4). It has no
// dependency on the audit trail or the enforcement engine; Mission Control
// wires the three together.
type Workflow struct {
	mu sync.Mutex

	config   Config
	registry *Registry
	clock    clock.Clock
	logger   core.Logger
	events   clearance.EventSink

	requests    map[string]*ApprovalRequest
	byActionReq map[string]string

	escalationTimers map[string]clock.Timer
}

// New constructs a Workflow. A nil clock defaults to the real wall clock.
func New(cfg Config, registry *Registry, cl clock.Clock, logger core.Logger, events clearance.EventSink) *Workflow {
	if cl == nil {
		cl = clock.Real
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if events == nil {
		events = clearance.NoOpEventSink{}
	}
	return &Workflow{
		config:           cfg,
		registry:         registry,
		clock:            cl,
		logger:           logger,
		events:           events,
		requests:         make(map[string]*ApprovalRequest),
		byActionReq:      make(map[string]string),
		escalationTimers: make(map[string]clock.Timer),
	}
}

// SubmitForApproval creates a pending ApprovalRequest for req, assigning
// approvers from the registry and computing an evidence hash binding the
// request to the action it gates. expiresAt is supplied by the caller (the
// enforcement engine owns the absolute deadline; see ExpireIfPending) so a
// single monotonic clock governs both the escalation warning scheduled here
// and the hard expiry scheduled by the caller.
func (w *Workflow) SubmitForApproval(ctx context.Context, req clearance.ActionRequest, requester clearance.AgentIdentity, expiresAt time.Time) (*ApprovalRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.registry.Size() == 0 {
		err := newError(CodeNoApproversRegistered, "no approvers registered for action %s", req.ID)
		telemetry.RecordSpanError(ctx, err)
		return nil, err
	}

	chosenCount := w.config.MinApprovers
	if chosenCount < 1 {
		chosenCount = 1
	}
	chosen := w.registry.Select(chosenCount)

	now := w.clock.Now()
	ar := &ApprovalRequest{
		ID:              uuid.New().String(),
		ActionRequestID: req.ID,
		ActionKind:      req.Kind,
		Requester:       requester,
		State:           StatePending,
		ChosenApprovers: chosen,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
		EvidenceHash:    evidenceHash(req, requester, now),
	}
	w.requests[ar.ID] = ar
	w.byActionReq[req.ID] = ar.ID

	w.logger.Info("approval requested", map[string]interface{}{
		"operation":   "approval.submit",
		"approval_id": ar.ID,
		"action_kind": string(req.Kind),
	})
	w.events.Emit(clearance.EventActionRequested, clearance.SeverityInfo, map[string]interface{}{
		"approvalId":      ar.ID,
		"actionRequestId": req.ID,
		"actionKind":      string(req.Kind),
	})
	telemetry.AddSpanEvent(ctx, "approval.requested",
		attribute.String("governor.action.kind", string(req.Kind)),
		attribute.String("approval.id", ar.ID),
	)
	telemetry.Counter("approval.requests", "action_kind", string(req.Kind))

	if w.config.EscalationTimeoutMs > 0 {
		delay := time.Duration(w.config.EscalationTimeoutMs) * time.Millisecond
		id := ar.ID
		w.escalationTimers[id] = w.clock.AfterFunc(delay, func() { w.escalate(id) })
	}

	return ar.clone(), nil
}

func evidenceHash(req clearance.ActionRequest, requester clearance.AgentIdentity, at time.Time) string {
	payload := struct {
		ActionRequestID string `json:"actionRequestId"`
		ActionKind      string `json:"actionKind"`
		AgentID         string `json:"agentId"`
		SubmittedAt     string `json:"submittedAt"`
	}{
		ActionRequestID: req.ID,
		ActionKind:      string(req.Kind),
		AgentID:         requester.ID,
		SubmittedAt:     at.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (w *Workflow) escalate(approvalID string) {
	w.mu.Lock()
	ar, ok := w.requests[approvalID]
	if !ok || ar.State != StatePending {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.logger.Warn("approval escalation timeout reached", map[string]interface{}{
		"operation":   "approval.escalate",
		"approval_id": approvalID,
	})
	w.events.Emit(clearance.EventApprovalTimeout, clearance.SeverityWarning, map[string]interface{}{
		"approvalId": approvalID,
		"phase":      "escalation",
	})
	telemetry.Counter("approval.timeouts", "phase", "escalation")
}

// Approve records an affirmative decision and, once the configured
// threshold is met, transitions the request to approved.
func (w *Workflow) Approve(ctx context.Context, approvalID, approverID string, signature []byte, reason string) (*ApprovalRequest, error) {
	return w.decide(ctx, approvalID, approverID, true, signature, reason)
}

// Reject records a rejection; a single rejection is final.
func (w *Workflow) Reject(ctx context.Context, approvalID, approverID string, signature []byte, reason string) (*ApprovalRequest, error) {
	return w.decide(ctx, approvalID, approverID, false, signature, reason)
}

func (w *Workflow) decide(ctx context.Context, approvalID, approverID string, approve bool, signature []byte, reason string) (*ApprovalRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ar, ok := w.requests[approvalID]
	if !ok {
		err := newError(CodeNotFound, "approval %q not found", approvalID)
		telemetry.RecordSpanError(ctx, err)
		return nil, err
	}
	if ar.State != StatePending {
		err := newError(CodeAlreadyDecided, "approval %q already %s", approvalID, ar.State)
		telemetry.RecordSpanError(ctx, err)
		return nil, err
	}
	if !containsString(ar.ChosenApprovers, approverID) {
		err := newError(CodeUnauthorized, "approver %q not assigned to approval %q", approverID, approvalID)
		telemetry.RecordSpanError(ctx, err)
		return nil, err
	}
	if _, registered := w.registry.Lookup(approverID); !registered {
		err := newError(CodeUnregistered, "approver %q is not registered", approverID)
		telemetry.RecordSpanError(ctx, err)
		return nil, err
	}
	for _, d := range ar.Decisions {
		if d.ApproverID == approverID {
			err := newError(CodeDuplicateDecision, "approver %q already decided on %q", approverID, approvalID)
			telemetry.RecordSpanError(ctx, err)
			return nil, err
		}
	}

	now := w.clock.Now()
	ar.Decisions = append(ar.Decisions, Decision{
		ApproverID: approverID,
		Approve:    approve,
		Reason:     reason,
		Signature:  signature,
		DecidedAt:  now,
	})
	telemetry.Counter("approval.decisions", "action_kind", string(ar.ActionKind), "approve", boolLabel(approve))

	if !approve {
		ar.State = StateRejected
		w.stopEscalation(approvalID)
		w.logger.Warn("approval rejected", map[string]interface{}{
			"operation": "approval.reject", "approval_id": approvalID, "approver_id": approverID,
		})
		w.events.Emit(clearance.EventActionRejected, clearance.SeverityWarning, map[string]interface{}{
			"approvalId": approvalID, "approverId": approverID, "reason": reason,
		})
		telemetry.AddSpanEvent(ctx, "approval.rejected", attribute.String("approval.id", approvalID))
		telemetry.Counter("approval.outcomes", "outcome", "rejected")
		telemetry.Duration("approval.time_to_decision_ms", ar.CreatedAt, "outcome", "rejected")
		return ar.clone(), nil
	}

	if w.thresholdMet(ar) {
		ar.State = StateApproved
		w.stopEscalation(approvalID)
		w.logger.Info("approval approved", map[string]interface{}{
			"operation": "approval.approve", "approval_id": approvalID,
		})
		w.events.Emit(clearance.EventActionApproved, clearance.SeverityInfo, map[string]interface{}{
			"approvalId": approvalID,
		})
		telemetry.AddSpanEvent(ctx, "approval.approved", attribute.String("approval.id", approvalID))
		telemetry.Counter("approval.outcomes", "outcome", "approved")
		telemetry.Duration("approval.time_to_decision_ms", ar.CreatedAt, "outcome", "approved")
	}
	return ar.clone(), nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (w *Workflow) thresholdMet(ar *ApprovalRequest) bool {
	affirmative := 0
	for _, d := range ar.Decisions {
		if d.Approve {
			affirmative++
		}
	}
	if w.config.RequireUnanimous {
		return affirmative == len(ar.ChosenApprovers)
	}
	need := w.config.MinApprovers
	if need < 1 {
		need = 1
	}
	if need > len(ar.ChosenApprovers) {
		need = len(ar.ChosenApprovers)
	}
	return affirmative >= need
}

// Revoke moves an approved request to revoked; it is not valid from any
// other state.
func (w *Workflow) Revoke(approvalID, by, reason string) (*ApprovalRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ar, ok := w.requests[approvalID]
	if !ok {
		return nil, newError(CodeNotFound, "approval %q not found", approvalID)
	}
	if ar.State != StateApproved {
		return nil, newError(CodeInvalidTransition, "cannot revoke approval %q from state %s", approvalID, ar.State)
	}
	return w.revokeLocked(ar, by, reason)
}

// RevokePending force-revokes a request regardless of its current state,
// short of a terminal one. It exists solely for Mission Control's
// emergencyStop, which must be able to kill in-flight pending approvals as
// well as already-approved ones; callers outside that path should use
// Revoke instead.
func (w *Workflow) RevokePending(approvalID, by, reason string) (*ApprovalRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ar, ok := w.requests[approvalID]
	if !ok {
		return nil, newError(CodeNotFound, "approval %q not found", approvalID)
	}
	if ar.State == StateRejected || ar.State == StateExpired || ar.State == StateRevoked {
		return nil, newError(CodeInvalidTransition, "cannot revoke approval %q from terminal state %s", approvalID, ar.State)
	}
	return w.revokeLocked(ar, by, reason)
}

func (w *Workflow) revokeLocked(ar *ApprovalRequest, by, reason string) (*ApprovalRequest, error) {
	ar.State = StateRevoked
	ar.RevokedBy = by
	ar.RevokeReason = reason
	w.stopEscalation(ar.ID)
	w.logger.Warn("approval revoked", map[string]interface{}{
		"operation": "approval.revoke", "approval_id": ar.ID, "by": by,
	})
	w.events.Emit(clearance.EventActionRejected, clearance.SeverityCritical, map[string]interface{}{
		"approvalId": ar.ID, "revokedBy": by, "reason": reason,
	})
	return ar.clone(), nil
}

// ExpireIfPending transitions a still-pending request to expired. It is
// called by the enforcement engine's absolute-deadline timer, not by the
// workflow's own escalation timer (see SubmitForApproval's doc comment).
func (w *Workflow) ExpireIfPending(approvalID string) (*ApprovalRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ar, ok := w.requests[approvalID]
	if !ok || ar.State != StatePending {
		return nil, false
	}
	ar.State = StateExpired
	w.stopEscalation(approvalID)
	w.logger.Warn("approval expired", map[string]interface{}{
		"operation": "approval.expire", "approval_id": approvalID,
	})
	w.events.Emit(clearance.EventApprovalTimeout, clearance.SeverityWarning, map[string]interface{}{
		"approvalId": approvalID,
		"phase":      "expiry",
	})
	telemetry.Counter("approval.timeouts", "phase", "expiry")
	return ar.clone(), true
}

func (w *Workflow) stopEscalation(approvalID string) {
	if t, ok := w.escalationTimers[approvalID]; ok {
		t.Stop()
		delete(w.escalationTimers, approvalID)
	}
}

// Get returns a copy of the approval request, or nil if unknown.
func (w *Workflow) Get(approvalID string) *ApprovalRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	ar, ok := w.requests[approvalID]
	if !ok {
		return nil
	}
	return ar.clone()
}

// ForActionRequest resolves the approval request associated with an action
// request id, if one exists.
func (w *Workflow) ForActionRequest(actionRequestID string) *ApprovalRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.byActionReq[actionRequestID]
	if !ok {
		return nil
	}
	return w.requests[id].clone()
}

// Pending returns copies of every request still in the pending state.
func (w *Workflow) Pending() []*ApprovalRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*ApprovalRequest
	for _, ar := range w.requests {
		if ar.State == StatePending {
			out = append(out, ar.clone())
		}
	}
	telemetry.Gauge("approval.pending", float64(len(out)))
	return out
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
