package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironclad-systems/governor/approval"
	"github.com/ironclad-systems/governor/audit"
	"github.com/ironclad-systems/governor/clearance"
	"github.com/ironclad-systems/governor/core"
	"github.com/ironclad-systems/governor/enforcement"
	"github.com/ironclad-systems/governor/internal/clock"
	"github.com/ironclad-systems/governor/resilience"
)

// Executor is the caller-supplied function invoked with the sanitized
// payload once an action clears enforcement. The core treats it as opaque;
// any returned error is propagated into the audit entry and re-raised via
// ExecutionFailed.
type Executor func(ctx context.Context, sanitizedPayload interface{}) (interface{}, error)

// ExecutionContext is a snapshot of an in-flight execute() call, returned by
// GetActiveContexts for observability.
type ExecutionContext struct {
	RequestID string
	Kind      clearance.ActionKind
	AgentID   string
	StartedAt time.Time
}

// PendingApprovalRef is returned from Execute when an action is routed to
// human approval instead of running immediately.
type PendingApprovalRef struct {
	ActionRequestID string
	ApprovalID      string
}

// ExecuteResult is the success tuple Execute returns on a completed run.
type ExecuteResult struct {
	Result clearance.ActionResult
	Entry  *audit.Entry
}

// MissionControl is the C5 orchestrator: it owns the Enforcement Engine, the
// Approval Workflow, and the Audit Trail for its lifetime, sequences
// Enforcement -> executor -> Audit, fans out events, and implements
// emergency stop.
type MissionControl struct {
	config GovernanceConfig

	engine   *enforcement.Engine
	workflow *approval.Workflow
	registry *approval.Registry
	trail    *audit.Trail
	events   *eventRegistry
	breaker  *resilience.CircuitBreaker

	logger core.Logger

	mu       sync.Mutex
	contexts map[string]ExecutionContext
}

// New constructs a MissionControl instance from a GovernanceConfig, wiring
// the three subcomponents together with a shared event sink and a shared
// monotonic clock.
func New(cfg GovernanceConfig, logger core.Logger) (*MissionControl, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("kernel/missioncontrol")
	}

	events := newEventRegistry(logger)
	cl := clock.Real

	registry := approval.NewRegistry()
	workflow := approval.New(cfg.approvalConfig(), registry, cl, componentLogger(logger, "kernel/approval"), events)
	engine := enforcement.New(cfg.enforcementConfig(), workflow, cl, componentLogger(logger, "kernel/enforcement"), events)
	trail := audit.New(cfg.auditConfig(), componentLogger(logger, "kernel/audit"), events)

	breakerCfg := resilience.DefaultConfig()
	breakerCfg.Name = "missioncontrol.executor"
	breakerCfg.Logger = componentLogger(logger, "kernel/missioncontrol")
	breaker, err := resilience.NewCircuitBreaker(breakerCfg)
	if err != nil {
		return nil, err
	}

	return &MissionControl{
		config:   cfg,
		engine:   engine,
		workflow: workflow,
		registry: registry,
		trail:    trail,
		events:   events,
		breaker:  breaker,
		logger:   logger,
		contexts: make(map[string]ExecutionContext),
	}, nil
}

func componentLogger(logger core.Logger, component string) core.Logger {
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		return cal.WithComponent(component)
	}
	return logger
}

// RegisterApprover adds an approver to the pool; fails with
// InsufficientApproverClearance if the identity is not L2.
func (m *MissionControl) RegisterApprover(approver clearance.ApproverIdentity) error {
	if err := m.registry.Register(approver); err != nil {
		return &Error{Code: CodeInsufficientApproverClearance, Message: err.Error()}
	}
	return nil
}

// UnregisterApprover removes an approver from the pool.
func (m *MissionControl) UnregisterApprover(id string) {
	m.registry.Unregister(id)
}

// Execute runs the governance pipeline for one action: preExecute, the
// caller-supplied executor (circuit-breaker protected), postExecute, and an
// audit append — or short-circuits to a pending approval reference, or
// fails with a tagged error.
func (m *MissionControl) Execute(ctx context.Context, kind clearance.ActionKind, agent clearance.AgentIdentity, payload interface{}, exec Executor) (*ExecuteResult, *PendingApprovalRef, error) {
	return m.execute(ctx, kind, agent, payload, exec, "")
}

// ExecuteResuming re-invokes the governance pipeline for an action request
// that previously short-circuited to a pending approval, identified by the
// action-request id from that PendingApprovalRef. The enforcement engine
// resolves the same approval chain rather than minting a new one, per the
// correlation-id resume semantics.
func (m *MissionControl) ExecuteResuming(ctx context.Context, actionRequestID string, kind clearance.ActionKind, agent clearance.AgentIdentity, payload interface{}, exec Executor) (*ExecuteResult, *PendingApprovalRef, error) {
	return m.execute(ctx, kind, agent, payload, exec, actionRequestID)
}

func (m *MissionControl) execute(ctx context.Context, kind clearance.ActionKind, agent clearance.AgentIdentity, payload interface{}, exec Executor, correlationID string) (*ExecuteResult, *PendingApprovalRef, error) {
	id := correlationID
	if id == "" {
		id = uuid.New().String()
	}
	req := clearance.ActionRequest{
		ID:            id,
		Kind:          kind,
		AgentID:       agent.ID,
		CreatedAt:     time.Now().UTC(),
		Payload:       payload,
		CorrelationID: id,
	}

	pre := m.engine.PreExecute(ctx, req, agent)
	if !pre.Proceed {
		if pre.Reason == enforcement.ReasonApprovalPending {
			// The approval request was already created inside Validate (the
			// engine is the sole owner of approval-request creation, per the
			// design note in DESIGN.md reconciling §4.1 and §4.4); Mission
			// Control only needs to surface the reference.
			return nil, &PendingApprovalRef{ActionRequestID: req.ID, ApprovalID: pre.ApprovalID}, nil
		}
		return nil, nil, m.rejectWithAudit(ctx, req, agent, pre)
	}

	m.trackContext(req, agent)
	defer m.untrackContext(req.ID)

	var output interface{}
	execErr := m.breaker.Execute(ctx, func() error {
		var innerErr error
		output, innerErr = exec(ctx, pre.SanitizedPayload)
		return innerErr
	})

	post := m.engine.PostExecute(ctx, req, clearance.ActionResult{Success: execErr == nil, RequestID: req.ID}, execErr)

	result := clearance.ActionResult{
		Success:     post.Success,
		RequestID:   req.ID,
		CompletedAt: time.Now().UTC(),
		Output:      output,
		ExecutedBy:  agent.ID,
	}
	if execErr != nil {
		result.ErrorMessage = execErr.Error()
	}

	entry := m.trail.Record(ctx, req, result, agent, approvalSnapshotFor(pre.Verdict.ApprovalRequest))

	if execErr != nil {
		return nil, nil, &Error{Code: CodeExecutionFailed, Message: execErr.Error(), Entry: entry}
	}
	return &ExecuteResult{Result: result, Entry: entry}, nil, nil
}

func (m *MissionControl) rejectWithAudit(ctx context.Context, req clearance.ActionRequest, agent clearance.AgentIdentity, pre enforcement.PreResult) error {
	if pre.Reason == enforcement.ReasonAlreadyExecuted {
		return &Error{Code: CodeAlreadyExecuted, Message: "action request already executed"}
	}

	errMessage := pre.Reason
	switch pre.Reason {
	case enforcement.ReasonClearanceViolation:
		errMessage = fmt.Sprintf("Insufficient clearance: required %s, actual %s", pre.Verdict.RequiredClearance, pre.Verdict.ActualClearance)
	case enforcement.ReasonApprovalRejected:
		if ar := pre.Verdict.ApprovalRequest; ar != nil && len(ar.Decisions) > 0 {
			errMessage = fmt.Sprintf("approval rejected: %s", ar.Decisions[len(ar.Decisions)-1].Reason)
		}
	}

	result := clearance.ActionResult{
		Success:      false,
		RequestID:    req.ID,
		CompletedAt:  time.Now().UTC(),
		ErrorMessage: errMessage,
	}
	entry := m.trail.Record(ctx, req, result, agent, approvalSnapshotFor(pre.Verdict.ApprovalRequest))

	if pre.Reason == enforcement.ReasonClearanceViolation {
		return &Error{Code: CodeClearanceViolation, Message: errMessage, Entry: entry}
	}
	return &Error{Code: CodeEnforcementRejected, Message: errMessage, Entry: entry}
}

func approvalSnapshotFor(ar *approval.ApprovalRequest) *audit.ApprovalSnapshot {
	if ar == nil {
		return nil
	}
	snap := &audit.ApprovalSnapshot{ID: ar.ID, State: string(ar.State)}
	if len(ar.Decisions) > 0 {
		last := ar.Decisions[len(ar.Decisions)-1]
		snap.ApproverID = last.ApproverID
		snap.DecidedAt = last.DecidedAt
	}
	return snap
}

func (m *MissionControl) trackContext(req clearance.ActionRequest, agent clearance.AgentIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[req.ID] = ExecutionContext{RequestID: req.ID, Kind: req.Kind, AgentID: agent.ID, StartedAt: time.Now().UTC()}
}

func (m *MissionControl) untrackContext(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, requestID)
}

// GetActiveContexts returns a snapshot of in-flight execution contexts.
func (m *MissionControl) GetActiveContexts() []ExecutionContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ExecutionContext, 0, len(m.contexts))
	for _, c := range m.contexts {
		out = append(out, c)
	}
	return out
}

// ApproveAction delegates to the approval workflow.
func (m *MissionControl) ApproveAction(ctx context.Context, approvalID, approverID string, signature []byte, reason string) (*approval.ApprovalRequest, error) {
	ar, err := m.workflow.Approve(ctx, approvalID, approverID, signature, reason)
	if err != nil {
		return nil, translateApprovalError(err)
	}
	return ar, nil
}

// RejectAction delegates to the approval workflow.
func (m *MissionControl) RejectAction(ctx context.Context, approvalID, approverID string, reason string, signature []byte) (*approval.ApprovalRequest, error) {
	ar, err := m.workflow.Reject(ctx, approvalID, approverID, signature, reason)
	if err != nil {
		return nil, translateApprovalError(err)
	}
	return ar, nil
}

func translateApprovalError(err error) error {
	ae, ok := err.(*approval.Error)
	if !ok {
		return err
	}
	return &Error{Code: Code(ae.Code), Message: ae.Message}
}

// GetPendingApprovals returns every approval request still pending.
func (m *MissionControl) GetPendingApprovals() []*approval.ApprovalRequest {
	return m.workflow.Pending()
}

// GetAuditTrail returns the audit-trail handle.
func (m *MissionControl) GetAuditTrail() *audit.Trail {
	return m.trail
}

// VerifyAuditIntegrity recomputes and checks the entire chain.
func (m *MissionControl) VerifyAuditIntegrity(ctx context.Context) bool {
	return m.trail.VerifyChain(ctx)
}

// ExportAuditTrail returns the JSON compliance artifact.
func (m *MissionControl) ExportAuditTrail() ([]byte, error) {
	return m.trail.ExportJSON()
}

// OnEvent registers a handler for kind on the shared fan-out registry; since
// every subcomponent was constructed with this same registry as its
// clearance.EventSink, registering here transitively covers audit,
// enforcement, and approval events.
func (m *MissionControl) OnEvent(kind clearance.EventKind, handler EventHandler) Unregister {
	return m.events.On(kind, handler)
}

// EmergencyStop revokes every pending approval and emits a composite
// action-rejected event at critical severity carrying the revoked count and
// the reason. It does not cancel in-flight executors.
func (m *MissionControl) EmergencyStop(reason string) {
	pending := m.workflow.Pending()
	revoked := 0
	for _, ar := range pending {
		if _, err := m.workflow.RevokePending(ar.ID, "emergency-stop", reason); err == nil {
			revoked++
		}
	}
	m.logger.Warn("emergency stop executed", map[string]interface{}{
		"operation":     "governor.emergencyStop",
		"revoked_count": revoked,
		"reason":        reason,
	})
	m.events.Emit(clearance.EventActionRejected, clearance.SeverityCritical, map[string]interface{}{
		"revokedCount": revoked,
		"reason":       reason,
		"composite":    true,
	})
}
