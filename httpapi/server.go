// Package httpapi exposes the governance kernel's primary API surface
// (§6 of the spec) as a JSON-over-HTTP collaborator, for hosts that want a
// network boundary around Mission Control rather than linking it in-process.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ironclad-systems/governor/clearance"
	"github.com/ironclad-systems/governor/core"
	"github.com/ironclad-systems/governor/governor"
)

// Server adapts a *governor.MissionControl onto net/http handlers for every
// operation in the §6 primary API surface table.
type Server struct {
	mc     *governor.MissionControl
	logger core.Logger
	mux    *http.ServeMux
}

// NewServer builds the handler tree. devMode controls LoggingMiddleware's
// verbosity the same way it does across the rest of the kernel's ambient
// stack.
func NewServer(mc *governor.MissionControl, logger core.Logger, cors *core.CORSConfig, devMode bool) http.Handler {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	s := &Server{mc: mc, logger: logger, mux: http.NewServeMux()}
	s.routes()

	return withTracing(chain(s.mux, logger, cors, devMode))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /approvers", s.handleRegisterApprover)
	s.mux.HandleFunc("DELETE /approvers/{id}", s.handleUnregisterApprover)
	s.mux.HandleFunc("POST /actions/execute", s.handleExecute)
	s.mux.HandleFunc("POST /approvals/{id}/approve", s.handleApprove)
	s.mux.HandleFunc("POST /approvals/{id}/reject", s.handleReject)
	s.mux.HandleFunc("POST /emergency-stop", s.handleEmergencyStop)
	s.mux.HandleFunc("GET /approvals/pending", s.handleGetPendingApprovals)
	s.mux.HandleFunc("GET /audit/verify", s.handleVerifyAuditIntegrity)
	s.mux.HandleFunc("GET /audit/export", s.handleExportAuditTrail)
	s.mux.HandleFunc("GET /contexts", s.handleGetActiveContexts)
}

type registerApproverRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Clearance   string `json:"clearance"`
	Contact     string `json:"contact"`
}

func (s *Server) handleRegisterApprover(w http.ResponseWriter, r *http.Request) {
	var req registerApproverRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	level, err := clearance.ParseLevel(req.Clearance)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	approver, err := clearance.NewApproverIdentity(req.ID, req.DisplayName, level, req.Contact, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.mc.RegisterApprover(approver); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnregisterApprover(w http.ResponseWriter, r *http.Request) {
	s.mc.UnregisterApprover(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

type executeRequest struct {
	ActionKind      string      `json:"actionKind"`
	ActionRequestID string      `json:"actionRequestId,omitempty"`
	Agent           agentDTO    `json:"agent"`
	Payload         interface{} `json:"payload"`
}

type agentDTO struct {
	ID        string `json:"id"`
	Clearance string `json:"clearance"`
}

type executeResponse struct {
	Success         bool        `json:"success,omitempty"`
	Output          interface{} `json:"output,omitempty"`
	ApprovalPending bool        `json:"approvalPending,omitempty"`
	ActionRequestID string      `json:"actionRequestId,omitempty"`
	ApprovalID      string      `json:"approvalId,omitempty"`
}

// handleExecute invokes a no-op executor over HTTP — a real deployment wires
// a domain-specific executor in-process; the HTTP surface exists for
// collaborators that only need the governance decision, not the side
// effect, expressed over the wire (e.g. a policy simulation client).
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	level, err := clearance.ParseLevel(req.Agent.Clearance)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	agent := clearance.AgentIdentity{ID: req.Agent.ID, Clearance: level}
	kind := clearance.ActionKind(req.ActionKind)

	noop := func(ctx context.Context, payload interface{}) (interface{}, error) { return payload, nil }

	var result *governor.ExecuteResult
	var pending *governor.PendingApprovalRef
	if req.ActionRequestID != "" {
		result, pending, err = s.mc.ExecuteResuming(r.Context(), req.ActionRequestID, kind, agent, req.Payload, noop)
	} else {
		result, pending, err = s.mc.Execute(r.Context(), kind, agent, req.Payload, noop)
	}
	if err != nil {
		writeGovernorError(w, err)
		return
	}
	if pending != nil {
		writeJSON(w, http.StatusAccepted, executeResponse{ApprovalPending: true, ActionRequestID: pending.ActionRequestID, ApprovalID: pending.ApprovalID})
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{Success: result.Result.Success, Output: result.Result.Output})
}

type decisionRequest struct {
	ApproverID string `json:"approverId"`
	Reason     string `json:"reason,omitempty"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ar, err := s.mc.ApproveAction(r.Context(), r.PathValue("id"), req.ApproverID, nil, req.Reason)
	if err != nil {
		writeGovernorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ar)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ar, err := s.mc.RejectAction(r.Context(), r.PathValue("id"), req.ApproverID, req.Reason, nil)
	if err != nil {
		writeGovernorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ar)
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	s.mc.EmergencyStop(req.Reason)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPendingApprovals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mc.GetPendingApprovals())
}

func (s *Server) handleVerifyAuditIntegrity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"chainValid": s.mc.VerifyAuditIntegrity(r.Context())})
}

func (s *Server) handleExportAuditTrail(w http.ResponseWriter, r *http.Request) {
	data, err := s.mc.ExportAuditTrail()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleGetActiveContexts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mc.GetActiveContexts())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeGovernorError(w http.ResponseWriter, err error) {
	gerr, ok := err.(*governor.Error)
	if !ok {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	status := http.StatusConflict
	switch gerr.Code {
	case governor.CodeNotFound:
		status = http.StatusNotFound
	case governor.CodeUnauthorized:
		status = http.StatusForbidden
	case governor.CodeClearanceViolation:
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]interface{}{"code": gerr.Code, "error": gerr.Message})
}
