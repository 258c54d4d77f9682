package governor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironclad-systems/governor/clearance"
)

func newMissionControl(t *testing.T) *MissionControl {
	t.Helper()
	cfg, err := NewGovernanceConfig()
	require.NoError(t, err)
	mc, err := New(cfg, nil)
	require.NoError(t, err)
	return mc
}

func echoExecutor(output interface{}) Executor {
	return func(ctx context.Context, payload interface{}) (interface{}, error) {
		return output, nil
	}
}

func TestS1L0PassThrough(t *testing.T) {
	mc := newMissionControl(t)
	agent := clearance.AgentIdentity{ID: "a", Clearance: clearance.L0}

	result, pending, err := mc.Execute(context.Background(), clearance.ActionQueryStatus, agent, map[string]interface{}{}, echoExecutor(map[string]interface{}{"status": "ok"}))
	require.NoError(t, err)
	require.Nil(t, pending)
	require.NotNil(t, result)

	assert.Equal(t, uint64(1), result.Entry.Sequence)
	assert.True(t, result.Entry.ActionResult.Success)
	assert.Nil(t, result.Entry.Approval)
	assert.True(t, mc.VerifyAuditIntegrity(context.Background()))
}

func TestS2L1Denied(t *testing.T) {
	mc := newMissionControl(t)
	agent := clearance.AgentIdentity{ID: "a", Clearance: clearance.L0}

	var gotEvent clearance.Event
	mc.OnEvent(clearance.EventClearanceViolation, func(e clearance.Event) { gotEvent = e })

	_, _, err := mc.Execute(context.Background(), clearance.ActionModifyConfig, agent, nil, echoExecutor(nil))
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeClearanceViolation))

	gerr := err.(*Error)
	require.NotNil(t, gerr.Entry)
	assert.False(t, gerr.Entry.ActionResult.Success)
	assert.Contains(t, gerr.Entry.ActionResult.ErrorMessage, "Insufficient clearance")
	assert.Equal(t, clearance.SeverityCritical, gotEvent.Severity)
}

func TestS3L2Approved(t *testing.T) {
	mc := newMissionControl(t)
	approver, err := clearance.NewApproverIdentity("ap", "ap", clearance.L2, "", nil)
	require.NoError(t, err)
	require.NoError(t, mc.RegisterApprover(approver))

	agent := clearance.AgentIdentity{ID: "b", Clearance: clearance.L2}
	payload := map[string]interface{}{"resourceId": "r-1"}

	_, pending, err := mc.Execute(context.Background(), clearance.ActionDestroyResource, agent, payload, echoExecutor(nil))
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.NotEmpty(t, pending.ApprovalID)

	ar, err := mc.ApproveAction(context.Background(), pending.ApprovalID, "ap", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "approved", string(ar.State))

	result, pending2, err := mc.ExecuteResuming(context.Background(), pending.ActionRequestID, clearance.ActionDestroyResource, agent, payload, echoExecutor("destroyed"))
	require.NoError(t, err)
	require.Nil(t, pending2)
	require.NotNil(t, result)
	assert.True(t, result.Entry.ActionResult.Success)
	require.NotNil(t, result.Entry.Approval)
	assert.Equal(t, "approved", result.Entry.Approval.State)
}

func TestS4L2Rejected(t *testing.T) {
	mc := newMissionControl(t)
	approver, err := clearance.NewApproverIdentity("ap", "ap", clearance.L2, "", nil)
	require.NoError(t, err)
	require.NoError(t, mc.RegisterApprover(approver))

	agent := clearance.AgentIdentity{ID: "b", Clearance: clearance.L2}
	payload := map[string]interface{}{"resourceId": "r-1"}

	_, pending, err := mc.Execute(context.Background(), clearance.ActionDestroyResource, agent, payload, echoExecutor(nil))
	require.NoError(t, err)
	require.NotNil(t, pending)

	_, err = mc.RejectAction(context.Background(), pending.ApprovalID, "ap", "risky", nil)
	require.NoError(t, err)

	_, _, err = mc.ExecuteResuming(context.Background(), pending.ActionRequestID, clearance.ActionDestroyResource, agent, payload, echoExecutor(nil))
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeEnforcementRejected))
	assert.Contains(t, err.Error(), "risky")
}

func TestS5EmergencyStop(t *testing.T) {
	mc := newMissionControl(t)
	approver, err := clearance.NewApproverIdentity("ap", "ap", clearance.L2, "", nil)
	require.NoError(t, err)
	require.NoError(t, mc.RegisterApprover(approver))

	agent := clearance.AgentIdentity{ID: "b", Clearance: clearance.L2}

	var gotEvent clearance.Event
	mc.OnEvent(clearance.EventActionRejected, func(e clearance.Event) { gotEvent = e })

	_, p1, err := mc.Execute(context.Background(), clearance.ActionDestroyResource, agent, map[string]interface{}{"resourceId": "r-1"}, echoExecutor(nil))
	require.NoError(t, err)
	_, p2, err := mc.Execute(context.Background(), clearance.ActionTransferFunds, agent, map[string]interface{}{"amount": 100}, echoExecutor(nil))
	require.NoError(t, err)
	require.NotNil(t, p1)
	require.NotNil(t, p2)

	mc.EmergencyStop("incident")

	assert.Empty(t, mc.GetPendingApprovals())
	assert.Equal(t, clearance.SeverityCritical, gotEvent.Severity)
	assert.Equal(t, 2, gotEvent.Fields["revokedCount"])
}

func TestAlreadyExecutedOnRetry(t *testing.T) {
	mc := newMissionControl(t)
	agent := clearance.AgentIdentity{ID: "a", Clearance: clearance.L1}

	result, _, err := mc.Execute(context.Background(), clearance.ActionModifyConfig, agent, nil, echoExecutor(nil))
	require.NoError(t, err)
	require.NotNil(t, result)

	_, _, err = mc.ExecuteResuming(context.Background(), result.Entry.ActionRequest.ID, clearance.ActionModifyConfig, agent, nil, echoExecutor(nil))
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeAlreadyExecuted))
}
