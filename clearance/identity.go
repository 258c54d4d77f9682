package clearance

import "fmt"

// AgentIdentity identifies the party requesting an action.
type AgentIdentity struct {
	ID          string
	DisplayName string
	Clearance   Level
	SessionID   string
	PublicKey   []byte // optional
}

// ApproverIdentity identifies a human operator authorized to decide L2
// approval requests. Construction always goes through NewApproverIdentity
// because the L2-only invariant must hold from the moment an approver
// exists, not just at registration time.
type ApproverIdentity struct {
	ID          string
	DisplayName string
	Clearance   Level
	Contact     string // optional contact address
	PublicKey   []byte // optional
}

// NewApproverIdentity constructs an ApproverIdentity, failing if clearance is
// not L2. This mirrors the registry's own guard (approval.Registry.Register
// re-checks it) so a caller who builds the value directly, bypassing the
// registry, cannot end up with an invalid approver either.
func NewApproverIdentity(id, displayName string, clearance Level, contact string, publicKey []byte) (ApproverIdentity, error) {
	if clearance != L2 {
		return ApproverIdentity{}, fmt.Errorf("clearance: approver %q must hold L2 clearance, got %s", id, clearance)
	}
	return ApproverIdentity{
		ID:          id,
		DisplayName: displayName,
		Clearance:   clearance,
		Contact:     contact,
		PublicKey:   publicKey,
	}, nil
}
