package approval

import (
	"sync"

	"github.com/ironclad-systems/governor/clearance"
)

// Registry holds the pool of approvers eligible to decide on L2 approval
// requests. Only L2-cleared identities may be registered (spec §4.3); a
// lower-clearance identity is rejected with InsufficientApproverClearance.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]clearance.ApproverIdentity
}

// NewRegistry returns an empty approver registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]clearance.ApproverIdentity)}
}

// Register adds an approver. Re-registering the same id replaces the prior
// entry without disturbing its position in selection order.
func (r *Registry) Register(approver clearance.ApproverIdentity) error {
	if approver.Clearance != clearance.L2 {
		return newError(CodeInsufficientApproverClearance, "approver %q holds %s, L2 required", approver.ID, approver.Clearance)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[approver.ID]; !exists {
		r.order = append(r.order, approver.ID)
	}
	r.byID[approver.ID] = approver
	return nil
}

// Unregister removes an approver from the pool.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; !exists {
		return
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the approver identity for id.
func (r *Registry) Lookup(id string) (clearance.ApproverIdentity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// Size returns the number of registered approvers.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Select returns up to n approver ids in registration order, for request
// assignment. It never returns more than are registered.
func (r *Registry) Select(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > len(r.order) {
		n = len(r.order)
	}
	out := make([]string, n)
	copy(out, r.order[:n])
	return out
}
