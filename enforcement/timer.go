package enforcement

import (
	"sync"
	"time"

	"github.com/ironclad-systems/governor/internal/clock"
)

// expiryScheduler owns the one-shot absolute-deadline timer for each pending
// L2 approval request. It is a distinct clock consumer from the approval
// workflow's own escalation timer (spec's documented separation between the
// escalation warning and the hard expiry deadline), sharing the same
// injectable clock so both fire deterministically under a virtual clock in
// tests.
type expiryScheduler struct {
	mu     sync.Mutex
	clock  clock.Clock
	timers map[string]clock.Timer
}

func newExpiryScheduler(cl clock.Clock) *expiryScheduler {
	return &expiryScheduler{clock: cl, timers: make(map[string]clock.Timer)}
}

// schedule arranges for fn to run once expiresAt is reached. Delivery is
// at-most-once: fn is expected to check (and only then mutate) the pending
// approval's state, so a handler error never retries the state transition.
func (s *expiryScheduler) schedule(approvalID string, expiresAt time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := expiresAt.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	s.timers[approvalID] = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, approvalID)
		s.mu.Unlock()
		fn()
	})
}

func (s *expiryScheduler) cancel(approvalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[approvalID]; ok {
		t.Stop()
		delete(s.timers, approvalID)
	}
}
