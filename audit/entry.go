package audit

import (
	"encoding/json"
	"time"

	"github.com/ironclad-systems/governor/clearance"
)

// timeLayout is ISO-8601 UTC with millisecond precision, the wire format the
// hash-chain canonicalization and the JSON export both use.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ApprovalSnapshot is the immutable slice of an approval request's identity
// an audit entry carries — just enough to recover, from the entry alone,
// which approval governed an L2 action and what its terminal state was.
// Audit never imports the approval package itself so the hash-chain wire
// format cannot drift with changes to the live workflow's internal shape.
type ApprovalSnapshot struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	ApproverID string    `json:"approverId,omitempty"`
	DecidedAt  time.Time `json:"decidedAt,omitempty"`
}

// Entry is a single, immutable link in the hash chain. Once appended by
// Trail.Record it is only ever read.
type Entry struct {
	ID              string
	Timestamp       time.Time
	Sequence        uint64
	ActionRequest   clearance.ActionRequest
	ActionResult    clearance.ActionResult
	Agent           clearance.AgentIdentity
	Approval        *ApprovalSnapshot // nil unless the action required L2 approval
	PreviousHash    string
	EntryHash       string
	ImmutableProof  string
}

// entryHashPayload is the canonical, field-ordered representation hashed to
// produce EntryHash. Field order is part of the wire contract for audit
// portability (spec §4.2) — do not reorder these fields, and do not let
// encoding/json's map-key sorting stand in for explicit ordering anywhere
// else in this package.
type entryHashPayload struct {
	ID              string `json:"id"`
	Timestamp       string `json:"timestamp"`
	Sequence        uint64 `json:"sequence"`
	ActionRequestID string `json:"actionRequestId"`
	Success         bool   `json:"success"`
	AgentID         string `json:"agentId"`
	PreviousHash    string `json:"previousHash"`
}

// immutableProofPayload is the canonical representation hashed to produce
// ImmutableProof.
type immutableProofPayload struct {
	EntryHash    string `json:"entryHash"`
	PreviousHash string `json:"previousHash"`
	Sequence     uint64 `json:"sequence"`
	Timestamp    string `json:"timestamp"`
}

// computeEntryHash returns H(canonical-bytes-of-entry-sans-hash-and-proof).
func computeEntryHash(algo Algorithm, e *Entry) string {
	payload := entryHashPayload{
		ID:              e.ID,
		Timestamp:       formatTime(e.Timestamp),
		Sequence:        e.Sequence,
		ActionRequestID: e.ActionRequest.ID,
		Success:         e.ActionResult.Success,
		AgentID:         e.Agent.ID,
		PreviousHash:    e.PreviousHash,
	}
	// json.Marshal on a struct emits fields in declaration order, which is
	// deterministic across runs and across hosts.
	data, _ := json.Marshal(payload)
	return digest(algo, data)
}

// computeImmutableProof returns H(entryHash || previousHash || sequence || timestamp).
func computeImmutableProof(algo Algorithm, e *Entry) string {
	payload := immutableProofPayload{
		EntryHash:    e.EntryHash,
		PreviousHash: e.PreviousHash,
		Sequence:     e.Sequence,
		Timestamp:    formatTime(e.Timestamp),
	}
	data, _ := json.Marshal(payload)
	return digest(algo, data)
}

// clone returns a deep-enough copy of e suitable for handing to callers who
// must not be able to mutate the trail's internal state through the
// returned value.
func (e *Entry) clone() *Entry {
	cp := *e
	if e.Approval != nil {
		a := *e.Approval
		cp.Approval = &a
	}
	return &cp
}
