package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ironclad-systems/governor/clearance"
	"github.com/ironclad-systems/governor/core"
	"github.com/ironclad-systems/governor/telemetry"
)

// Config configures a Trail's hashing and retention behavior.
type Config struct {
	// HashAlgorithm selects SHA-256 (default), SHA-384, or SHA-512.
	HashAlgorithm Algorithm
	// RetentionDays is advisory; a persistence collaborator is responsible
	// for truncation/rollover (spec §6). It is folded into the genesis
	// hash so it is part of the trail's tamper-evident identity.
	RetentionDays int
	// EnableImmutableAudit is carried into the export's config snapshot.
	// Record does not check the chain at append time whichever way it is
	// set; tamper detection runs only in VerifyChain.
	EnableImmutableAudit bool
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		HashAlgorithm:        SHA256,
		RetentionDays:        365,
		EnableImmutableAudit: true,
	}
}

// Trail is the append-only, hash-chained audit log (C2). All methods are
// safe for concurrent use; appends are additionally serialized so sequence
// numbers are strictly monotonic with no gaps.
type Trail struct {
	mu sync.Mutex

	config      Config
	genesisHash string
	entries     []*Entry
	byID        map[string]*Entry
	nextSeq     uint64

	logger core.Logger
	events clearance.EventSink
}

// New constructs a Trail, computing its genesis hash once from the
// configuration. The genesis hash is the previousHash for entry 1 and the
// anchor LatestAnchor returns on an empty trail.
func New(cfg Config, logger core.Logger, events clearance.EventSink) *Trail {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if events == nil {
		events = clearance.NoOpEventSink{}
	}
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = SHA256
	}

	t := &Trail{
		config: cfg,
		byID:   make(map[string]*Entry),
		logger: logger,
		events: events,
	}
	t.genesisHash = t.computeGenesisHash()
	return t
}

func (t *Trail) computeGenesisHash() string {
	payload := struct {
		HashAlgorithm string `json:"hashAlgorithm"`
		RetentionDays int    `json:"retentionDays"`
		CreatedAt     string `json:"createdAt"`
	}{
		HashAlgorithm: string(t.config.HashAlgorithm),
		RetentionDays: t.config.RetentionDays,
		CreatedAt:     formatTime(time.Now()),
	}
	return digest(t.config.HashAlgorithm, mustJSON(payload))
}

// Record allocates the next sequence number, snapshots the previous hash,
// computes EntryHash and ImmutableProof, appends the entry, and returns an
// immutable copy.
func (t *Trail) Record(ctx context.Context, req clearance.ActionRequest, res clearance.ActionResult, agent clearance.AgentIdentity, approval *ApprovalSnapshot) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextSeq++
	prev := t.genesisHash
	if n := len(t.entries); n > 0 {
		prev = t.entries[n-1].EntryHash
	}

	e := &Entry{
		ID:            newEntryID(t.nextSeq),
		Timestamp:     time.Now(),
		Sequence:      t.nextSeq,
		ActionRequest: req,
		ActionResult:  res,
		Agent:         agent,
		Approval:      approval,
		PreviousHash:  prev,
	}
	e.EntryHash = computeEntryHash(t.config.HashAlgorithm, e)
	e.ImmutableProof = computeImmutableProof(t.config.HashAlgorithm, e)

	t.entries = append(t.entries, e)
	t.byID[e.ID] = e

	t.logger.Info("audit entry recorded", map[string]interface{}{
		"operation":    "audit.record",
		"sequence":     e.Sequence,
		"action_kind":  string(req.Kind),
		"success":      res.Success,
	})
	telemetry.AddSpanEvent(ctx, "audit.entry_recorded",
		attribute.String("governor.action.kind", string(req.Kind)),
		attribute.Int64("audit.sequence", int64(e.Sequence)),
	)
	telemetry.Counter("audit.entries", "action_kind", string(req.Kind), "success", boolLabel(res.Success))

	return e.clone()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// newEntryID mints a sequence-derived identifier; stable and collision-free
// within a single Trail instance without needing a UUID import for the
// hot-path append.
func newEntryID(seq uint64) string {
	return "audit-" + itoa(seq)
}

// VerifyChain walks every entry, checking previous-hash linkage and
// recomputing EntryHash/ImmutableProof. On the first mismatch it emits
// audit-tamper-detected at critical severity with the offending reason code
// and returns false without checking later entries — the chain as a whole
// is compromised from that point, so one emission suffices.
func (t *Trail) VerifyChain(ctx context.Context) bool {
	start := time.Now()
	defer func() { telemetry.Duration("audit.verify_chain.duration_ms", start) }()

	t.mu.Lock()
	entries := make([]*Entry, len(t.entries))
	copy(entries, t.entries)
	genesis := t.genesisHash
	algo := t.config.HashAlgorithm
	t.mu.Unlock()

	prev := genesis
	for _, e := range entries {
		if e.PreviousHash != prev {
			t.emitTamper(ctx, "PREVIOUS_HASH_MISMATCH", e)
			return false
		}
		if computeEntryHash(algo, e) != e.EntryHash {
			t.emitTamper(ctx, "ENTRY_HASH_MISMATCH", e)
			return false
		}
		if computeImmutableProof(algo, e) != e.ImmutableProof {
			t.emitTamper(ctx, "PROOF_MISMATCH", e)
			return false
		}
		prev = e.EntryHash
	}
	telemetry.AddSpanEvent(ctx, "audit.chain_verified", attribute.Int("audit.chain_length", len(entries)))
	telemetry.Gauge("audit.chain_length", float64(len(entries)))
	return true
}

func (t *Trail) emitTamper(ctx context.Context, reason string, e *Entry) {
	t.logger.Error("audit chain tamper detected", map[string]interface{}{
		"operation": "audit.verifyChain",
		"reason":    reason,
		"entry_id":  e.ID,
		"sequence":  e.Sequence,
	})
	t.events.Emit(clearance.EventAuditTamperDetected, clearance.SeverityCritical, map[string]interface{}{
		"reason":   reason,
		"entryId":  e.ID,
		"sequence": e.Sequence,
	})
	telemetry.RecordSpanError(ctx, fmt.Errorf("audit chain tamper detected: %s on entry %s", reason, e.ID))
	telemetry.Counter("audit.tamper_detected", "reason", reason)
}

// Get returns a copy of the entry with the given id, or nil if absent.
func (t *Trail) Get(id string) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	if !ok {
		return nil
	}
	return e.clone()
}

// All returns copies of every entry in append order.
func (t *Trail) All() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.clone()
	}
	return out
}

// ByAction returns copies of every entry whose action request has the given kind.
func (t *Trail) ByAction(kind clearance.ActionKind) []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Entry
	for _, e := range t.entries {
		if e.ActionRequest.Kind == kind {
			out = append(out, e.clone())
		}
	}
	return out
}

// ByAgent returns copies of every entry raised by the given agent id.
func (t *Trail) ByAgent(agentID string) []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Entry
	for _, e := range t.entries {
		if e.Agent.ID == agentID {
			out = append(out, e.clone())
		}
	}
	return out
}

// ByTimeRange returns copies of every entry with start <= Timestamp <= end.
func (t *Trail) ByTimeRange(start, end time.Time) []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Entry
	for _, e := range t.entries {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			out = append(out, e.clone())
		}
	}
	return out
}

// LatestAnchor returns the last entry's EntryHash, or the genesis hash on an
// empty trail, for external timestamping collaborators.
func (t *Trail) LatestAnchor() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		return t.genesisHash
	}
	return t.entries[len(t.entries)-1].EntryHash
}

// GenesisHash returns the trail's genesis hash.
func (t *Trail) GenesisHash() string {
	return t.genesisHash
}

// Len returns the number of entries currently held.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
