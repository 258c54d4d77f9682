package audit

import (
	"context"
	"encoding/json"
)

// ExportedEntry is the JSON shape of a single chain entry in an export, with
// timestamps serialized as ISO-8601 UTC per spec §6.
type ExportedEntry struct {
	ID              string            `json:"id"`
	Timestamp       string            `json:"timestamp"`
	Sequence        uint64            `json:"sequence"`
	ActionRequestID string            `json:"actionRequestId"`
	ActionKind      string            `json:"actionKind"`
	AgentID         string            `json:"agentId"`
	Success         bool              `json:"success"`
	Error           string            `json:"error,omitempty"`
	Approval        *ApprovalSnapshot `json:"approval,omitempty"`
	PreviousHash    string            `json:"previousHash"`
	EntryHash       string            `json:"entryHash"`
	ImmutableProof  string            `json:"immutableProof"`
}

// ExportedConfig is the config snapshot embedded in an export.
type ExportedConfig struct {
	HashAlgorithm        string `json:"hashAlgorithm"`
	RetentionDays        int    `json:"retentionDays"`
	EnableImmutableAudit bool   `json:"enableImmutableAudit"`
}

// Export is the compliance artifact: genesis hash, entry count, the config
// snapshot in force, every entry, and a chainValid flag computed at export
// time (spec §6's audit export format).
type Export struct {
	GenesisHash string          `json:"genesisHash"`
	EntryCount  int             `json:"entryCount"`
	Config      ExportedConfig  `json:"config"`
	Entries     []ExportedEntry `json:"entries"`
	ChainValid  bool            `json:"chainValid"`
}

// ExportJSON produces the structured export and its JSON-marshaled bytes.
func (t *Trail) ExportJSON() ([]byte, error) {
	t.mu.Lock()
	entries := make([]*Entry, len(t.entries))
	copy(entries, t.entries)
	genesis := t.genesisHash
	cfg := t.config
	t.mu.Unlock()

	out := Export{
		GenesisHash: genesis,
		EntryCount:  len(entries),
		Config: ExportedConfig{
			HashAlgorithm:        string(cfg.HashAlgorithm),
			RetentionDays:        cfg.RetentionDays,
			EnableImmutableAudit: cfg.EnableImmutableAudit,
		},
		ChainValid: t.VerifyChain(context.Background()),
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, ExportedEntry{
			ID:              e.ID,
			Timestamp:       formatTime(e.Timestamp),
			Sequence:        e.Sequence,
			ActionRequestID: e.ActionRequest.ID,
			ActionKind:      string(e.ActionRequest.Kind),
			AgentID:         e.Agent.ID,
			Success:         e.ActionResult.Success,
			Error:           e.ActionResult.ErrorMessage,
			Approval:        e.Approval,
			PreviousHash:    e.PreviousHash,
			EntryHash:       e.EntryHash,
			ImmutableProof:  e.ImmutableProof,
		})
	}

	data, err := json.Marshal(out)
	return data, err
}
