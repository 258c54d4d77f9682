package governor

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironclad-systems/governor/approval"
	"github.com/ironclad-systems/governor/audit"
	"github.com/ironclad-systems/governor/enforcement"
)

// GovernanceConfig is the full configuration surface for a Mission Control
// instance: §4.3's approval-workflow enumeration plus §6's governance
// enumeration, loaded in the teacher's three-layer priority order —
// defaults, then environment variables, then functional options applied
// last so callers always win.
type GovernanceConfig struct {
	// Enforcement / approval deadlines (§6, §4.3)
	L2ApprovalTimeoutMs int    `env:"GOVERNOR_L2_APPROVAL_TIMEOUT_MS"`
	RequiredApprovers   int    `env:"GOVERNOR_REQUIRED_APPROVERS"`
	AutoRejectOnTimeout bool   `env:"GOVERNOR_AUTO_REJECT_ON_TIMEOUT"`
	MaxApprovers        int    `env:"GOVERNOR_MAX_APPROVERS"`
	RequireUnanimous    bool   `env:"GOVERNOR_REQUIRE_UNANIMOUS"`
	EscalationTimeoutMs int    `env:"GOVERNOR_ESCALATION_TIMEOUT_MS"`
	NotifyChannels      []string
	RequireMFA          bool   `env:"GOVERNOR_REQUIRE_MFA"`

	// Audit trail (§6)
	AuditRetentionDays   int    `env:"GOVERNOR_AUDIT_RETENTION_DAYS"`
	HashAlgorithm        string `env:"GOVERNOR_HASH_ALGORITHM"`
	EnableImmutableAudit bool   `env:"GOVERNOR_ENABLE_IMMUTABLE_AUDIT"`

	// EmergencyOverrideKey is reserved for a future cryptographically-guarded
	// emergency-stop path; present but unenforced today.
	EmergencyOverrideKey string `env:"GOVERNOR_EMERGENCY_OVERRIDE_KEY"`

	ServiceName string `env:"GOVERNOR_SERVICE_NAME"`
}

// Option is a functional option applied after defaults and env loading.
type Option func(*GovernanceConfig)

func WithL2ApprovalTimeoutMs(ms int) Option {
	return func(c *GovernanceConfig) { c.L2ApprovalTimeoutMs = ms }
}

func WithRequiredApprovers(n int) Option {
	return func(c *GovernanceConfig) { c.RequiredApprovers = n }
}

func WithAutoRejectOnTimeout(v bool) Option {
	return func(c *GovernanceConfig) { c.AutoRejectOnTimeout = v }
}

func WithMaxApprovers(n int) Option {
	return func(c *GovernanceConfig) { c.MaxApprovers = n }
}

func WithRequireUnanimous(v bool) Option {
	return func(c *GovernanceConfig) { c.RequireUnanimous = v }
}

func WithEscalationTimeoutMs(ms int) Option {
	return func(c *GovernanceConfig) { c.EscalationTimeoutMs = ms }
}

func WithNotifyChannels(channels ...string) Option {
	return func(c *GovernanceConfig) { c.NotifyChannels = channels }
}

func WithRequireMFA(v bool) Option {
	return func(c *GovernanceConfig) { c.RequireMFA = v }
}

func WithAuditRetentionDays(days int) Option {
	return func(c *GovernanceConfig) { c.AuditRetentionDays = days }
}

func WithHashAlgorithm(algo string) Option {
	return func(c *GovernanceConfig) { c.HashAlgorithm = algo }
}

func WithEnableImmutableAudit(v bool) Option {
	return func(c *GovernanceConfig) { c.EnableImmutableAudit = v }
}

func WithEmergencyOverrideKey(key string) Option {
	return func(c *GovernanceConfig) { c.EmergencyOverrideKey = key }
}

func WithServiceName(name string) Option {
	return func(c *GovernanceConfig) { c.ServiceName = name }
}

// WithConfigFile loads YAML-shaped configuration from path, applied between
// the env layer and the remaining functional options, mirroring the
// teacher's own WithConfigFile option.
func WithConfigFile(path string) Option {
	return func(c *GovernanceConfig) {
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		var fileCfg GovernanceConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return
		}
		mergeNonZero(c, &fileCfg)
	}
}

func mergeNonZero(dst, src *GovernanceConfig) {
	if src.L2ApprovalTimeoutMs != 0 {
		dst.L2ApprovalTimeoutMs = src.L2ApprovalTimeoutMs
	}
	if src.RequiredApprovers != 0 {
		dst.RequiredApprovers = src.RequiredApprovers
	}
	if src.MaxApprovers != 0 {
		dst.MaxApprovers = src.MaxApprovers
	}
	if src.EscalationTimeoutMs != 0 {
		dst.EscalationTimeoutMs = src.EscalationTimeoutMs
	}
	if len(src.NotifyChannels) > 0 {
		dst.NotifyChannels = src.NotifyChannels
	}
	if src.AuditRetentionDays != 0 {
		dst.AuditRetentionDays = src.AuditRetentionDays
	}
	if src.HashAlgorithm != "" {
		dst.HashAlgorithm = src.HashAlgorithm
	}
	if src.EmergencyOverrideKey != "" {
		dst.EmergencyOverrideKey = src.EmergencyOverrideKey
	}
	if src.ServiceName != "" {
		dst.ServiceName = src.ServiceName
	}
}

// defaultConfig returns the spec's documented defaults (§6, §4.3).
func defaultConfig() GovernanceConfig {
	return GovernanceConfig{
		L2ApprovalTimeoutMs:  300_000,
		RequiredApprovers:    1,
		AutoRejectOnTimeout:  true,
		MaxApprovers:         3,
		RequireUnanimous:     false,
		EscalationTimeoutMs:  0, // resolved to 60% of L2ApprovalTimeoutMs below when left at zero
		RequireMFA:           true,
		AuditRetentionDays:   365,
		HashAlgorithm:        "SHA-256",
		EnableImmutableAudit: true,
		ServiceName:          "governor",
	}
}

// loadFromEnv overlays GOVERNOR_* environment variables onto cfg.
func loadFromEnv(cfg *GovernanceConfig) {
	if v, ok := envInt("GOVERNOR_L2_APPROVAL_TIMEOUT_MS"); ok {
		cfg.L2ApprovalTimeoutMs = v
	}
	if v, ok := envInt("GOVERNOR_REQUIRED_APPROVERS"); ok {
		cfg.RequiredApprovers = v
	}
	if v, ok := envBool("GOVERNOR_AUTO_REJECT_ON_TIMEOUT"); ok {
		cfg.AutoRejectOnTimeout = v
	}
	if v, ok := envInt("GOVERNOR_MAX_APPROVERS"); ok {
		cfg.MaxApprovers = v
	}
	if v, ok := envBool("GOVERNOR_REQUIRE_UNANIMOUS"); ok {
		cfg.RequireUnanimous = v
	}
	if v, ok := envInt("GOVERNOR_ESCALATION_TIMEOUT_MS"); ok {
		cfg.EscalationTimeoutMs = v
	}
	if v, ok := envBool("GOVERNOR_REQUIRE_MFA"); ok {
		cfg.RequireMFA = v
	}
	if v, ok := envInt("GOVERNOR_AUDIT_RETENTION_DAYS"); ok {
		cfg.AuditRetentionDays = v
	}
	if v := os.Getenv("GOVERNOR_HASH_ALGORITHM"); v != "" {
		cfg.HashAlgorithm = v
	}
	if v, ok := envBool("GOVERNOR_ENABLE_IMMUTABLE_AUDIT"); ok {
		cfg.EnableImmutableAudit = v
	}
	if v := os.Getenv("GOVERNOR_EMERGENCY_OVERRIDE_KEY"); v != "" {
		cfg.EmergencyOverrideKey = v
	}
	if v := os.Getenv("GOVERNOR_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("GOVERNOR_NOTIFY_CHANNELS"); v != "" {
		cfg.NotifyChannels = strings.Split(v, ",")
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// NewGovernanceConfig builds a config: defaults, then env vars, then
// functional options in order (WithConfigFile included, applied at its
// position in the option list). Validate is run before returning.
func NewGovernanceConfig(opts ...Option) (GovernanceConfig, error) {
	cfg := defaultConfig()
	loadFromEnv(&cfg)
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.EscalationTimeoutMs <= 0 {
		cfg.EscalationTimeoutMs = (cfg.L2ApprovalTimeoutMs * 60) / 100
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the invariants §9's open-question resolution #3 depends
// on: the escalation warning must fire strictly before the hard deadline.
func (c GovernanceConfig) Validate() error {
	if c.L2ApprovalTimeoutMs <= 0 {
		return fmt.Errorf("governor: l2ApprovalTimeoutMs must be positive")
	}
	if c.EscalationTimeoutMs >= c.L2ApprovalTimeoutMs {
		return fmt.Errorf("governor: escalationTimeoutMs (%d) must be less than l2ApprovalTimeoutMs (%d)", c.EscalationTimeoutMs, c.L2ApprovalTimeoutMs)
	}
	if c.RequiredApprovers < 1 {
		return fmt.Errorf("governor: requiredApprovers must be at least 1")
	}
	switch c.HashAlgorithm {
	case "SHA-256", "SHA-384", "SHA-512":
	default:
		return fmt.Errorf("governor: unrecognized hashAlgorithm %q", c.HashAlgorithm)
	}
	return nil
}

func (c GovernanceConfig) enforcementConfig() enforcement.Config {
	return enforcement.Config{
		L2ApprovalTimeoutMs: c.L2ApprovalTimeoutMs,
		AutoRejectOnTimeout: c.AutoRejectOnTimeout,
	}
}

func (c GovernanceConfig) approvalConfig() approval.Config {
	minApprovers := c.RequiredApprovers
	if c.MaxApprovers > 0 && minApprovers > c.MaxApprovers {
		minApprovers = c.MaxApprovers
	}
	return approval.Config{
		MinApprovers:        minApprovers,
		RequireUnanimous:    c.RequireUnanimous,
		EscalationTimeoutMs: c.EscalationTimeoutMs,
		NotifyChannels:      c.NotifyChannels,
	}
}

func (c GovernanceConfig) auditConfig() audit.Config {
	return audit.Config{
		HashAlgorithm:        audit.Algorithm(c.HashAlgorithm),
		RetentionDays:        c.AuditRetentionDays,
		EnableImmutableAudit: c.EnableImmutableAudit,
	}
}
