package clearance

import "fmt"

// ActionKind is a member of the closed enumeration of actions the kernel
// knows how to govern. Each kind is bound at build time to a required
// clearance in actionClearance below. Nothing checks at build or init time
// that every kind has a binding: a kind missing from the map makes
// RequiredClearance report false and MustRequiredClearance panic.
type ActionKind string

const (
	// L0 actions: read-only, no side effects on the protected resource plane.
	ActionReadPublic     ActionKind = "read-public"
	ActionQueryStatus    ActionKind = "query-status"
	ActionListResources  ActionKind = "list-resources"

	// L1 actions: operational changes with bounded, reversible blast radius.
	ActionModifyConfig   ActionKind = "modify-config"
	ActionDeployService  ActionKind = "deploy-service"
	ActionManageSecrets  ActionKind = "manage-secrets"
	ActionExecuteCommand ActionKind = "execute-command"

	// L2 actions: destructive, irreversible, or privilege-escalating.
	ActionDestroyResource    ActionKind = "destroy-resource"
	ActionModifyProduction   ActionKind = "modify-production"
	ActionTransferFunds      ActionKind = "transfer-funds"
	ActionDeleteAuditLog     ActionKind = "delete-audit-log"
	ActionEscalatePrivileges ActionKind = "escalate-privileges"
	ActionExecuteArbitrary   ActionKind = "execute-arbitrary"
)

// actionClearance is the exhaustive, build-time action-kind -> clearance
// map. It is the single source of truth for RequiredClearance; there is no
// fallback default, by design, so an unbound kind fails loudly.
var actionClearance = map[ActionKind]Level{
	ActionReadPublic:    L0,
	ActionQueryStatus:   L0,
	ActionListResources: L0,

	ActionModifyConfig:   L1,
	ActionDeployService:  L1,
	ActionManageSecrets:  L1,
	ActionExecuteCommand: L1,

	ActionDestroyResource:    L2,
	ActionModifyProduction:   L2,
	ActionTransferFunds:      L2,
	ActionDeleteAuditLog:     L2,
	ActionEscalatePrivileges: L2,
	ActionExecuteArbitrary:   L2,
}

// RequiredClearance looks up the clearance level bound to an action kind. A
// kind absent from the map is itself a configuration bug — the second return
// value is false — rather than a silent L0 default.
func RequiredClearance(kind ActionKind) (Level, bool) {
	level, ok := actionClearance[kind]
	return level, ok
}

// MustRequiredClearance panics if kind has no binding. Callers that have
// already validated the kind (e.g. against a known enumeration) can use this
// to avoid threading a second return value through.
func MustRequiredClearance(kind ActionKind) Level {
	level, ok := RequiredClearance(kind)
	if !ok {
		panic(fmt.Sprintf("clearance: action kind %q has no clearance binding", kind))
	}
	return level
}

// RegisterActionKind binds a new action kind to a clearance level at
// startup, for hosts that extend the built-in enumeration. It must be called
// before any preExecute call references the kind; it is not safe for
// concurrent use with lookups.
func RegisterActionKind(kind ActionKind, level Level) {
	actionClearance[kind] = level
}

// IsL2 reports whether kind requires human approval under the default
// partition. Used by enforcement.Engine to decide whether to create an
// approval request rather than comparing ranks directly everywhere.
func IsL2(kind ActionKind) bool {
	level, ok := actionClearance[kind]
	return ok && level == L2
}
