// Package clearance defines the governance kernel's foundational types: the
// clearance-level ordering, the fixed action-kind-to-clearance map, and the
// identity and request/result shapes every other kernel package builds on.
package clearance

import "fmt"

// Level is a totally ordered clearance rung. Comparison is by Rank, never by
// the zero value or string equality, so adding a rung between existing ones
// only requires changing the iota sequence.
type Level int

const (
	// L0 is the baseline rung: read-only, non-privileged actions.
	L0 Level = iota
	// L1 covers operational actions with limited blast radius.
	L1
	// L2 is the highest rung: destructive or irreversible actions that
	// always require human approval.
	L2
)

// String renders the level as its canonical name.
func (l Level) String() string {
	switch l {
	case L0:
		return "L0"
	case L1:
		return "L1"
	case L2:
		return "L2"
	default:
		return fmt.Sprintf("L?(%d)", int(l))
	}
}

// Rank returns the level's position in the total order, used for clearance
// arithmetic: HasSufficient(agent, required) = agent.Rank() >= required.Rank().
func (l Level) Rank() int {
	return int(l)
}

// HasSufficient reports whether actual clearance satisfies the required
// clearance: rank(actual) >= rank(required).
func HasSufficient(actual, required Level) bool {
	return actual.Rank() >= required.Rank()
}

// ParseLevel parses a canonical level name ("L0", "L1", "L2"). It is used by
// config loading (env vars, YAML) where levels arrive as strings.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "L0":
		return L0, nil
	case "L1":
		return L1, nil
	case "L2":
		return L2, nil
	default:
		return 0, fmt.Errorf("clearance: unrecognized level %q", s)
	}
}
