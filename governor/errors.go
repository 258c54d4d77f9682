package governor

import (
	"fmt"

	"github.com/ironclad-systems/governor/audit"
)

// Code is a tagged error code from the §7 error taxonomy.
type Code string

const (
	CodeClearanceViolation            Code = "ClearanceViolation"
	CodeEnforcementRejected           Code = "EnforcementRejected"
	CodeAlreadyExecuted               Code = "AlreadyExecuted"
	CodeNotFound                      Code = "NotFound"
	CodeAlreadyDecided                Code = "AlreadyDecided"
	CodeUnauthorized                  Code = "Unauthorized"
	CodeUnregistered                  Code = "Unregistered"
	CodeDuplicateDecision             Code = "DuplicateDecision"
	CodeInvalidTransition             Code = "InvalidTransition"
	CodeExecutionFailed               Code = "ExecutionFailed"
	CodeNoApproversRegistered         Code = "NoApproversRegistered"
	CodeInsufficientApproverClearance Code = "InsufficientApproverClearance"
)

// Error is the governance kernel's tagged error: a code, a message, and an
// optional embedded audit entry (present whenever one was appended before
// the error was raised, per §7's propagation policy).
type Error struct {
	Code    Code
	Message string
	Entry   *audit.Entry // nil when the rejection predates any audit append
}

func (e *Error) Error() string {
	return fmt.Sprintf("governor: %s: %s", e.Code, e.Message)
}

func newError(code Code, entry *audit.Entry, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Entry: entry}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
