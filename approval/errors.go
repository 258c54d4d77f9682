package approval

import "fmt"

// Error is the tagged error type surfaced by the approval workflow (spec
// §7). Code is one of the constants below; no audit entry is attached here
// because the workflow has no audit dependency — Mission Control attaches
// one where the spec requires it.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("approval: %s: %s", e.Code, e.Message)
}

const (
	CodeNotFound                    = "NotFound"
	CodeAlreadyDecided              = "AlreadyDecided"
	CodeUnauthorized                = "Unauthorized"
	CodeUnregistered                = "Unregistered"
	CodeDuplicateDecision           = "DuplicateDecision"
	CodeInvalidTransition           = "InvalidTransition"
	CodeNoApproversRegistered       = "NoApproversRegistered"
	CodeInsufficientApproverClearance = "InsufficientApproverClearance"
)

func newError(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
