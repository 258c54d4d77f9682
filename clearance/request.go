package clearance

import "time"

// ActionRequest is created once at entry to Mission Control and never
// mutates thereafter; every downstream component receives it by value or by
// read-only reference.
type ActionRequest struct {
	ID            string
	Kind          ActionKind
	AgentID       string
	CreatedAt     time.Time
	Payload       interface{}
	Signature     []byte // optional
	CorrelationID string // optional; links a retried execute() to its original request
}

// ActionResult is the outcome Mission Control records for an ActionRequest,
// whether the executor ran or the request was rejected before it could.
type ActionResult struct {
	Success       bool
	RequestID     string
	CompletedAt   time.Time
	Output        interface{} // optional
	ErrorMessage  string      // optional
	ExecutedBy    string      // optional: id of the executing party
}
