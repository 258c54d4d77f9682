// Package governor implements Mission Control, the orchestrator that ties
// the clearance model, the enforcement engine, the approval workflow, and
// the audit trail into a single governed-action pipeline: execute a request
// through enforcement, run the caller-supplied executor under circuit
// breaker protection, append an audit entry, and fan out events to any
// registered observer.
package governor
