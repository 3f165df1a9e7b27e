// Package purchase implements the purchase authorization orchestrator.
//
// # Transaction Lifecycle
//
// Every purchase attempt gets a fresh transaction ID and moves through:
//
//	RECEIVED -> VALIDATING -> POLICY_PENDING -> APPROVED
//	                                         -> DENIED
//	                                         -> INVALID_REQUEST
//
// APPROVED, INVALID_REQUEST, and OVERRIDE_APPROVED are terminal. A
// policy-denied transaction is recorded in the denied ledger and may
// later resolve to OVERRIDE_APPROVED exactly once through the override
// path; a step-up denial is terminal and never override-eligible.
//
// # Collaborators
//
// The orchestrator consumes small interfaces defined in this package:
// PolicyEvaluator (external decision service, fail-closed), RiskGate
// (step-up threshold and ceremony), AuditSink (best-effort event trail),
// and DeniedLedger (atomic-take record of override-eligible denials).
// Production wiring lives in internal/gateway and cmd.
//
// # Concurrency
//
// Each inbound call runs on its own goroutine. The denied ledger is the
// only shared mutable state; its Take operation removes-and-returns
// under one lock so concurrent overrides on the same transaction resolve
// to exactly one winner.
package purchase
