// ABOUTME: Core data types for the purchase authorization flow
// ABOUTME: Defines Request, Decision, Transaction states, and collaborator interfaces

package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Transaction statuses. A transaction moves RECEIVED -> VALIDATING ->
// POLICY_PENDING and resolves to one of the terminal statuses; DENIED
// may later resolve to OVERRIDE_APPROVED through the override path.
const (
	StatusReceived         = "RECEIVED"
	StatusValidating       = "VALIDATING"
	StatusPolicyPending    = "POLICY_PENDING"
	StatusApproved         = "APPROVED"
	StatusDenied           = "DENIED"
	StatusInvalidRequest   = "INVALID_REQUEST"
	StatusOverrideApproved = "OVERRIDE_APPROVED"
	StatusNotFound         = "NOT_FOUND"
)

// Currencies accepted for agent purchases.
var validCurrencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
}

// Override errors surfaced to the transport layer.
var (
	// ErrOverrideNotPermitted means the actor is authenticated but lacks
	// override permission for the targeted transaction.
	ErrOverrideNotPermitted = errors.New("not permitted to override transactions")
	// ErrInvalidOverride means the override request itself is malformed.
	ErrInvalidOverride = errors.New("invalid override request")
)

// Request is an agent purchase request. Amount must be positive and
// merchant, currency, product type, and product ID must be non-blank.
type Request struct {
	AgentID     string  `json:"agentId,omitempty"`
	OwnerID     string  `json:"ownerId,omitempty"`
	Amount      float64 `json:"amount"`
	Merchant    string  `json:"merchant"`    // e.g. "openai_api", "udemy", "envato_market"
	ProductType string  `json:"productType"` // "course", "template", "api_credits", "subscription"
	ProductID   string  `json:"productId"`
	Currency    string  `json:"currency"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"` // "education", "design", "api", "tools"
	LicenseType string  `json:"licenseType,omitempty"`
	Quantity    int     `json:"quantity,omitempty"`
}

// Validate checks the request shape. It has no side effects, so
// validating the same request twice yields the same result.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("purchase request cannot be nil")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("purchase amount must be greater than zero")
	}
	if strings.TrimSpace(r.Merchant) == "" {
		return fmt.Errorf("merchant information is required")
	}
	if strings.TrimSpace(r.Currency) == "" {
		return fmt.Errorf("currency information is required")
	}
	if !validCurrencies[r.Currency] {
		return fmt.Errorf("currency must be USD, EUR, or GBP")
	}
	if strings.TrimSpace(r.ProductType) == "" {
		return fmt.Errorf("product type is required for agent purchases")
	}
	if strings.TrimSpace(r.ProductID) == "" {
		return fmt.Errorf("product ID is required for agent purchases")
	}
	return nil
}

// OverrideRequest is a human owner's request to approve a previously
// denied transaction.
type OverrideRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// Validate checks that both fields are present.
func (o *OverrideRequest) Validate() error {
	if o == nil {
		return fmt.Errorf("override request cannot be nil")
	}
	if strings.TrimSpace(o.UserID) == "" {
		return fmt.Errorf("override user ID is required")
	}
	if strings.TrimSpace(o.Reason) == "" {
		return fmt.Errorf("override reason is required")
	}
	return nil
}

// Decision is the result of one policy evaluation: allowed or not, with
// an ordered list of human-readable explanation strings. Immutable once
// produced.
type Decision struct {
	Allowed     bool     `json:"allowed"`
	Explanation []string `json:"explanation"`
}

// Response is the outcome of a purchase or override call.
type Response struct {
	TransactionID string   `json:"transactionId"`
	Status        string   `json:"status"`
	Message       string   `json:"message"`
	Explanation   []string `json:"explanation,omitempty"`
}

// PolicyEvaluator asks the external decision service whether a purchase
// is allowed. Implementations convert their own failures into a deny
// decision; evaluation never errors and never defaults to allow.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, req *Request, actorID string) Decision
}

// RiskGate decides whether step-up authentication is required and
// adjudicates it.
type RiskGate interface {
	// StepUpRequired is a pure function of the request attributes.
	StepUpRequired(req *Request) bool
	// PerformStepUp returns false, never an error, when the actor cannot
	// complete strong authentication.
	PerformStepUp(ctx context.Context, actorID string) bool
}

// AuditSink records purchase lifecycle events. Implementations are
// best-effort: a failed write is logged, never propagated.
type AuditSink interface {
	LogEvent(ctx context.Context, transactionID, eventType string, details any)
}

// DeniedLedger records denied, override-eligible transactions. Take must
// be atomic with respect to concurrent calls on the same ID: exactly one
// caller observes the entry.
type DeniedLedger interface {
	Put(transactionID string, req *Request)
	Take(transactionID string) (*Request, bool)
	Has(transactionID string) bool
}
