// ABOUTME: Store interfaces and data types for agentpay-gateway persistence
// ABOUTME: Defines AgentCredential, AuditEvent, Authenticator and their store contracts

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateAgent is returned when trying to create an agent that already exists
var ErrDuplicateAgent = errors.New("agent already exists")

// AgentCredential holds the stored identity of a purchasing agent.
// The API key itself is never stored; only its peppered HMAC-SHA256 hex hash.
// Credentials are never deleted; deactivation flips Active to false.
type AgentCredential struct {
	AgentID             string
	OwnerID             string
	APIKeyHash          string
	AgentType           string // "openai-gpt4", "custom-bot", etc.
	Active              bool
	CreatedAt           time.Time
	LastUsedAt          *time.Time
	DailySpendLimit     *float64 // nil = unlimited
	MonthlySpendLimit   *float64
	PerTransactionLimit *float64
	Capabilities        []string
}

// CredentialStore defines persistence operations for agent credentials.
type CredentialStore interface {
	// FindActiveByAPIKeyHash returns the active credential matching the
	// given API key hash, or ErrNotFound.
	FindActiveByAPIKeyHash(ctx context.Context, hash string) (*AgentCredential, error)
	GetAgent(ctx context.Context, agentID string) (*AgentCredential, error)
	SaveAgent(ctx context.Context, cred *AgentCredential) error
	ListAgents(ctx context.Context) ([]*AgentCredential, error)
	// TouchLastUsed records a successful authentication for the agent.
	TouchLastUsed(ctx context.Context, agentID string, at time.Time) error
}

// AuditEvent is a single entry in the purchase audit trail.
type AuditEvent struct {
	ID            string // UUID v4
	TransactionID string
	EventType     string // e.g. "PURCHASE_APPROVED"
	Details       string // JSON payload describing the event
	Timestamp     time.Time
}

// AuditStore defines persistence operations for the audit trail.
type AuditStore interface {
	AppendAuditEvent(ctx context.Context, e *AuditEvent) error
	ListAuditEvents(ctx context.Context, transactionID string) ([]*AuditEvent, error)
}

// Authenticator is a registered WebAuthn credential for a step-up actor.
type Authenticator struct {
	ID              string // UUID v4
	ActorID         string
	CredentialID    []byte
	PublicKey       []byte
	AttestationType string
	Transports      string // JSON array of transport hints
	SignCount       uint32
	CreatedAt       time.Time
}

// AuthenticatorStore defines persistence operations for step-up authenticators.
type AuthenticatorStore interface {
	SaveAuthenticator(ctx context.Context, a *Authenticator) error
	ListAuthenticators(ctx context.Context, actorID string) ([]*Authenticator, error)
	UpdateSignCount(ctx context.Context, id string, signCount uint32) error
	HasAuthenticator(ctx context.Context, actorID string) (bool, error)
}

// Store combines all persistence interfaces implemented by SQLiteStore.
type Store interface {
	CredentialStore
	AuditStore
	AuthenticatorStore
	Close() error
}
