// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces:
//
//   - CredentialStore: Agent API credentials with lookup-by-key-hash
//   - AuditStore: Immutable purchase audit trail keyed by transaction ID
//   - AuthenticatorStore: Registered WebAuthn credentials for step-up actors
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Data Models
//
//   - AgentCredential: Agent identity with peppered API key hash, spend
//     limits, capability set, and active flag
//   - AuditEvent: One lifecycle event of a purchase transaction
//   - Authenticator: One registered step-up authenticator for an actor
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateAgent: Agent already exists
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests:
//
//	store := store.NewMockStore()
//	// store implements all Store interfaces
//
// Use NewSQLiteStore with a t.TempDir() path for integration tests with
// real SQLite.
package store
