// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu             sync.RWMutex
	agents         map[string]*AgentCredential // keyed by agent ID
	hashIndex      map[string]string           // api key hash -> agent ID
	events         map[string][]*AuditEvent    // keyed by transaction ID
	authenticators map[string][]*Authenticator // keyed by actor ID
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		agents:         make(map[string]*AgentCredential),
		hashIndex:      make(map[string]string),
		events:         make(map[string][]*AuditEvent),
		authenticators: make(map[string][]*Authenticator),
	}
}

// FindActiveByAPIKeyHash looks up an active credential by API key hash.
func (m *MockStore) FindActiveByAPIKeyHash(ctx context.Context, hash string) (*AgentCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.hashIndex[hash]
	if !ok {
		return nil, ErrNotFound
	}
	cred, ok := m.agents[id]
	if !ok || !cred.Active {
		return nil, ErrNotFound
	}
	c := *cred
	return &c, nil
}

// GetAgent retrieves a credential by agent ID.
func (m *MockStore) GetAgent(ctx context.Context, agentID string) (*AgentCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.agents[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *cred
	return &c, nil
}

// SaveAgent stores a credential, replacing any existing entry.
func (m *MockStore) SaveAgent(ctx context.Context, cred *AgentCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Make a copy to avoid external modification
	c := *cred
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if old, ok := m.agents[c.AgentID]; ok {
		delete(m.hashIndex, old.APIKeyHash)
	}
	m.agents[c.AgentID] = &c
	m.hashIndex[c.APIKeyHash] = c.AgentID
	return nil
}

// ListAgents returns all stored credentials.
func (m *MockStore) ListAgents(ctx context.Context) ([]*AgentCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	creds := make([]*AgentCredential, 0, len(m.agents))
	for _, cred := range m.agents {
		c := *cred
		creds = append(creds, &c)
	}
	return creds, nil
}

// TouchLastUsed records a successful authentication timestamp.
func (m *MockStore) TouchLastUsed(ctx context.Context, agentID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.agents[agentID]
	if !ok {
		return ErrNotFound
	}
	t := at
	cred.LastUsedAt = &t
	return nil
}

// AppendAuditEvent records an audit event.
func (m *MockStore) AppendAuditEvent(ctx context.Context, e *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	ev := *e
	m.events[e.TransactionID] = append(m.events[e.TransactionID], &ev)
	return nil
}

// ListAuditEvents returns all events for a transaction in insertion order.
func (m *MockStore) ListAuditEvents(ctx context.Context, transactionID string) ([]*AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*AuditEvent, 0, len(m.events[transactionID]))
	for _, e := range m.events[transactionID] {
		ev := *e
		events = append(events, &ev)
	}
	return events, nil
}

// SaveAuthenticator stores an authenticator for an actor.
func (m *MockStore) SaveAuthenticator(ctx context.Context, a *Authenticator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	auth := *a
	m.authenticators[a.ActorID] = append(m.authenticators[a.ActorID], &auth)
	return nil
}

// ListAuthenticators returns all authenticators for an actor.
func (m *MockStore) ListAuthenticators(ctx context.Context, actorID string) ([]*Authenticator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	auths := make([]*Authenticator, 0, len(m.authenticators[actorID]))
	for _, a := range m.authenticators[actorID] {
		auth := *a
		auths = append(auths, &auth)
	}
	return auths, nil
}

// UpdateSignCount updates the signature counter for an authenticator.
func (m *MockStore) UpdateSignCount(ctx context.Context, id string, signCount uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, auths := range m.authenticators {
		for _, a := range auths {
			if a.ID == id {
				a.SignCount = signCount
				return nil
			}
		}
	}
	return ErrNotFound
}

// HasAuthenticator reports whether an actor has a registered authenticator.
func (m *MockStore) HasAuthenticator(ctx context.Context, actorID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.authenticators[actorID]) > 0, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
