// ABOUTME: In-memory denied-transaction ledger with atomic take semantics
// ABOUTME: Exactly one concurrent override observes an entry; the rest see not-found

package purchase

import (
	"sync"
)

// MemoryLedger is a process-local DeniedLedger. Entries live until a
// matching override consumes them or the process restarts; there is no
// persistence. Wrap an external cache behind the DeniedLedger interface
// for multi-instance deployments.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]*Request
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]*Request),
	}
}

// Put records a denied transaction. Transaction IDs are fresh per
// attempt, so blind overwrite is acceptable.
func (l *MemoryLedger) Put(transactionID string, req *Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := *req
	l.entries[transactionID] = &r
}

// Take removes and returns the entry for the given ID. The check and
// removal happen under one lock so concurrent takes on the same ID
// resolve to exactly one winner.
func (l *MemoryLedger) Take(transactionID string) (*Request, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	req, ok := l.entries[transactionID]
	if !ok {
		return nil, false
	}
	delete(l.entries, transactionID)
	return req, true
}

// Has reports whether an entry exists without consuming it.
func (l *MemoryLedger) Has(transactionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[transactionID]
	return ok
}
