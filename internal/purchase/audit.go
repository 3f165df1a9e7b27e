// ABOUTME: Store-backed audit sink for purchase lifecycle events
// ABOUTME: Best-effort writes; failures are logged and never abort the decision path

package purchase

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/2389/agentpay-gateway/internal/store"
)

// StoreAuditSink writes audit events to an AuditStore.
type StoreAuditSink struct {
	store  store.AuditStore
	logger *slog.Logger
}

// NewStoreAuditSink creates an audit sink backed by the given store.
func NewStoreAuditSink(s store.AuditStore) *StoreAuditSink {
	return &StoreAuditSink{
		store:  s,
		logger: slog.Default().With("component", "audit"),
	}
}

// LogEvent serializes details to JSON and appends the event. The write
// uses a cancellation-free context so events for completed steps are
// still recorded when the caller disconnects mid-flight.
func (a *StoreAuditSink) LogEvent(ctx context.Context, transactionID, eventType string, details any) {
	payload, err := json.Marshal(details)
	if err != nil {
		a.logger.Warn("failed to serialize audit details", "transaction_id", transactionID, "event_type", eventType, "error", err)
		payload = []byte(`{"error":"failed to serialize audit data"}`)
	}

	event := &store.AuditEvent{
		TransactionID: transactionID,
		EventType:     eventType,
		Details:       string(payload),
	}
	if err := a.store.AppendAuditEvent(context.WithoutCancel(ctx), event); err != nil {
		a.logger.Warn("failed to append audit event", "transaction_id", transactionID, "event_type", eventType, "error", err)
	}
}
