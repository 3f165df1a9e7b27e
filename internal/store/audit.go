// ABOUTME: Audit trail store methods for recording purchase lifecycle events
// ABOUTME: Appends immutable events keyed by transaction ID for later review

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit event types emitted by the purchase orchestrator.
const (
	AuditPurchaseRequestReceived  = "PURCHASE_REQUEST_RECEIVED"
	AuditPurchaseRequestInvalid   = "PURCHASE_REQUEST_INVALID"
	AuditPolicyEvaluationComplete = "POLICY_EVALUATION_COMPLETED"
	AuditPurchaseApproved         = "PURCHASE_APPROVED"
	AuditPurchaseDenied           = "PURCHASE_DENIED"
	AuditPurchaseDeniedStepUp     = "PURCHASE_DENIED_STEP_UP_FAILED"
	AuditPurchaseOverrideApproved = "PURCHASE_OVERRIDE_APPROVED"
)

// AppendAuditEvent appends a new event to the audit trail.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditEvent(ctx context.Context, e *AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Details == "" {
		e.Details = "{}"
	}

	query := `
		INSERT INTO audit_log (audit_id, transaction_id, event_type, details, ts)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.TransactionID, e.EventType, e.Details, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns all events for a transaction, oldest first.
func (s *SQLiteStore) ListAuditEvents(ctx context.Context, transactionID string) ([]*AuditEvent, error) {
	query := `
		SELECT audit_id, transaction_id, event_type, details, ts
		FROM audit_log
		WHERE transaction_id = ?
		ORDER BY ts ASC, audit_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.EventType, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
