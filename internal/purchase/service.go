// ABOUTME: Authorization orchestrator for the purchase transaction lifecycle
// ABOUTME: Validates, evaluates policy, gates on step-up, and owns the override path

package purchase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/agentpay-gateway/internal/auth"
	"github.com/2389/agentpay-gateway/internal/store"
)

// Service orchestrates purchase authorization. Safe for concurrent use;
// the denied ledger is the only shared mutable state.
type Service struct {
	policy PolicyEvaluator
	risk   RiskGate
	audit  AuditSink
	ledger DeniedLedger
	logger *slog.Logger
}

// NewService wires the orchestrator with its collaborators.
func NewService(policy PolicyEvaluator, risk RiskGate, audit AuditSink, ledger DeniedLedger) *Service {
	return &Service{
		policy: policy,
		risk:   risk,
		audit:  audit,
		ledger: ledger,
		logger: slog.Default().With("component", "purchase"),
	}
}

// ProcessPurchase runs the full authorization flow for one purchase
// attempt. The agent context comes from the already-validated session;
// no re-authentication happens here. Each call generates a fresh
// transaction ID, so no cross-call locking is needed.
func (s *Service) ProcessPurchase(ctx context.Context, agent *auth.AgentContext, req *Request) *Response {
	transactionID := uuid.New().String()
	actorID := agent.AgentID

	s.logger.Info("purchase request received",
		"transaction_id", transactionID, "agent_id", actorID,
		"merchant", req.Merchant, "amount", req.Amount)
	s.audit.LogEvent(ctx, transactionID, store.AuditPurchaseRequestReceived, req)

	if err := req.Validate(); err != nil {
		s.audit.LogEvent(ctx, transactionID, store.AuditPurchaseRequestInvalid, map[string]any{"error": err.Error()})
		s.logger.Info("purchase request invalid", "transaction_id", transactionID, "error", err)
		return &Response{
			TransactionID: transactionID,
			Status:        StatusInvalidRequest,
			Message:       "Invalid purchase request: " + err.Error(),
		}
	}

	decision := s.policy.Evaluate(ctx, req, actorID)
	s.audit.LogEvent(ctx, transactionID, store.AuditPolicyEvaluationComplete, map[string]any{
		"allowed":     decision.Allowed,
		"userId":      actorID,
		"explanation": decision.Explanation,
	})

	if !decision.Allowed {
		s.ledger.Put(transactionID, req)
		s.audit.LogEvent(ctx, transactionID, store.AuditPurchaseDenied, map[string]any{
			"explanation": decision.Explanation,
		})
		s.logger.Info("purchase denied by policy", "transaction_id", transactionID)
		return &Response{
			TransactionID: transactionID,
			Status:        StatusDenied,
			Message:       "Purchase denied by policy. An override may be possible.",
			Explanation:   decision.Explanation,
		}
	}

	if s.risk.StepUpRequired(req) {
		if !s.risk.PerformStepUp(ctx, actorID) {
			// Deliberately not ledgered: the transaction consumed its one
			// decision and is not override-eligible on this path.
			s.audit.LogEvent(ctx, transactionID, store.AuditPurchaseDeniedStepUp, map[string]any{
				"userId": actorID,
			})
			s.logger.Info("purchase denied, step-up failed", "transaction_id", transactionID)
			return &Response{
				TransactionID: transactionID,
				Status:        StatusDenied,
				Message:       "Purchase denied due to failed step-up authentication.",
			}
		}
	}

	s.audit.LogEvent(ctx, transactionID, store.AuditPurchaseApproved, map[string]any{
		"explanation": decision.Explanation,
	})
	s.logger.Info("purchase approved", "transaction_id", transactionID)
	return &Response{
		TransactionID: transactionID,
		Status:        StatusApproved,
		Message:       "Purchase approved by policy.",
		Explanation:   decision.Explanation,
	}
}

// OverridePurchase resolves a previously denied transaction as approved
// by a human actor. The permission check runs before any ledger access,
// so unauthorized attempts cannot probe which transactions exist. The
// ledger take is atomic: of N concurrent overrides on one ID, exactly
// one returns OVERRIDE_APPROVED and the rest NOT_FOUND. Override is the
// owner's unconditional approval; policy is not re-evaluated.
func (s *Service) OverridePurchase(ctx context.Context, agent *auth.AgentContext, transactionID string, override *OverrideRequest) (*Response, error) {
	if err := override.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOverride, err)
	}

	// The overriding actor must match the authenticated caller or hold
	// an elevated override capability. Checked before any ledger access
	// so unauthorized attempts cannot probe which transactions exist.
	if override.UserID != agent.AgentID && !agent.CanOverride() {
		s.logger.Warn("override rejected",
			"transaction_id", transactionID, "agent_id", agent.AgentID, "override_user", override.UserID)
		return nil, ErrOverrideNotPermitted
	}

	if _, ok := s.ledger.Take(transactionID); !ok {
		return &Response{
			TransactionID: transactionID,
			Status:        StatusNotFound,
			Message:       "Transaction not found or not eligible for override.",
		}, nil
	}

	message := fmt.Sprintf("Purchase approved by override from user '%s'. Reason: %s",
		override.UserID, override.Reason)
	s.audit.LogEvent(ctx, transactionID, store.AuditPurchaseOverrideApproved, map[string]any{
		"userId": override.UserID,
		"reason": override.Reason,
	})
	s.logger.Info("purchase override approved", "transaction_id", transactionID, "user_id", override.UserID)

	return &Response{
		TransactionID: transactionID,
		Status:        StatusOverrideApproved,
		Message:       message,
	}, nil
}
