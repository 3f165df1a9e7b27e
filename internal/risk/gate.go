// ABOUTME: Risk gate deciding when step-up authentication is required
// ABOUTME: Pure threshold check plus delegation to a ceremony provider

package risk

import (
	"context"
	"log/slog"

	"github.com/2389/agentpay-gateway/internal/purchase"
)

// DefaultStepUpThreshold is the amount above which step-up is required.
const DefaultStepUpThreshold = 1000.0

// CeremonyProvider adjudicates strong authentication for an actor.
// Implementations report yes/no; they never surface ceremony internals.
type CeremonyProvider interface {
	HasRegisteredAuthenticator(ctx context.Context, actorID string) bool
	PerformStepUp(ctx context.Context, actorID string) bool
}

// Gate implements purchase.RiskGate over a configurable amount threshold
// and an external ceremony provider.
type Gate struct {
	threshold  float64
	ceremonies CeremonyProvider
	logger     *slog.Logger
}

// NewGate creates a risk gate. A non-positive threshold falls back to
// DefaultStepUpThreshold.
func NewGate(threshold float64, ceremonies CeremonyProvider) *Gate {
	if threshold <= 0 {
		threshold = DefaultStepUpThreshold
	}
	return &Gate{
		threshold:  threshold,
		ceremonies: ceremonies,
		logger:     slog.Default().With("component", "risk"),
	}
}

// StepUpRequired reports whether the transaction amount crosses the
// step-up threshold. Pure function of the request; no side effects.
func (g *Gate) StepUpRequired(req *purchase.Request) bool {
	return req.Amount > g.threshold
}

// PerformStepUp adjudicates step-up authentication for the actor.
// Returns false, never an error, when the actor has no registered
// authenticator or the ceremony fails.
func (g *Gate) PerformStepUp(ctx context.Context, actorID string) bool {
	if !g.ceremonies.HasRegisteredAuthenticator(ctx, actorID) {
		g.logger.Info("step-up failed: no registered authenticator", "actor_id", actorID)
		return false
	}
	ok := g.ceremonies.PerformStepUp(ctx, actorID)
	g.logger.Info("step-up adjudicated", "actor_id", actorID, "authenticated", ok)
	return ok
}
