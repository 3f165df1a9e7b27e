// ABOUTME: Agent context for tracking identity through request handlers
// ABOUTME: Provides WithAgent/FromContext for propagating agent identity via context

package auth

import (
	"context"
)

// Capabilities that grant transaction override permission.
const (
	CapabilityAdmin      = "admin"
	CapabilitySupervisor = "supervisor"
	CapabilityManager    = "manager"
)

// AgentContext holds the authenticated agent identity reconstructed from a
// validated session token. It is immutable once constructed and lives for
// the duration of one request.
type AgentContext struct {
	AgentID             string
	OwnerID             string
	AgentType           string
	Capabilities        []string
	DailySpendLimit     *float64 // nil = unlimited
	MonthlySpendLimit   *float64
	PerTransactionLimit *float64
	AccessLevel         string
	Active              bool
}

// HasCapability returns true if the agent holds the named capability.
func (a *AgentContext) HasCapability(name string) bool {
	for _, c := range a.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// CanOverride returns true if the agent may override denied transactions.
func (a *AgentContext) CanOverride() bool {
	return a.HasCapability(CapabilityAdmin) ||
		a.HasCapability(CapabilitySupervisor) ||
		a.HasCapability(CapabilityManager)
}

// agentContextKey is the key type for storing AgentContext in context.Context.
type agentContextKey struct{}

// WithAgent returns a new context with the AgentContext attached.
func WithAgent(ctx context.Context, agent *AgentContext) context.Context {
	return context.WithValue(ctx, agentContextKey{}, agent)
}

// FromContext retrieves the AgentContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AgentContext {
	val := ctx.Value(agentContextKey{})
	if val == nil {
		return nil
	}
	agent, ok := val.(*AgentContext)
	if !ok {
		return nil
	}
	return agent
}

// MustFromContext retrieves the AgentContext from the context, panicking if not present.
func MustFromContext(ctx context.Context) *AgentContext {
	agent := FromContext(ctx)
	if agent == nil {
		panic("auth: AgentContext not found in context")
	}
	return agent
}
