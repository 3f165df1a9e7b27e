// ABOUTME: Gateway orchestrator wiring auth, policy, risk, and purchase components
// ABOUTME: Manages the HTTP server lifecycle, health endpoints, and seed provisioning

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/agentpay-gateway/internal/auth"
	"github.com/2389/agentpay-gateway/internal/config"
	"github.com/2389/agentpay-gateway/internal/policy"
	"github.com/2389/agentpay-gateway/internal/purchase"
	"github.com/2389/agentpay-gateway/internal/risk"
	"github.com/2389/agentpay-gateway/internal/store"
)

// Gateway orchestrates the agentpay-gateway server components.
// It wires the token issuer, policy client, risk gate, and purchase
// service together and manages the HTTP server lifecycle.
type Gateway struct {
	config     *config.Config
	store      store.Store
	issuer     *auth.Issuer
	policy     *policy.Client
	ceremonies *risk.WebAuthnProvider
	purchases  *purchase.Service
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the backing store from config.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New constructs a fully wired Gateway from configuration.
// Misconfigured secrets are a construction-time failure.
func New(cfg *config.Config) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw, err := NewWithStore(cfg, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// NewWithStore constructs a Gateway over an existing store. The caller
// retains ownership of the store on error.
func NewWithStore(cfg *config.Config, s store.Store) (*Gateway, error) {
	logger := slog.Default()

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		JWTSecret:        cfg.Auth.JWTSecret,
		APIKeyHMACSecret: cfg.Auth.APIKeyPepper,
		Issuer:           cfg.Auth.Issuer,
		Audience:         cfg.Auth.Audience,
		TokenTTL:         cfg.Auth.TokenTTL,
		ClockSkew:        cfg.Auth.ClockSkew,
	}, s)
	if err != nil {
		return nil, fmt.Errorf("initializing token issuer: %w", err)
	}

	var policyOpts []policy.Option
	if cfg.Policy.ConnectTimeout > 0 || cfg.Policy.RequestTimeout > 0 {
		policyOpts = append(policyOpts, policy.WithTimeouts(cfg.Policy.ConnectTimeout, cfg.Policy.RequestTimeout))
	}
	policyClient := policy.NewClient(cfg.Policy.URL, policyOpts...)

	ceremonies, err := risk.NewWebAuthnProvider(risk.WebAuthnConfig{
		RPDisplayName: cfg.Risk.WebAuthn.RPDisplayName,
		BaseURL:       cfg.Server.BaseURL,
		ApprovalTTL:   cfg.Risk.WebAuthn.ApprovalTTL,
	}, s)
	if err != nil {
		return nil, fmt.Errorf("initializing step-up ceremonies: %w", err)
	}

	gate := risk.NewGate(cfg.Risk.StepUpThreshold, ceremonies)
	purchases := purchase.NewService(policyClient, gate, purchase.NewStoreAuditSink(s), purchase.NewMemoryLedger())

	gw := &Gateway{
		config:     cfg,
		store:      s,
		issuer:     issuer,
		policy:     policyClient,
		ceremonies: ceremonies,
		purchases:  purchases,
		logger:     logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	gw.registerAPIRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// SeedAgents provisions the configured agent credentials. API keys are
// hashed before storage. Existing agents are updated in place.
func (g *Gateway) SeedAgents(ctx context.Context) error {
	for _, seed := range g.config.Seed.Agents {
		cred := &store.AgentCredential{
			AgentID:             seed.AgentID,
			OwnerID:             seed.OwnerID,
			APIKeyHash:          g.issuer.HashAPIKey(seed.APIKey),
			AgentType:           seed.AgentType,
			Active:              true,
			CreatedAt:           time.Now().UTC(),
			DailySpendLimit:     seed.DailySpendLimit,
			MonthlySpendLimit:   seed.MonthlySpendLimit,
			PerTransactionLimit: seed.PerTransactionLimit,
			Capabilities:        seed.Capabilities,
		}
		if err := g.store.SaveAgent(ctx, cred); err != nil {
			return fmt.Errorf("seeding agent %q: %w", seed.AgentID, err)
		}
		g.logger.Info("seeded agent credential", "agent_id", seed.AgentID)
	}
	return nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	serverErr := g.waitForShutdownSignal(ctx, errCh)
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var errs []error

	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.ceremonies.Close()

	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the policy engine is reachable.
// The gateway fails closed without it, so readiness tracks the engine.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.policy.Healthy(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("policy engine unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
