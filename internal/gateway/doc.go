// Package gateway orchestrates the agentpay-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the agentpay-gateway
// server. It owns and wires all major components: the token issuer, the
// policy engine client, the risk gate with its WebAuthn ceremony
// provider, the purchase orchestrator, and the data store.
//
// # Gateway Struct
//
// The Gateway struct is the main entry point:
//
//	type Gateway struct {
//	    config     *config.Config
//	    store      store.Store
//	    issuer     *auth.Issuer
//	    policy     *policy.Client
//	    ceremonies *risk.WebAuthnProvider
//	    purchases  *purchase.Service
//	    httpServer *http.Server
//	}
//
// # HTTP API
//
// The gateway exposes HTTP endpoints in api.go:
//
//   - POST /api/v1/auth/token - Exchange an agent API key for a session token
//   - GET /api/v1/auth/validate - Validate a session token and reflect identity
//   - POST /api/v1/purchase - Run the purchase authorization pipeline
//   - POST /api/v1/purchase/{id}/override - Human override of a denied purchase
//   - POST /api/v1/stepup/register/begin|finish - Passkey registration ceremony
//   - POST /api/v1/stepup/begin|finish - Step-up assertion ceremony
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (policy engine reachable)
//
// All /api/v1 routes except token issuance require a bearer session token.
//
// # Seeding
//
// SeedAgents provisions agent credentials from config at startup. API
// keys are hashed with the peppered HMAC before storage; the clear key
// never persists.
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//
// Graceful shutdown:
//
//	cancel()
//	gw.Shutdown(shutdownCtx)
//
// # Key Files
//
//   - gateway.go: Gateway struct, initialization, Run/Shutdown, seeding
//   - api.go: HTTP handlers for auth, purchase, override, and step-up
package gateway
