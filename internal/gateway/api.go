// ABOUTME: HTTP API handlers for token issuance, purchase authorization, and step-up
// ABOUTME: Provides the /api/v1 endpoints consumed by purchasing agents

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/2389/agentpay-gateway/internal/auth"
	"github.com/2389/agentpay-gateway/internal/purchase"
	"github.com/2389/agentpay-gateway/internal/risk"
)

// TokenRequest is the JSON request body for POST /api/v1/auth/token.
type TokenRequest struct {
	APIKey string `json:"apiKey"`
}

// TokenResponse is the JSON response for a successful token exchange.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"` // seconds
}

// ValidateResponse is the JSON response for GET /api/v1/auth/validate.
type ValidateResponse struct {
	Valid        bool     `json:"valid"`
	AgentID      string   `json:"agentId"`
	OwnerID      string   `json:"ownerId"`
	AgentType    string   `json:"agentType,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	AccessLevel  string   `json:"accessLevel,omitempty"`
}

// CeremonyRequest is the JSON request body for step-up ceremony finish
// endpoints. Response carries the raw authenticator payload.
type CeremonyRequest struct {
	SessionToken string          `json:"sessionToken"`
	Response     json.RawMessage `json:"response"`
}

// errorResponse is the uniform JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

// registerAPIRoutes attaches the /api/v1 endpoints to the mux. All
// routes except token issuance require a valid session token.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	authMiddleware := auth.Middleware(g.issuer)

	mux.HandleFunc("/api/v1/auth/token", g.handleToken)
	mux.Handle("/api/v1/auth/validate", authMiddleware(http.HandlerFunc(g.handleValidate)))
	mux.Handle("/api/v1/purchase", authMiddleware(http.HandlerFunc(g.handlePurchase)))
	mux.Handle("/api/v1/purchase/", authMiddleware(http.HandlerFunc(g.handlePurchaseOverride)))
	mux.Handle("/api/v1/stepup/register/begin", authMiddleware(http.HandlerFunc(g.handleStepUpRegisterBegin)))
	mux.Handle("/api/v1/stepup/register/finish", authMiddleware(http.HandlerFunc(g.handleStepUpRegisterFinish)))
	mux.Handle("/api/v1/stepup/begin", authMiddleware(http.HandlerFunc(g.handleStepUpBegin)))
	mux.Handle("/api/v1/stepup/finish", authMiddleware(http.HandlerFunc(g.handleStepUpFinish)))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleToken handles POST /api/v1/auth/token requests.
// It exchanges an agent API key for a signed session token. All
// authentication failures return the same 401 body.
func (g *Gateway) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := g.issuer.Authenticate(r.Context(), req.APIKey)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(g.issuer.TokenTTL().Seconds()),
	})
}

// handleValidate handles GET /api/v1/auth/validate requests.
// Reaching the handler means the middleware already accepted the token,
// so it just reflects the resolved identity.
func (g *Gateway) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	agent := auth.MustFromContext(r.Context())
	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:        true,
		AgentID:      agent.AgentID,
		OwnerID:      agent.OwnerID,
		AgentType:    agent.AgentType,
		Capabilities: agent.Capabilities,
		AccessLevel:  agent.AccessLevel,
	})
}

// handlePurchase handles POST /api/v1/purchase requests.
// The full authorization pipeline runs for every request; a denial is a
// successful HTTP exchange, not an error status.
func (g *Gateway) handlePurchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req purchase.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agent := auth.MustFromContext(r.Context())
	resp := g.purchases.ProcessPurchase(r.Context(), agent, &req)

	status := http.StatusOK
	if resp.Status == purchase.StatusInvalidRequest {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// overrideTransactionID extracts the transaction ID from an override
// path like /api/v1/purchase/{id}/override. Returns "" if the path
// doesn't match.
func overrideTransactionID(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/purchase/")
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, "/override")
	if !ok || id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// handlePurchaseOverride handles POST /api/v1/purchase/{id}/override.
// Permission failures are 403 and malformed overrides 400; an unknown
// or ineligible transaction reports NOT_FOUND.
func (g *Gateway) handlePurchaseOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	transactionID := overrideTransactionID(r.URL.Path)
	if transactionID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var override purchase.OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agent := auth.MustFromContext(r.Context())
	resp, err := g.purchases.OverridePurchase(r.Context(), agent, transactionID, &override)
	if err != nil {
		switch {
		case errors.Is(err, purchase.ErrOverrideNotPermitted):
			writeError(w, http.StatusForbidden, "override not permitted")
		case errors.Is(err, purchase.ErrInvalidOverride):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			g.logger.Error("override failed", "transaction_id", transactionID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	status := http.StatusOK
	if resp.Status == purchase.StatusNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, resp)
}

// handleStepUpRegisterBegin handles POST /api/v1/stepup/register/begin.
// It starts a passkey registration ceremony for the authenticated agent.
func (g *Gateway) handleStepUpRegisterBegin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	agent := auth.MustFromContext(r.Context())
	options, sessionToken, err := g.ceremonies.BeginRegistration(r.Context(), agent.AgentID)
	if err != nil {
		g.logger.Error("failed to begin registration", "agent_id", agent.AgentID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start registration")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"options":      options,
		"sessionToken": sessionToken,
	})
}

// handleStepUpRegisterFinish handles POST /api/v1/stepup/register/finish.
func (g *Gateway) handleStepUpRegisterFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeCeremonyRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agent := auth.MustFromContext(r.Context())
	if err := g.ceremonies.FinishRegistration(r.Context(), agent.AgentID, req.SessionToken, req.Response); err != nil {
		if errors.Is(err, risk.ErrInvalidSession) {
			writeError(w, http.StatusBadRequest, "invalid or expired session")
			return
		}
		g.logger.Error("failed to finish registration", "agent_id", agent.AgentID, "error", err)
		writeError(w, http.StatusBadRequest, "failed to verify credential")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStepUpBegin handles POST /api/v1/stepup/begin.
// It starts an assertion ceremony; success at the finish endpoint grants
// a short-lived approval consumed by the purchase pipeline.
func (g *Gateway) handleStepUpBegin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	agent := auth.MustFromContext(r.Context())
	options, sessionToken, err := g.ceremonies.BeginStepUp(r.Context(), agent.AgentID)
	if err != nil {
		if errors.Is(err, risk.ErrNoAuthenticator) {
			writeError(w, http.StatusBadRequest, "no registered authenticator")
			return
		}
		g.logger.Error("failed to begin step-up", "agent_id", agent.AgentID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start step-up")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"options":      options,
		"sessionToken": sessionToken,
	})
}

// handleStepUpFinish handles POST /api/v1/stepup/finish.
func (g *Gateway) handleStepUpFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeCeremonyRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agent := auth.MustFromContext(r.Context())
	if err := g.ceremonies.FinishStepUp(r.Context(), agent.AgentID, req.SessionToken, req.Response); err != nil {
		if errors.Is(err, risk.ErrInvalidSession) {
			writeError(w, http.StatusBadRequest, "invalid or expired session")
			return
		}
		g.logger.Error("failed to finish step-up", "agent_id", agent.AgentID, "error", err)
		writeError(w, http.StatusBadRequest, "failed to verify assertion")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeCeremonyRequest(body io.Reader) (*CeremonyRequest, error) {
	var req CeremonyRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}
