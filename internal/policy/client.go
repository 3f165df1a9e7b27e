// ABOUTME: HTTP client for the external policy decision service
// ABOUTME: Maps responses and failures to fail-closed purchase decisions

package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/2389/agentpay-gateway/internal/purchase"
)

// Default timeouts. The client enforces its own bounds rather than
// relying on the caller threading a cancellation through correctly.
const (
	defaultConnectTimeout = 2 * time.Second
	defaultRequestTimeout = 3 * time.Second
)

// decisionPath is the decision-service endpoint for purchase policies.
const decisionPath = "/v1/data/payments"

// Client evaluates purchases against an external decision service. It
// holds no session state between calls and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeouts sets the connect and total request timeouts.
func WithTimeouts(connect, request time.Duration) Option {
	return func(c *Client) {
		c.httpClient = newHTTPClient(connect, request)
	}
}

func newHTTPClient(connect, request time.Duration) *http.Client {
	return &http.Client{
		Timeout: request,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connect}).DialContext,
		},
	}
}

// NewClient creates a policy client for the decision service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(defaultConnectTimeout, defaultRequestTimeout),
		logger:     slog.Default().With("component", "policy"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// evaluationRequest is the decision-service input envelope.
type evaluationRequest struct {
	Input evaluationInput `json:"input"`
}

type evaluationInput struct {
	Purchase *purchase.Request `json:"purchase"`
	User     evaluationUser    `json:"user"`
}

type evaluationUser struct {
	ID string `json:"id"`
}

// evaluationResponse is the decision-service output envelope.
type evaluationResponse struct {
	Result *evaluationResult `json:"result"`
}

type evaluationResult struct {
	Allow       bool     `json:"allow"`
	Explanation []string `json:"explanation"`
}

// Evaluate asks the decision service whether the purchase is allowed.
// Any transport error, timeout, non-2xx status, or malformed response
// yields a deny decision flagging a system failure; an error is never
// converted into an allow.
func (c *Client) Evaluate(ctx context.Context, req *purchase.Request, actorID string) purchase.Decision {
	body, err := json.Marshal(evaluationRequest{
		Input: evaluationInput{
			Purchase: req,
			User:     evaluationUser{ID: actorID},
		},
	})
	if err != nil {
		c.logger.Error("failed to encode policy input", "error", err)
		return errorDecision()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+decisionPath, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to build policy request", "error", err)
		return errorDecision()
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("policy evaluation failed", "error", err)
		return errorDecision()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("policy service returned non-2xx", "status", resp.StatusCode)
		return errorDecision()
	}

	var evalResp evaluationResponse
	if err := json.NewDecoder(resp.Body).Decode(&evalResp); err != nil {
		c.logger.Warn("malformed policy response", "error", err)
		return errorDecision()
	}

	if evalResp.Result == nil {
		return purchase.Decision{
			Allowed:     false,
			Explanation: []string{"No result from policy evaluation"},
		}
	}

	c.logger.Debug("policy evaluation completed",
		"allowed", evalResp.Result.Allow, "actor_id", actorID)
	return purchase.Decision{
		Allowed:     evalResp.Result.Allow,
		Explanation: evalResp.Result.Explanation,
	}
}

// errorDecision is the fail-closed result for any system failure.
func errorDecision() purchase.Decision {
	return purchase.Decision{
		Allowed:     false,
		Explanation: []string{"Policy evaluation failed due to system error"},
	}
}

// Healthy probes the decision service, for startup and health checks.
func (c *Client) Healthy(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("policy service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("policy service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
