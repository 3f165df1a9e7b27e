// ABOUTME: Unit tests for the token issuer: secret validation, issuance, and token validation
// ABOUTME: Covers round-trip claims, expiry, uniform authentication failures, and tampering

package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/agentpay-gateway/internal/store"
)

const (
	testJWTSecret    = "unit-test-jwt-secret-0123456789-abcdef"
	testPepperSecret = "unit-test-pepper-secret-0123456789-ab"
)

func testIssuerConfig() IssuerConfig {
	return IssuerConfig{
		JWTSecret:        testJWTSecret,
		APIKeyHMACSecret: testPepperSecret,
		Issuer:           "agentpay-gateway",
		Audience:         "agentpay-agents",
	}
}

func f64(v float64) *float64 { return &v }

func newTestIssuer(t *testing.T) (*Issuer, *store.MockStore) {
	t.Helper()
	creds := store.NewMockStore()
	issuer, err := NewIssuer(testIssuerConfig(), creds)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	return issuer, creds
}

func seedAgent(t *testing.T, issuer *Issuer, creds *store.MockStore, apiKey string) *store.AgentCredential {
	t.Helper()
	cred := &store.AgentCredential{
		AgentID:             "agent-001",
		OwnerID:             "owner-abc",
		APIKeyHash:          issuer.HashAPIKey(apiKey),
		AgentType:           "custom-bot",
		Active:              true,
		PerTransactionLimit: f64(500),
		Capabilities:        []string{"digital_goods", "api_calls"},
	}
	if err := creds.SaveAgent(context.Background(), cred); err != nil {
		t.Fatalf("SaveAgent() error = %v", err)
	}
	return cred
}

func TestNewIssuer_RejectsShortSecret(t *testing.T) {
	cfg := testIssuerConfig()
	cfg.JWTSecret = "too-short"
	if _, err := NewIssuer(cfg, store.NewMockStore()); err == nil {
		t.Error("NewIssuer() should reject a short jwt secret")
	}

	cfg = testIssuerConfig()
	cfg.APIKeyHMACSecret = "too-short"
	if _, err := NewIssuer(cfg, store.NewMockStore()); err == nil {
		t.Error("NewIssuer() should reject a short pepper secret")
	}
}

func TestNewIssuer_RejectsPlaceholderSecret(t *testing.T) {
	cfg := testIssuerConfig()
	cfg.JWTSecret = placeholderSecret
	if _, err := NewIssuer(cfg, store.NewMockStore()); err == nil {
		t.Error("NewIssuer() should reject the documented placeholder secret")
	}
}

func TestNewIssuer_RequiresIssuerAndAudience(t *testing.T) {
	cfg := testIssuerConfig()
	cfg.Issuer = "  "
	if _, err := NewIssuer(cfg, store.NewMockStore()); err == nil {
		t.Error("NewIssuer() should require an issuer")
	}

	cfg = testIssuerConfig()
	cfg.Audience = ""
	if _, err := NewIssuer(cfg, store.NewMockStore()); err == nil {
		t.Error("NewIssuer() should require an audience")
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	issuer, creds := newTestIssuer(t)
	seedAgent(t, issuer, creds, "k1")

	token, err := issuer.Authenticate(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	agent, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if agent.AgentID != "agent-001" {
		t.Errorf("AgentID = %q, want %q", agent.AgentID, "agent-001")
	}
	if agent.OwnerID != "owner-abc" {
		t.Errorf("OwnerID = %q, want %q", agent.OwnerID, "owner-abc")
	}
	if len(agent.Capabilities) != 2 || agent.Capabilities[0] != "digital_goods" {
		t.Errorf("Capabilities = %v, want [digital_goods api_calls]", agent.Capabilities)
	}
	if agent.PerTransactionLimit == nil || *agent.PerTransactionLimit != 500 {
		t.Errorf("PerTransactionLimit = %v, want 500", agent.PerTransactionLimit)
	}
	if agent.DailySpendLimit != nil {
		t.Errorf("DailySpendLimit = %v, want nil (unlimited)", agent.DailySpendLimit)
	}
	if agent.AccessLevel != defaultAccessLevel {
		t.Errorf("AccessLevel = %q, want %q", agent.AccessLevel, defaultAccessLevel)
	}
	if !agent.Active {
		t.Error("Active = false, want true")
	}
}

func TestIssuer_TrimsAPIKey(t *testing.T) {
	issuer, creds := newTestIssuer(t)
	seedAgent(t, issuer, creds, "k1")

	if _, err := issuer.Authenticate(context.Background(), "  k1  "); err != nil {
		t.Errorf("Authenticate() with padded key error = %v", err)
	}
}

func TestIssuer_UpdatesLastUsed(t *testing.T) {
	issuer, creds := newTestIssuer(t)
	seedAgent(t, issuer, creds, "k1")

	if _, err := issuer.Authenticate(context.Background(), "k1"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	cred, err := creds.GetAgent(context.Background(), "agent-001")
	if err != nil {
		t.Fatalf("GetAgent() error = %v", err)
	}
	if cred.LastUsedAt == nil {
		t.Error("LastUsedAt was not updated on successful authentication")
	}
}

func TestIssuer_UnknownKey(t *testing.T) {
	issuer, _ := newTestIssuer(t)

	_, err := issuer.Authenticate(context.Background(), "no-such-key")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Authenticate() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestIssuer_EmptyKey(t *testing.T) {
	issuer, _ := newTestIssuer(t)

	_, err := issuer.Authenticate(context.Background(), "   ")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Authenticate() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestIssuer_ExpiredToken(t *testing.T) {
	issuer, creds := newTestIssuer(t)
	seedAgent(t, issuer, creds, "k1")

	// Mint a token two hours in the past; default TTL is one hour and
	// the 60s skew allowance does not cover it.
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := issuer.Authenticate(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Validate(token); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Validate() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestIssuer_ClockSkewTolerated(t *testing.T) {
	issuer, creds := newTestIssuer(t)
	seedAgent(t, issuer, creds, "k1")

	// Token expired 30 seconds ago stays valid within the 60s leeway.
	issuer.now = func() time.Time { return time.Now().Add(-issuer.ttl - 30*time.Second) }
	token, err := issuer.Authenticate(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Validate(token); err != nil {
		t.Errorf("Validate() within skew error = %v", err)
	}
}

func TestIssuer_WrongIssuerRejected(t *testing.T) {
	issuer, creds := newTestIssuer(t)
	seedAgent(t, issuer, creds, "k1")

	otherCfg := testIssuerConfig()
	otherCfg.Issuer = "someone-else"
	other, err := NewIssuer(otherCfg, creds)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	token, err := other.Authenticate(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	if _, err := issuer.Validate(token); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Validate() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestIssuer_TamperedToken(t *testing.T) {
	issuer, creds := newTestIssuer(t)
	seedAgent(t, issuer, creds, "k1")

	otherCfg := testIssuerConfig()
	otherCfg.JWTSecret = "completely-different-secret-0123456789"
	other, err := NewIssuer(otherCfg, creds)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	token, err := other.Authenticate(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	if _, err := issuer.Validate(token); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Validate() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestIssuer_GarbageToken(t *testing.T) {
	issuer, _ := newTestIssuer(t)

	for _, token := range []string{"", "not-a-jwt", "header.payload.signature"} {
		if _, err := issuer.Validate(token); !errors.Is(err, ErrAuthenticationFailed) {
			t.Errorf("Validate(%q) error = %v, want ErrAuthenticationFailed", token, err)
		}
	}
}

func TestIssuer_MissingIdentityClaimsRejected(t *testing.T) {
	issuer, _ := newTestIssuer(t)

	// A structurally valid token signed with the right key but missing
	// agent_id/owner_id must be rejected, not defaulted.
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "agent-001",
		"iss": "agentpay-gateway",
		"aud": "agentpay-agents",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := issuer.Validate(token); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Validate() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestHashAPIKey_Deterministic(t *testing.T) {
	issuer, _ := newTestIssuer(t)

	h1 := issuer.HashAPIKey("k1")
	h2 := issuer.HashAPIKey("k1")
	if h1 != h2 {
		t.Error("HashAPIKey() should be deterministic")
	}
	if len(h1) != 64 || strings.ToLower(h1) != h1 {
		t.Errorf("HashAPIKey() = %q, want 64 lowercase hex chars", h1)
	}

	otherCfg := testIssuerConfig()
	otherCfg.APIKeyHMACSecret = "another-pepper-secret-0123456789-abcd"
	other, err := NewIssuer(otherCfg, store.NewMockStore())
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	if other.HashAPIKey("k1") == h1 {
		t.Error("HashAPIKey() should depend on the pepper")
	}
}

func TestDecodeSecret_Base64ElseUTF8(t *testing.T) {
	// Standard base64 decodes; the '-' below forces the UTF-8 path.
	b64 := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	if got := decodeSecret(b64); len(got) != 32 {
		t.Errorf("decodeSecret(base64) len = %d, want 32", len(got))
	}
	raw := "not-base64-secret"
	if got := decodeSecret(raw); string(got) != raw {
		t.Errorf("decodeSecret(utf8) = %q, want %q", got, raw)
	}
}
