// ABOUTME: Tests for the WebAuthn ceremony provider
// ABOUTME: Covers relying-party derivation, session store, and approval cache

package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/2389/agentpay-gateway/internal/store"
)

func TestDeriveRelyingParty(t *testing.T) {
	tests := []struct {
		name        string
		baseURL     string
		wantRPID    string
		wantOrigins []string
	}{
		{
			name:        "empty URL uses localhost defaults",
			baseURL:     "",
			wantRPID:    "localhost",
			wantOrigins: []string{"http://localhost", "https://localhost"},
		},
		{
			name:        "invalid URL uses localhost defaults",
			baseURL:     "://not-a-url",
			wantRPID:    "localhost",
			wantOrigins: []string{"http://localhost", "https://localhost"},
		},
		{
			name:        "https URL",
			baseURL:     "https://pay.example.com",
			wantRPID:    "pay.example.com",
			wantOrigins: []string{"https://pay.example.com", "http://pay.example.com"},
		},
		{
			name:        "http URL with port",
			baseURL:     "http://pay.example.com:8080",
			wantRPID:    "pay.example.com",
			wantOrigins: []string{"http://pay.example.com:8080", "https://pay.example.com:8080"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpID, origins := deriveRelyingParty(tt.baseURL)
			if rpID != tt.wantRPID {
				t.Errorf("rpID = %q, want %q", rpID, tt.wantRPID)
			}
			if len(origins) != len(tt.wantOrigins) {
				t.Fatalf("origins = %v, want %v", origins, tt.wantOrigins)
			}
			for i := range origins {
				if origins[i] != tt.wantOrigins[i] {
					t.Errorf("origins[%d] = %q, want %q", i, origins[i], tt.wantOrigins[i])
				}
			}
		})
	}
}

func TestSessionStore_SetGetDelete(t *testing.T) {
	s := newSessionStore()
	defer s.Close()

	session := &webauthn.SessionData{Challenge: "test-challenge"}
	s.Set("token-1", session, "user-1")

	got, actorID, ok := s.Get("token-1")
	if !ok {
		t.Fatal("expected session to be found")
	}
	if actorID != "user-1" {
		t.Errorf("actorID = %q, want %q", actorID, "user-1")
	}
	if got.Challenge != "test-challenge" {
		t.Errorf("challenge = %q, want %q", got.Challenge, "test-challenge")
	}

	s.Delete("token-1")
	if _, _, ok := s.Get("token-1"); ok {
		t.Error("session should be gone after delete")
	}
}

func TestSessionStore_UnknownToken(t *testing.T) {
	s := newSessionStore()
	defer s.Close()

	if _, _, ok := s.Get("no-such-token"); ok {
		t.Error("unknown token should not resolve")
	}
}

func TestSessionStore_ExpiredSession(t *testing.T) {
	s := newSessionStore()
	defer s.Close()

	s.Set("token-1", &webauthn.SessionData{}, "user-1")
	s.mu.Lock()
	s.sessions["token-1"].expiresAt = time.Now().Add(-time.Second)
	s.mu.Unlock()

	if _, _, ok := s.Get("token-1"); ok {
		t.Error("expired session should not resolve")
	}
}

func TestApprovalCache_GrantAndConsume(t *testing.T) {
	c := newApprovalCache(time.Minute)

	if c.Consume("user-1") {
		t.Error("consume without grant should fail")
	}

	c.Grant("user-1")
	if !c.Consume("user-1") {
		t.Error("consume after grant should succeed")
	}
	if c.Consume("user-1") {
		t.Error("approvals are single-use")
	}
}

func TestApprovalCache_Expired(t *testing.T) {
	c := newApprovalCache(time.Minute)

	c.Grant("user-1")
	c.mu.Lock()
	c.approvals["user-1"] = time.Now().Add(-2 * time.Minute)
	c.mu.Unlock()

	if c.Consume("user-1") {
		t.Error("stale approval should not satisfy step-up")
	}
}

func TestApprovalCache_PerActor(t *testing.T) {
	c := newApprovalCache(time.Minute)

	c.Grant("user-1")
	if c.Consume("user-2") {
		t.Error("approval for one actor should not satisfy another")
	}
	if !c.Consume("user-1") {
		t.Error("granted actor should still have their approval")
	}
}

func newTestProvider(t *testing.T) (*WebAuthnProvider, *store.MockStore) {
	t.Helper()
	mock := store.NewMockStore()
	p, err := NewWebAuthnProvider(WebAuthnConfig{
		RPDisplayName: "test",
		BaseURL:       "https://pay.example.com",
	}, mock)
	if err != nil {
		t.Fatalf("NewWebAuthnProvider: %v", err)
	}
	t.Cleanup(p.Close)
	return p, mock
}

func TestWebAuthnProvider_HasRegisteredAuthenticator(t *testing.T) {
	p, mock := newTestProvider(t)
	ctx := context.Background()

	if p.HasRegisteredAuthenticator(ctx, "user-1") {
		t.Error("actor with no authenticators should report false")
	}

	err := mock.SaveAuthenticator(ctx, &store.Authenticator{
		ID:           "auth-1",
		ActorID:      "user-1",
		CredentialID: []byte("cred-1"),
		PublicKey:    []byte("pk"),
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveAuthenticator: %v", err)
	}

	if !p.HasRegisteredAuthenticator(ctx, "user-1") {
		t.Error("actor with an authenticator should report true")
	}
	if p.HasRegisteredAuthenticator(ctx, "user-2") {
		t.Error("other actors should report false")
	}
}

func TestWebAuthnProvider_PerformStepUp_ConsumesApproval(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	if p.PerformStepUp(ctx, "user-1") {
		t.Error("step-up without a completed assertion should fail")
	}

	p.approvals.Grant("user-1")
	if !p.PerformStepUp(ctx, "user-1") {
		t.Error("step-up after a completed assertion should succeed")
	}
	if p.PerformStepUp(ctx, "user-1") {
		t.Error("an approval should only satisfy one step-up")
	}
}

func TestWebAuthnProvider_BeginRegistration(t *testing.T) {
	p, _ := newTestProvider(t)

	options, token, err := p.BeginRegistration(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("BeginRegistration: %v", err)
	}
	if options == nil {
		t.Fatal("expected credential creation options")
	}
	if token == "" {
		t.Fatal("expected a session token")
	}

	session, actorID, ok := p.sessions.Get(token)
	if !ok {
		t.Fatal("session should be stored")
	}
	if actorID != "user-1" {
		t.Errorf("session actor = %q, want %q", actorID, "user-1")
	}
	if session.Challenge == "" {
		t.Error("session should carry a challenge")
	}
}

func TestWebAuthnProvider_FinishRegistration_InvalidSession(t *testing.T) {
	p, _ := newTestProvider(t)

	err := p.FinishRegistration(context.Background(), "user-1", "bogus-token", []byte("{}"))
	if !errors.Is(err, ErrInvalidSession) {
		t.Errorf("err = %v, want ErrInvalidSession", err)
	}
}

func TestWebAuthnProvider_FinishRegistration_ActorMismatch(t *testing.T) {
	p, _ := newTestProvider(t)

	_, token, err := p.BeginRegistration(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("BeginRegistration: %v", err)
	}

	err = p.FinishRegistration(context.Background(), "user-2", token, []byte("{}"))
	if !errors.Is(err, ErrInvalidSession) {
		t.Errorf("err = %v, want ErrInvalidSession", err)
	}
}

func TestWebAuthnProvider_BeginStepUp_NoAuthenticator(t *testing.T) {
	p, _ := newTestProvider(t)

	_, _, err := p.BeginStepUp(context.Background(), "user-1")
	if !errors.Is(err, ErrNoAuthenticator) {
		t.Errorf("err = %v, want ErrNoAuthenticator", err)
	}
}

func TestWebAuthnProvider_FinishStepUp_InvalidSession(t *testing.T) {
	p, _ := newTestProvider(t)

	err := p.FinishStepUp(context.Background(), "user-1", "bogus-token", []byte("{}"))
	if !errors.Is(err, ErrInvalidSession) {
		t.Errorf("err = %v, want ErrInvalidSession", err)
	}
}
