// ABOUTME: WebAuthn ceremony provider for step-up authentication
// ABOUTME: Implements registration and assertion flows using go-webauthn library

package risk

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/2389/agentpay-gateway/internal/store"
)

const (
	sessionTTL         = 5 * time.Minute
	defaultApprovalTTL = 2 * time.Minute
)

var (
	// ErrInvalidSession is returned when a ceremony session token is
	// unknown, expired, or bound to a different actor.
	ErrInvalidSession = errors.New("invalid or expired ceremony session")

	// ErrNoAuthenticator is returned when an actor with no registered
	// authenticators starts an assertion ceremony.
	ErrNoAuthenticator = errors.New("no registered authenticator")
)

// WebAuthnConfig configures the ceremony provider's relying party.
type WebAuthnConfig struct {
	RPDisplayName string
	// BaseURL determines the relying-party ID and allowed origins.
	// Empty falls back to localhost development defaults.
	BaseURL string
	// ApprovalTTL bounds how long a completed assertion satisfies a
	// subsequent step-up check. Zero means defaultApprovalTTL.
	ApprovalTTL time.Duration
}

// ceremonyUser wraps an actor and their registered authenticators to
// implement the webauthn.User interface.
type ceremonyUser struct {
	actorID string
	auths   []*store.Authenticator
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.actorID)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.actorID
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.actorID
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.auths))
	for i, a := range u.auths {
		creds[i] = webauthn.Credential{
			ID:              a.CredentialID,
			PublicKey:       a.PublicKey,
			AttestationType: a.AttestationType,
			Authenticator: webauthn.Authenticator{
				SignCount: a.SignCount,
			},
		}
		if a.Transports != "" {
			var transports []protocol.AuthenticatorTransport
			_ = json.Unmarshal([]byte(a.Transports), &transports)
			creds[i].Transport = transports
		}
	}
	return creds
}

// ceremonySession holds in-progress WebAuthn session data.
type ceremonySession struct {
	session   *webauthn.SessionData
	actorID   string
	expiresAt time.Time
}

// sessionStore is an in-memory store for in-flight WebAuthn challenges.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*ceremonySession // keyed by session token
	cancel   context.CancelFunc
}

func newSessionStore() *sessionStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &sessionStore{
		sessions: make(map[string]*ceremonySession),
		cancel:   cancel,
	}
	go s.cleanupLoop(ctx)
	return s
}

// Close stops the cleanup goroutine.
func (s *sessionStore) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *sessionStore) Set(token string, session *webauthn.SessionData, actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = &ceremonySession{
		session:   session,
		actorID:   actorID,
		expiresAt: time.Now().Add(sessionTTL),
	}
}

func (s *sessionStore) Get(token string) (*webauthn.SessionData, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.sessions[token]
	if !ok || time.Now().After(data.expiresAt) {
		return nil, "", false
	}
	return data.session, data.actorID, true
}

func (s *sessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

func (s *sessionStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for k, v := range s.sessions {
				if now.After(v.expiresAt) {
					delete(s.sessions, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// approvalCache records completed assertions so a purchase decision can
// consume them. An approval is single-use.
type approvalCache struct {
	mu        sync.Mutex
	approvals map[string]time.Time // actor ID -> assertion completion time
	ttl       time.Duration
}

func newApprovalCache(ttl time.Duration) *approvalCache {
	if ttl <= 0 {
		ttl = defaultApprovalTTL
	}
	return &approvalCache{
		approvals: make(map[string]time.Time),
		ttl:       ttl,
	}
}

func (c *approvalCache) Grant(actorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approvals[actorID] = time.Now()
}

// Consume removes and returns whether a fresh approval exists for the actor.
func (c *approvalCache) Consume(actorID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	granted, ok := c.approvals[actorID]
	if !ok {
		return false
	}
	delete(c.approvals, actorID)
	return time.Since(granted) <= c.ttl
}

// deriveRelyingParty extracts rpID and rpOrigins from a base URL.
// Returns localhost defaults if the URL is empty or invalid.
func deriveRelyingParty(baseURL string) (rpID string, rpOrigins []string) {
	rpID = "localhost"
	rpOrigins = []string{"http://localhost", "https://localhost"}

	if baseURL == "" {
		return rpID, rpOrigins
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return rpID, rpOrigins
	}

	host := parsed.Hostname()
	if host == "" {
		return rpID, rpOrigins
	}

	rpID = host
	rpOrigins = []string{baseURL}
	if parsed.Scheme == "https" {
		rpOrigins = append(rpOrigins, "http://"+parsed.Host)
	} else {
		rpOrigins = append(rpOrigins, "https://"+parsed.Host)
	}
	return rpID, rpOrigins
}

// WebAuthnProvider implements CeremonyProvider using passkey ceremonies.
// Assertions are performed out of band via Begin/FinishStepUp; a completed
// assertion grants a short-lived approval that PerformStepUp consumes.
type WebAuthnProvider struct {
	webauthn  *webauthn.WebAuthn
	store     store.AuthenticatorStore
	sessions  *sessionStore
	approvals *approvalCache
	logger    *slog.Logger
}

// NewWebAuthnProvider creates a ceremony provider backed by the given
// authenticator store.
func NewWebAuthnProvider(cfg WebAuthnConfig, auths store.AuthenticatorStore) (*WebAuthnProvider, error) {
	rpID, rpOrigins := deriveRelyingParty(cfg.BaseURL)

	displayName := cfg.RPDisplayName
	if displayName == "" {
		displayName = "agentpay step-up"
	}

	w, err := webauthn.New(&webauthn.Config{
		RPDisplayName: displayName,
		RPID:          rpID,
		RPOrigins:     rpOrigins,
	})
	if err != nil {
		return nil, err
	}

	return &WebAuthnProvider{
		webauthn:  w,
		store:     auths,
		sessions:  newSessionStore(),
		approvals: newApprovalCache(cfg.ApprovalTTL),
		logger:    slog.Default().With("component", "risk.webauthn"),
	}, nil
}

// Close releases the session store's background resources.
func (p *WebAuthnProvider) Close() {
	p.sessions.Close()
}

// HasRegisteredAuthenticator reports whether the actor has at least one
// registered passkey.
func (p *WebAuthnProvider) HasRegisteredAuthenticator(ctx context.Context, actorID string) bool {
	ok, err := p.store.HasAuthenticator(ctx, actorID)
	if err != nil {
		p.logger.Error("failed to check authenticators", "actor_id", actorID, "error", err)
		return false
	}
	return ok
}

// PerformStepUp consumes a fresh assertion approval for the actor.
// Returns false when no assertion completed within the approval window.
func (p *WebAuthnProvider) PerformStepUp(ctx context.Context, actorID string) bool {
	return p.approvals.Consume(actorID)
}

// BeginRegistration starts a passkey registration ceremony for an actor.
// Returns the credential creation options and a session token the caller
// must present to FinishRegistration.
func (p *WebAuthnProvider) BeginRegistration(ctx context.Context, actorID string) (*protocol.CredentialCreation, string, error) {
	existing, err := p.store.ListAuthenticators(ctx, actorID)
	if err != nil {
		p.logger.Error("failed to list authenticators", "actor_id", actorID, "error", err)
		existing = nil
	}

	user := &ceremonyUser{actorID: actorID, auths: existing}
	options, session, err := p.webauthn.BeginRegistration(user)
	if err != nil {
		return nil, "", err
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, "", err
	}
	p.sessions.Set(token, session, actorID)
	return options, token, nil
}

// FinishRegistration verifies the attestation response and persists the
// new authenticator.
func (p *WebAuthnProvider) FinishRegistration(ctx context.Context, actorID, sessionToken string, response []byte) error {
	session, sessionActorID, ok := p.sessions.Get(sessionToken)
	if !ok || sessionActorID != actorID {
		return ErrInvalidSession
	}
	p.sessions.Delete(sessionToken)

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return err
	}

	existing, _ := p.store.ListAuthenticators(ctx, actorID)
	user := &ceremonyUser{actorID: actorID, auths: existing}

	credential, err := p.webauthn.CreateCredential(user, *session, parsed)
	if err != nil {
		return err
	}

	transportsJSON, err := json.Marshal(credential.Transport)
	if err != nil {
		return err
	}

	auth := &store.Authenticator{
		ID:              uuid.NewString(),
		ActorID:         actorID,
		CredentialID:    credential.ID,
		PublicKey:       credential.PublicKey,
		AttestationType: credential.AttestationType,
		Transports:      string(transportsJSON),
		SignCount:       credential.Authenticator.SignCount,
		CreatedAt:       time.Now(),
	}
	if err := p.store.SaveAuthenticator(ctx, auth); err != nil {
		return err
	}

	p.logger.Info("authenticator registered", "actor_id", actorID, "authenticator_id", auth.ID)
	return nil
}

// BeginStepUp starts an assertion ceremony for an actor with registered
// authenticators.
func (p *WebAuthnProvider) BeginStepUp(ctx context.Context, actorID string) (*protocol.CredentialAssertion, string, error) {
	auths, err := p.store.ListAuthenticators(ctx, actorID)
	if err != nil {
		return nil, "", err
	}
	if len(auths) == 0 {
		return nil, "", ErrNoAuthenticator
	}

	user := &ceremonyUser{actorID: actorID, auths: auths}
	options, session, err := p.webauthn.BeginLogin(user)
	if err != nil {
		return nil, "", err
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, "", err
	}
	p.sessions.Set(token, session, actorID)
	return options, token, nil
}

// FinishStepUp verifies the assertion response, updates the sign count,
// and grants a short-lived approval for the actor.
func (p *WebAuthnProvider) FinishStepUp(ctx context.Context, actorID, sessionToken string, response []byte) error {
	session, sessionActorID, ok := p.sessions.Get(sessionToken)
	if !ok || sessionActorID != actorID {
		return ErrInvalidSession
	}
	p.sessions.Delete(sessionToken)

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return err
	}

	auths, err := p.store.ListAuthenticators(ctx, actorID)
	if err != nil {
		return err
	}
	user := &ceremonyUser{actorID: actorID, auths: auths}

	credential, err := p.webauthn.ValidateLogin(user, *session, parsed)
	if err != nil {
		return err
	}

	for _, a := range auths {
		if bytes.Equal(a.CredentialID, credential.ID) {
			if err := p.store.UpdateSignCount(ctx, a.ID, credential.Authenticator.SignCount); err != nil {
				p.logger.Warn("failed to update sign count", "authenticator_id", a.ID, "error", err)
			}
			break
		}
	}

	p.approvals.Grant(actorID)
	p.logger.Info("step-up assertion completed", "actor_id", actorID)
	return nil
}

// generateSessionToken generates a cryptographically secure random token.
func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
