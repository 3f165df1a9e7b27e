// ABOUTME: Token issuer exchanging agent API keys for signed session tokens
// ABOUTME: HMAC-SHA256 peppered key lookup, HS256 JWT minting and validation

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/2389/agentpay-gateway/internal/store"
)

// Authentication errors. Failures are deliberately uniform so callers
// cannot distinguish an unknown key from a malformed one.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrMissingClaim         = errors.New("missing required claim")
)

// minSecretBytes is the minimum decoded length for signing and pepper secrets.
const minSecretBytes = 32 // 256-bit

// placeholderSecret is the documented default that must never reach production.
const placeholderSecret = "default-secret-key-change-in-production"

// defaultAccessLevel is embedded in every issued token.
const defaultAccessLevel = "production"

// IssuerConfig holds the settings required to construct an Issuer.
type IssuerConfig struct {
	JWTSecret        string // base64 or UTF-8, >= 32 bytes decoded
	APIKeyHMACSecret string // base64 or UTF-8, >= 32 bytes decoded
	Issuer           string
	Audience         string
	TokenTTL         time.Duration // defaults to 1 hour
	ClockSkew        time.Duration // defaults to 60 seconds
}

// Issuer authenticates agent API keys and mints/validates session tokens.
type Issuer struct {
	signingKey  []byte
	apiKeyKey   []byte
	issuer      string
	audience    string
	ttl         time.Duration
	skew        time.Duration
	credentials store.CredentialStore
	logger      *slog.Logger
	now         func() time.Time
}

// AgentClaims is the strongly-typed claim set carried by session tokens.
// Tokens missing required fields are rejected at validation time rather
// than defaulting silently.
type AgentClaims struct {
	jwt.RegisteredClaims
	AgentID             string   `json:"agent_id"`
	OwnerID             string   `json:"owner_id"`
	AgentType           string   `json:"agent_type"`
	Capabilities        string   `json:"capabilities"` // comma-delimited set
	DailySpendLimit     *float64 `json:"daily_spend_limit,omitempty"`
	MonthlySpendLimit   *float64 `json:"monthly_spend_limit,omitempty"`
	PerTransactionLimit *float64 `json:"per_transaction_limit,omitempty"`
	AccessLevel         string   `json:"access_level"`
}

// decodeSecret interprets a secret as standard base64, falling back to
// raw UTF-8 bytes when it doesn't decode.
func decodeSecret(value string) []byte {
	if value == "" {
		return nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded
	}
	return []byte(value)
}

// NewIssuer validates the configured secrets and constructs an Issuer.
// Misconfiguration is a startup-time failure, not a per-request error:
// the caller must treat a returned error as fatal.
func NewIssuer(cfg IssuerConfig, credentials store.CredentialStore) (*Issuer, error) {
	signingKey := decodeSecret(cfg.JWTSecret)
	if len(signingKey) < minSecretBytes || cfg.JWTSecret == placeholderSecret {
		return nil, fmt.Errorf("invalid jwt_secret: must be base64 or utf-8 with >= %d bytes and not the documented default", minSecretBytes)
	}

	apiKeyKey := decodeSecret(cfg.APIKeyHMACSecret)
	if len(apiKeyKey) < minSecretBytes || cfg.APIKeyHMACSecret == placeholderSecret {
		return nil, fmt.Errorf("invalid api_key_hmac_secret: must be base64 or utf-8 with >= %d bytes and not the documented default", minSecretBytes)
	}

	if strings.TrimSpace(cfg.Issuer) == "" || strings.TrimSpace(cfg.Audience) == "" {
		return nil, fmt.Errorf("jwt issuer and audience must be configured")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = 60 * time.Second
	}

	return &Issuer{
		signingKey:  signingKey,
		apiKeyKey:   apiKeyKey,
		issuer:      cfg.Issuer,
		audience:    cfg.Audience,
		ttl:         ttl,
		skew:        skew,
		credentials: credentials,
		logger:      slog.Default().With("component", "auth"),
		now:         time.Now,
	}, nil
}

// TokenTTL returns the configured token lifetime.
func (i *Issuer) TokenTTL() time.Duration {
	return i.ttl
}

// HashAPIKey computes the deterministic peppered HMAC-SHA256 hex hash of
// an API key. The same function is used for seeding and lookup.
func (i *Issuer) HashAPIKey(apiKey string) string {
	mac := hmac.New(sha256.New, i.apiKeyKey)
	mac.Write([]byte(apiKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate exchanges an agent API key for a signed session token.
// The key is trimmed, hashed, and looked up against active credentials;
// on success the credential's last-used timestamp is updated and a token
// embedding the agent claims is minted.
func (i *Issuer) Authenticate(ctx context.Context, apiKey string) (string, error) {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return "", ErrAuthenticationFailed
	}

	hash := i.HashAPIKey(trimmed)
	cred, err := i.credentials.FindActiveByAPIKeyHash(ctx, hash)
	if err != nil {
		// Unknown and malformed keys fail identically
		i.logger.Warn("agent authentication failed: API key not recognized")
		return "", ErrAuthenticationFailed
	}

	if err := i.credentials.TouchLastUsed(ctx, cred.AgentID, i.now().UTC()); err != nil {
		i.logger.Warn("failed to update last-used timestamp", "agent_id", cred.AgentID, "error", err)
	}

	token, err := i.mintToken(cred)
	if err != nil {
		return "", fmt.Errorf("minting token: %w", err)
	}

	i.logger.Info("issued session token", "agent_id", cred.AgentID)
	return token, nil
}

func (i *Issuer) mintToken(cred *store.AgentCredential) (string, error) {
	now := i.now()
	claims := AgentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   cred.AgentID,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		AgentID:             cred.AgentID,
		OwnerID:             cred.OwnerID,
		AgentType:           cred.AgentType,
		Capabilities:        strings.Join(cred.Capabilities, ","),
		DailySpendLimit:     cred.DailySpendLimit,
		MonthlySpendLimit:   cred.MonthlySpendLimit,
		PerTransactionLimit: cred.PerTransactionLimit,
		AccessLevel:         defaultAccessLevel,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.signingKey)
}

// Validate verifies a session token and reconstructs the AgentContext.
// Signature, issuer, audience, and expiry (with clock skew leeway) are
// all enforced. The underlying cryptographic error is logged by category
// only and never returned to the caller.
func (i *Issuer) Validate(tokenString string) (*AgentContext, error) {
	claims := &AgentClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return i.signingKey, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithLeeway(i.skew),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil {
		i.logger.Warn("token validation failed", "category", validationCategory(err))
		return nil, ErrAuthenticationFailed
	}
	if !token.Valid {
		return nil, ErrAuthenticationFailed
	}

	if claims.AgentID == "" || claims.OwnerID == "" {
		i.logger.Warn("token validation failed", "category", "missing_claim")
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, ErrMissingClaim)
	}

	return &AgentContext{
		AgentID:             claims.AgentID,
		OwnerID:             claims.OwnerID,
		AgentType:           claims.AgentType,
		Capabilities:        splitCapabilities(claims.Capabilities),
		DailySpendLimit:     claims.DailySpendLimit,
		MonthlySpendLimit:   claims.MonthlySpendLimit,
		PerTransactionLimit: claims.PerTransactionLimit,
		AccessLevel:         claims.AccessLevel,
		Active:              true,
	}, nil
}

// splitCapabilities reverses the comma-delimited claim encoding.
func splitCapabilities(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	caps := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			caps = append(caps, v)
		}
	}
	return caps
}

// validationCategory maps a jwt parse error to a coarse category for logging.
func validationCategory(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not_yet_valid"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "audience"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}
