// Package auth provides agent authentication for agentpay-gateway.
//
// # Authentication Flow
//
// Agents exchange an API key for a short-lived session token:
//
//   - The trimmed API key is hashed with peppered HMAC-SHA256 and looked
//     up against active credentials. Unknown and malformed keys fail
//     identically so the endpoint is not an oracle.
//   - On a hit, an HS256 JWT is minted embedding the agent's identity,
//     capability set, spend limits, and access level, with issuer,
//     audience, nbf, iat, exp (default 1 hour TTL), and a unique jti.
//
// Subsequent requests carry the token as a bearer credential. Validate
// enforces signature, issuer, audience, and expiry with a small clock
// skew allowance (default 60 seconds), and rejects tokens missing
// required identity claims instead of defaulting silently.
//
// # Key Management
//
// Both the JWT signing secret and the API key pepper must decode
// (base64, else UTF-8) to at least 32 bytes and must differ from the
// documented placeholder. NewIssuer fails otherwise; the caller treats
// this as fatal so a misconfigured server never accepts traffic.
//
// # Context Plumbing
//
// The resolved AgentContext travels through request handling via
// WithAgent/FromContext, populated by the Middleware HTTP wrapper.
package auth
