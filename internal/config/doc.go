// Package config handles configuration loading for agentpay-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${AGENTPAY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "1h"
//	  clock_skew: "60s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  base_url: "https://pay.example.com"  # WebAuthn relying party
//
// Database:
//
//	database:
//	  path: "/var/lib/agentpay/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${AGENTPAY_JWT_SECRET}"      # >= 32 bytes, required
//	  api_key_pepper: "${AGENTPAY_API_PEPPER}"  # required
//	  issuer: "agentpay-gateway"
//	  audience: "agentpay"
//	  token_ttl: "1h"
//	  clock_skew: "60s"
//
// Policy engine:
//
//	policy:
//	  url: "http://opa:8181"
//	  connect_timeout: "2s"
//	  request_timeout: "3s"
//
// Risk gating:
//
//	risk:
//	  step_up_threshold: 1000
//	  webauthn:
//	    rp_display_name: "agentpay step-up"
//	    approval_ttl: "2m"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Database path presence
//   - JWT secret and API key pepper presence
//   - Policy engine URL presence
//   - Duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/agentpay/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
