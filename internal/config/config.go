// ABOUTME: Configuration loading and parsing for agentpay-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agentpay-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Policy   PolicyConfig   `yaml:"policy"`
	Risk     RiskConfig     `yaml:"risk"`
	Seed     SeedConfig     `yaml:"seed"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// BaseURL is the external URL of the gateway; it determines the
	// WebAuthn relying-party ID and allowed origins.
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds token issuance and validation configuration
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	APIKeyPepper string `yaml:"api_key_pepper"`
	Issuer       string `yaml:"issuer"`
	Audience     string `yaml:"audience"`

	TokenTTL  time.Duration `yaml:"-"`
	ClockSkew time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TokenTTLRaw  string `yaml:"token_ttl"`
	ClockSkewRaw string `yaml:"clock_skew"`
}

// PolicyConfig holds the policy engine endpoint configuration
type PolicyConfig struct {
	URL string `yaml:"url"`

	ConnectTimeout time.Duration `yaml:"-"`
	RequestTimeout time.Duration `yaml:"-"`

	ConnectTimeoutRaw string `yaml:"connect_timeout"`
	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// RiskConfig holds step-up gating configuration
type RiskConfig struct {
	// StepUpThreshold is the amount above which a purchase requires
	// step-up authentication. Zero means the built-in default.
	StepUpThreshold float64        `yaml:"step_up_threshold"`
	WebAuthn        WebAuthnConfig `yaml:"webauthn"`
}

// WebAuthnConfig holds passkey ceremony configuration
type WebAuthnConfig struct {
	RPDisplayName string `yaml:"rp_display_name"`

	ApprovalTTL time.Duration `yaml:"-"`

	ApprovalTTLRaw string `yaml:"approval_ttl"`
}

// SeedConfig holds agent credentials provisioned at startup
type SeedConfig struct {
	Agents []SeedAgent `yaml:"agents"`
}

// SeedAgent describes one agent credential to provision. The API key is
// hashed before storage; it never persists in clear.
type SeedAgent struct {
	AgentID             string   `yaml:"agent_id"`
	OwnerID             string   `yaml:"owner_id"`
	APIKey              string   `yaml:"api_key"`
	AgentType           string   `yaml:"agent_type"`
	Capabilities        []string `yaml:"capabilities"`
	DailySpendLimit     *float64 `yaml:"daily_spend_limit"`
	MonthlySpendLimit   *float64 `yaml:"monthly_spend_limit"`
	PerTransactionLimit *float64 `yaml:"per_transaction_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values that have sensible defaults.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "agentpay-gateway"
	}
	if c.Auth.Audience == "" {
		c.Auth.Audience = "agentpay"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = time.Hour
	}
	if c.Auth.ClockSkew == 0 {
		c.Auth.ClockSkew = 60 * time.Second
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.APIKeyPepper == "" {
		return fmt.Errorf("auth.api_key_pepper is required")
	}
	if c.Policy.URL == "" {
		return fmt.Errorf("policy.url is required")
	}
	if c.Risk.StepUpThreshold < 0 {
		return fmt.Errorf("risk.step_up_threshold must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.Auth.ClockSkewRaw != "" {
		cfg.Auth.ClockSkew, err = time.ParseDuration(cfg.Auth.ClockSkewRaw)
		if err != nil {
			return fmt.Errorf("parsing clock_skew %q: %w", cfg.Auth.ClockSkewRaw, err)
		}
	}

	if cfg.Policy.ConnectTimeoutRaw != "" {
		cfg.Policy.ConnectTimeout, err = time.ParseDuration(cfg.Policy.ConnectTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing connect_timeout %q: %w", cfg.Policy.ConnectTimeoutRaw, err)
		}
	}

	if cfg.Policy.RequestTimeoutRaw != "" {
		cfg.Policy.RequestTimeout, err = time.ParseDuration(cfg.Policy.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Policy.RequestTimeoutRaw, err)
		}
	}

	if cfg.Risk.WebAuthn.ApprovalTTLRaw != "" {
		cfg.Risk.WebAuthn.ApprovalTTL, err = time.ParseDuration(cfg.Risk.WebAuthn.ApprovalTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing approval_ttl %q: %w", cfg.Risk.WebAuthn.ApprovalTTLRaw, err)
		}
	}

	return nil
}
