// ABOUTME: Agent credential store methods for the SQLite backend
// ABOUTME: Lookup by peppered API key hash, save, list, and last-used tracking

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// capabilitiesSeparator joins the capability set into a single column.
const capabilitiesSeparator = ","

func joinCapabilities(caps []string) string {
	return strings.Join(caps, capabilitiesSeparator)
}

func splitCapabilities(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, capabilitiesSeparator)
	caps := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			caps = append(caps, v)
		}
	}
	return caps
}

// FindActiveByAPIKeyHash returns the active credential matching the hash.
func (s *SQLiteStore) FindActiveByAPIKeyHash(ctx context.Context, hash string) (*AgentCredential, error) {
	query := `
		SELECT agent_id, owner_id, api_key_hash, agent_type, is_active,
		       created_at, last_used_at,
		       daily_spend_limit, monthly_spend_limit, per_transaction_limit,
		       capabilities
		FROM agent_credentials
		WHERE api_key_hash = ? AND is_active = 1
	`
	return s.scanCredential(s.db.QueryRowContext(ctx, query, hash))
}

// GetAgent returns the credential for the given agent ID.
func (s *SQLiteStore) GetAgent(ctx context.Context, agentID string) (*AgentCredential, error) {
	query := `
		SELECT agent_id, owner_id, api_key_hash, agent_type, is_active,
		       created_at, last_used_at,
		       daily_spend_limit, monthly_spend_limit, per_transaction_limit,
		       capabilities
		FROM agent_credentials
		WHERE agent_id = ?
	`
	return s.scanCredential(s.db.QueryRowContext(ctx, query, agentID))
}

func (s *SQLiteStore) scanCredential(row *sql.Row) (*AgentCredential, error) {
	var c AgentCredential
	var active int
	var lastUsed sql.NullTime
	var caps string
	err := row.Scan(
		&c.AgentID, &c.OwnerID, &c.APIKeyHash, &c.AgentType, &active,
		&c.CreatedAt, &lastUsed,
		&c.DailySpendLimit, &c.MonthlySpendLimit, &c.PerTransactionLimit,
		&caps,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning credential: %w", err)
	}
	c.Active = active != 0
	if lastUsed.Valid {
		t := lastUsed.Time
		c.LastUsedAt = &t
	}
	c.Capabilities = splitCapabilities(caps)
	return &c, nil
}

// SaveAgent inserts or updates an agent credential.
func (s *SQLiteStore) SaveAgent(ctx context.Context, cred *AgentCredential) error {
	if cred.AgentID == "" {
		return fmt.Errorf("agent_id required")
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO agent_credentials (
			agent_id, owner_id, api_key_hash, agent_type, is_active,
			created_at, last_used_at,
			daily_spend_limit, monthly_spend_limit, per_transaction_limit,
			capabilities
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			owner_id = excluded.owner_id,
			api_key_hash = excluded.api_key_hash,
			agent_type = excluded.agent_type,
			is_active = excluded.is_active,
			last_used_at = excluded.last_used_at,
			daily_spend_limit = excluded.daily_spend_limit,
			monthly_spend_limit = excluded.monthly_spend_limit,
			per_transaction_limit = excluded.per_transaction_limit,
			capabilities = excluded.capabilities
	`

	active := 0
	if cred.Active {
		active = 1
	}
	var lastUsed any
	if cred.LastUsedAt != nil {
		lastUsed = *cred.LastUsedAt
	}

	_, err := s.db.ExecContext(ctx, query,
		cred.AgentID, cred.OwnerID, cred.APIKeyHash, cred.AgentType, active,
		cred.CreatedAt, lastUsed,
		cred.DailySpendLimit, cred.MonthlySpendLimit, cred.PerTransactionLimit,
		joinCapabilities(cred.Capabilities),
	)
	if err != nil {
		return fmt.Errorf("saving agent credential: %w", err)
	}
	return nil
}

// ListAgents returns all agent credentials ordered by creation time.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*AgentCredential, error) {
	query := `
		SELECT agent_id, owner_id, api_key_hash, agent_type, is_active,
		       created_at, last_used_at,
		       daily_spend_limit, monthly_spend_limit, per_transaction_limit,
		       capabilities
		FROM agent_credentials
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var creds []*AgentCredential
	for rows.Next() {
		var c AgentCredential
		var active int
		var lastUsed sql.NullTime
		var caps string
		if err := rows.Scan(
			&c.AgentID, &c.OwnerID, &c.APIKeyHash, &c.AgentType, &active,
			&c.CreatedAt, &lastUsed,
			&c.DailySpendLimit, &c.MonthlySpendLimit, &c.PerTransactionLimit,
			&caps,
		); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		c.Active = active != 0
		if lastUsed.Valid {
			t := lastUsed.Time
			c.LastUsedAt = &t
		}
		c.Capabilities = splitCapabilities(caps)
		creds = append(creds, &c)
	}
	return creds, rows.Err()
}

// TouchLastUsed records a successful authentication timestamp for the agent.
func (s *SQLiteStore) TouchLastUsed(ctx context.Context, agentID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agent_credentials SET last_used_at = ? WHERE agent_id = ?`,
		at, agentID,
	)
	if err != nil {
		return fmt.Errorf("updating last_used_at: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
