// ABOUTME: WebAuthn authenticator store methods for step-up enrollment state
// ABOUTME: Persists registered credentials and sign counters per actor

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveAuthenticator persists a newly registered authenticator.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) SaveAuthenticator(ctx context.Context, a *Authenticator) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO authenticators (
			id, actor_id, credential_id, public_key,
			attestation_type, transports, sign_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.ActorID, a.CredentialID, a.PublicKey,
		a.AttestationType, a.Transports, a.SignCount, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving authenticator: %w", err)
	}
	return nil
}

// ListAuthenticators returns all authenticators registered by an actor.
func (s *SQLiteStore) ListAuthenticators(ctx context.Context, actorID string) ([]*Authenticator, error) {
	query := `
		SELECT id, actor_id, credential_id, public_key,
		       attestation_type, transports, sign_count, created_at
		FROM authenticators
		WHERE actor_id = ?
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("listing authenticators: %w", err)
	}
	defer rows.Close()

	var auths []*Authenticator
	for rows.Next() {
		var a Authenticator
		if err := rows.Scan(
			&a.ID, &a.ActorID, &a.CredentialID, &a.PublicKey,
			&a.AttestationType, &a.Transports, &a.SignCount, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning authenticator: %w", err)
		}
		auths = append(auths, &a)
	}
	return auths, rows.Err()
}

// UpdateSignCount stores the authenticator's latest signature counter.
func (s *SQLiteStore) UpdateSignCount(ctx context.Context, id string, signCount uint32) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE authenticators SET sign_count = ? WHERE id = ?`,
		signCount, id,
	)
	if err != nil {
		return fmt.Errorf("updating sign count: %w", err)
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

// HasAuthenticator reports whether an actor has any registered authenticator.
func (s *SQLiteStore) HasAuthenticator(ctx context.Context, actorID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM authenticators WHERE actor_id = ?`,
		actorID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("counting authenticators: %w", err)
	}
	return n > 0, nil
}
