// ABOUTME: Tests for WebAuthn authenticator store operations
// ABOUTME: Covers registration persistence, sign count updates, and the HasAuthenticator gate

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticatorStore_SaveAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := &Authenticator{
		ActorID:         "owner-abc",
		CredentialID:    []byte{0x01, 0x02},
		PublicKey:       []byte{0x03, 0x04},
		AttestationType: "none",
		Transports:      `["internal"]`,
		SignCount:       1,
	}
	require.NoError(t, store.SaveAuthenticator(ctx, a))
	assert.NotEmpty(t, a.ID)

	auths, err := store.ListAuthenticators(ctx, "owner-abc")
	require.NoError(t, err)
	require.Len(t, auths, 1)
	assert.Equal(t, []byte{0x01, 0x02}, auths[0].CredentialID)
	assert.Equal(t, uint32(1), auths[0].SignCount)
}

func TestAuthenticatorStore_HasAuthenticator(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	has, err := store.HasAuthenticator(ctx, "owner-abc")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.SaveAuthenticator(ctx, &Authenticator{
		ActorID:      "owner-abc",
		CredentialID: []byte{0x01},
		PublicKey:    []byte{0x02},
	}))

	has, err = store.HasAuthenticator(ctx, "owner-abc")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestAuthenticatorStore_UpdateSignCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := &Authenticator{
		ActorID:      "owner-abc",
		CredentialID: []byte{0x01},
		PublicKey:    []byte{0x02},
		SignCount:    1,
	}
	require.NoError(t, store.SaveAuthenticator(ctx, a))
	require.NoError(t, store.UpdateSignCount(ctx, a.ID, 7))

	auths, err := store.ListAuthenticators(ctx, "owner-abc")
	require.NoError(t, err)
	require.Len(t, auths, 1)
	assert.Equal(t, uint32(7), auths[0].SignCount)
}

func TestAuthenticatorStore_UpdateSignCount_Unknown(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateSignCount(context.Background(), "no-such-id", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}
