package credential_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/credential"
	"zipperdb.dev/store"
)

func newStore(t *testing.T) credential.Store {
	t.Helper()
	backing := store.NewMemory(nil)
	require.NoError(t, backing.Open(context.Background()))
	return credential.NewStore(backing)
}

func TestHashAndVerifyRoundTrip(t *testing.T) {
	hash, err := credential.Hash("correct horse battery staple", credential.DefaultCost)
	require.NoError(t, err)
	assert.NoError(t, credential.Verify(hash, "correct horse battery staple"))
	assert.Error(t, credential.Verify(hash, "wrong password"))
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	_, err := credential.Hash("", credential.DefaultCost)
	assert.ErrorIs(t, err, credential.ErrEmptyPassword)
}

func TestNeedsRehashDetectsCostChange(t *testing.T) {
	hash, err := credential.Hash("hunter22xyz", 4)
	require.NoError(t, err)

	needs, err := credential.NeedsRehash(hash, 4)
	require.NoError(t, err)
	assert.False(t, needs)

	needs, err = credential.NeedsRehash(hash, 10)
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, credential.ValidateUsername("alice_01"))
	assert.ErrorIs(t, credential.ValidateUsername("a"), credential.ErrInvalidUsername)
	assert.ErrorIs(t, credential.ValidateUsername("bad username!"), credential.ErrInvalidUsername)
}

func TestCheckStrength(t *testing.T) {
	assert.ErrorIs(t, credential.CheckStrength("", false), credential.ErrEmptyPassword)
	assert.ErrorIs(t, credential.CheckStrength("short", false), credential.ErrPasswordTooShort)
	assert.NoError(t, credential.CheckStrength("longenoughpassword", false))
	assert.ErrorIs(t, credential.CheckStrength("longenoughpassword", true), credential.ErrWeakPassword)
	assert.NoError(t, credential.CheckStrength("Longenough1!", true))
}

func TestStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	hash, err := credential.Hash("s3cret!pass", credential.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, credential.Credential{Username: "alice", Hash: hash}))

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, hash, got.Hash)
	assert.NoError(t, credential.Verify(got.Hash, "s3cret!pass"))

	require.NoError(t, s.Delete(ctx, "alice"))
	_, err = s.Get(ctx, "alice")
	assert.True(t, errors.Is(err, credential.ErrUserNotFound))
}

func TestStoreGetMissingUser(t *testing.T) {
	_, err := newStore(t).Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, credential.ErrUserNotFound)
}
