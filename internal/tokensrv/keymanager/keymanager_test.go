package keymanager

import (
	"context"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/securetoken/internal/common/uuid"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
)

func newDb(t *testing.T) context.Context {
	t.Helper()
	config.TestInit()
	db.Init()
	ctx := log.Logger.WithContext(context.Background())
	ctx, err := db.ConnCtx(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.DB(ctx).Close(context.Background())
	})
	return ctx
}

func cleanupKey(ctx context.Context, key *SigningKey) {
	if key == nil {
		return
	}
	db.DB(ctx).DeleteSigningKey(ctx, key.PrivateKeyID)
	db.DB(ctx).DeleteSigningKey(ctx, key.PublicKeyID)
}

func TestGetActiveKeyCreatesOnFirstUse(t *testing.T) {
	ctx := newDb(t)
	km := &keyManager{}

	key, err := km.GetActiveKey(ctx)
	require.NoError(t, err)
	defer cleanupKey(ctx, key)

	assert.NotNil(t, key.PrivateKey)
	assert.NotNil(t, key.PublicKey)
	assert.NotEmpty(t, key.Kid)
	assert.True(t, key.Generation > 0)
	assert.False(t, key.IsExpired())

	// cached on second call
	again, err := km.GetActiveKey(ctx)
	require.NoError(t, err)
	assert.Same(t, key, again)
}

func TestRotateKeys(t *testing.T) {
	ctx := newDb(t)
	km := &keyManager{}

	first, err := km.GetActiveKey(ctx)
	require.NoError(t, err)
	defer cleanupKey(ctx, first)

	rotated, err := km.RotateKeys(ctx, false)
	require.NoError(t, err)
	defer cleanupKey(ctx, rotated)

	assert.NotEqual(t, first.Kid, rotated.Kid)
	assert.Equal(t, first.Generation+1, rotated.Generation)

	// rotation audit entries on both new halves
	ops, dberr := db.DB(ctx).ListKeyOperations(ctx, rotated.PrivateKeyID)
	require.NoError(t, dberr)
	require.Len(t, ops, 1)
	assert.Equal(t, string(authcommon.KeyOperationRotate), ops[0].Operation)

	// old pair deactivated by the rotation transaction
	oldPriv, dberr := db.DB(ctx).GetSigningKey(ctx, first.PrivateKeyID)
	require.NoError(t, dberr)
	assert.False(t, oldPriv.IsActive)
}

func TestRotateKeysDeprecateOld(t *testing.T) {
	ctx := newDb(t)
	km := &keyManager{}

	first, err := km.GetActiveKey(ctx)
	require.NoError(t, err)
	defer cleanupKey(ctx, first)

	rotated, err := km.RotateKeys(ctx, true)
	require.NoError(t, err)
	defer cleanupKey(ctx, rotated)

	// deprecate audit entries on both old halves
	for _, keyID := range []uuid.UUID{first.PrivateKeyID, first.PublicKeyID} {
		ops, dberr := db.DB(ctx).ListKeyOperations(ctx, keyID)
		require.NoError(t, dberr)
		require.GreaterOrEqual(t, len(ops), 2)
		assert.Equal(t, string(authcommon.KeyOperationDeprecate), ops[len(ops)-1].Operation)
	}
}

func TestCurrentKey(t *testing.T) {
	ctx := newDb(t)
	km := &keyManager{}

	key, err := km.GetActiveKey(ctx)
	require.NoError(t, err)
	defer cleanupKey(ctx, key)

	pem, gen, err := km.CurrentKey(ctx, authcommon.KeyTypePrivate)
	require.NoError(t, err)
	assert.Equal(t, key.Generation, gen)

	parsed, err := ParsePrivateKeyPEM(pem)
	require.NoError(t, err)
	assert.Equal(t, 0, key.PrivateKey.D.Cmp(parsed.D))

	_, _, err = km.CurrentKey(ctx, authcommon.KeyType("bogus"))
	assert.Error(t, err)
}

func TestGetKeyTypeMismatch(t *testing.T) {
	ctx := newDb(t)
	km := &keyManager{}

	key, err := km.GetActiveKey(ctx)
	require.NoError(t, err)
	defer cleanupKey(ctx, key)

	got, err := km.GetKey(ctx, key.PublicKeyID, authcommon.KeyTypePublic)
	require.NoError(t, err)
	assert.Equal(t, string(authcommon.KeyTypePublic), got.KeyType)

	// existing key under the wrong type is a bad request, not a miss
	_, err = km.GetKey(ctx, key.PublicKeyID, authcommon.KeyTypePrivate)
	require.ErrorIs(t, err, ErrKeyTypeMismatch)
	assert.Equal(t, 400, err.StatusCode())

	_, err = km.GetKey(ctx, uuid.New(), authcommon.KeyTypePublic)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestJWKSContainsActivePublicKey(t *testing.T) {
	ctx := newDb(t)
	km := &keyManager{}

	key, err := km.GetActiveKey(ctx)
	require.NoError(t, err)
	defer cleanupKey(ctx, key)

	jwks, err := km.JWKS(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, jwks.Keys)

	found := false
	for _, jwk := range jwks.Keys {
		if jwk.Kid == key.Kid {
			found = true
			assert.Equal(t, "EC", jwk.Kty)
			assert.Equal(t, "ES256", jwk.Alg)
		}
	}
	assert.True(t, found)
}

func TestDeleteKeyClearsCache(t *testing.T) {
	ctx := newDb(t)
	km := &keyManager{}

	key, err := km.GetActiveKey(ctx)
	require.NoError(t, err)
	defer cleanupKey(ctx, key)

	err = km.DeleteKey(ctx, key.PrivateKeyID)
	require.NoError(t, err)

	km.mu.RLock()
	cached := km.activeKey
	km.mu.RUnlock()
	assert.Nil(t, cached)

	err = km.DeleteKey(ctx, key.PrivateKeyID)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
