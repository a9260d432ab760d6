package token

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/securetoken/internal/common/uuid"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/keymanager"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/signer"
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

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	kid, apperr := keymanager.CalculateKid(&priv.PublicKey)
	require.NoError(t, apperr)

	s := signer.NewSignerFromKey(&keymanager.SigningKey{
		PrivateKey: priv,
		PublicKey:  &priv.PublicKey,
		Kid:        kid,
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	return NewIssuerWithSigner(s, "http://local.securetoken.dev:8678")
}

func newTestUser(t *testing.T, ctx context.Context, roles ...string) *models.User {
	t.Helper()
	user := &models.User{
		UserID:       fmt.Sprintf("user-%s", uuid.New().String()),
		Username:     fmt.Sprintf("alice-%s", uuid.New().String()[:8]),
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		Roles:        roles,
	}
	require.NoError(t, db.DB(ctx).CreateUser(ctx, user))
	t.Cleanup(func() {
		db.DB(ctx).DeleteUser(ctx, user.UserID)
	})
	return user
}

func TestNewJTI(t *testing.T) {
	a, err := NewJTI()
	require.NoError(t, err)
	b, err := NewJTI()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestGenerateAccessToken(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "read", "write")

	signed, record, apperr := i.GenerateAccessToken(ctx, "client-1", user.UserID, []string{"read", "write"})
	require.NoError(t, apperr)
	require.NotNil(t, record)
	t.Cleanup(func() {
		db.DB(ctx).DeleteAccessToken(ctx, record.JTI)
	})

	assert.NotEmpty(t, signed)
	assert.Equal(t, user.UserID, record.UserID)
	assert.Equal(t, "client-1", record.ClientID)
	assert.ElementsMatch(t, []string{"read", "write"}, authcommon.SplitScopes(record.Scopes))
	assert.True(t, record.ExpiresAt.After(time.Now()))

	got, apperr := i.GetAccessToken(ctx, signed)
	require.NoError(t, apperr)
	assert.Equal(t, record.JTI, got.JTI)
	assert.Equal(t, record.Scopes, got.Scopes)
}

func TestGenerateAccessTokenStoresFullRoleSet(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "openid", "admin")

	// The request names a subset; the issued token carries all roles.
	_, record, apperr := i.GenerateAccessToken(ctx, "c1", user.UserID, []string{"openid"})
	require.NoError(t, apperr)
	t.Cleanup(func() {
		db.DB(ctx).DeleteAccessToken(ctx, record.JTI)
	})

	assert.ElementsMatch(t, []string{"openid", "admin"}, authcommon.SplitScopes(record.Scopes))
	validity := config.Config().Auth.GetAccessTokenValidityOrDefault()
	assert.WithinDuration(t, time.Now().Add(validity), record.ExpiresAt, time.Minute)
}

func TestGenerateAccessTokenNotEntitled(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "profile")

	_, _, apperr := i.GenerateAccessToken(ctx, "c1", user.UserID, []string{"openid"})
	assert.ErrorIs(t, apperr, ErrUnauthorized)

	// unknown users are not entitled to anything
	_, _, apperr = i.GenerateAccessToken(ctx, "c1", "user-"+uuid.New().String(), []string{"openid"})
	assert.ErrorIs(t, apperr, ErrUnauthorized)
}

func TestGenerateAccessTokenRejectsEmptyInputs(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)

	_, _, apperr := i.GenerateAccessToken(ctx, "", "user-1", nil)
	assert.ErrorIs(t, apperr, ErrBadRequest)

	_, _, apperr = i.GenerateAccessToken(ctx, "client-1", "", nil)
	assert.ErrorIs(t, apperr, ErrBadRequest)
}

func TestGetAccessTokenByBareJTI(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "read")

	_, record, apperr := i.GenerateAccessToken(ctx, "client-1", user.UserID, []string{"read"})
	require.NoError(t, apperr)
	t.Cleanup(func() {
		db.DB(ctx).DeleteAccessToken(ctx, record.JTI)
	})

	got, apperr := i.GetAccessToken(ctx, record.JTI)
	require.NoError(t, apperr)
	assert.Equal(t, record.JTI, got.JTI)
}

func TestGetAccessTokenNotFound(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)

	_, apperr := i.GetAccessToken(ctx, "no-such-jti")
	assert.ErrorIs(t, apperr, ErrTokenNotFound)
}

func TestGetAccessTokenExpired(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)

	stale := &models.AccessToken{
		JTI:       "stale-" + uuid.New().String(),
		UserID:    "user-3",
		ClientID:  "client-1",
		Scopes:    "read",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.DB(ctx).CreateAccessToken(ctx, stale))
	t.Cleanup(func() {
		db.DB(ctx).DeleteAccessToken(ctx, stale.JTI)
	})

	_, apperr := i.GetAccessToken(ctx, stale.JTI)
	assert.ErrorIs(t, apperr, ErrTokenExpired)
}

func TestGetAccessTokenReapsSupersededTokens(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "read")

	signed, record, apperr := i.GenerateAccessToken(ctx, "client-1", user.UserID, []string{"read"})
	require.NoError(t, apperr)
	t.Cleanup(func() {
		db.DB(ctx).DeleteAccessToken(ctx, record.JTI)
	})

	// still valid, but expires before the resolved token
	earlier := &models.AccessToken{
		JTI:       "earlier-" + uuid.New().String(),
		UserID:    user.UserID,
		ClientID:  "client-1",
		Scopes:    "read",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.DB(ctx).CreateAccessToken(ctx, earlier))

	other := &models.AccessToken{
		JTI:       "other-" + uuid.New().String(),
		UserID:    "user-" + uuid.New().String(),
		ClientID:  "client-1",
		Scopes:    "read",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.DB(ctx).CreateAccessToken(ctx, other))
	t.Cleanup(func() {
		db.DB(ctx).DeleteAccessToken(ctx, other.JTI)
	})

	_, apperr = i.GetAccessToken(ctx, signed)
	require.NoError(t, apperr)

	// earlier-expiry token of the same user is gone
	_, apperr = db.DB(ctx).GetAccessToken(ctx, earlier.JTI)
	assert.Error(t, apperr)

	// other users' tokens and the resolved token survive
	_, apperr = db.DB(ctx).GetAccessToken(ctx, other.JTI)
	require.NoError(t, apperr)
	got, apperr := db.DB(ctx).GetAccessToken(ctx, record.JTI)
	require.NoError(t, apperr)
	assert.Equal(t, record.JTI, got.JTI)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "read", "write")

	signed, record, apperr := i.GenerateRefreshToken(ctx, "client-1", user.UserID, []string{"read", "write"})
	require.NoError(t, apperr)
	assert.ElementsMatch(t, []string{"read", "write"}, authcommon.SplitScopes(record.Scopes))

	got, apperr := i.GetRefreshToken(ctx, signed)
	require.NoError(t, apperr)
	assert.Equal(t, record.JTI, got.JTI)

	require.NoError(t, i.UpdateRefreshTokenScopes(ctx, record.JTI, []string{"read"}))

	updated, apperr := db.DB(ctx).GetRefreshToken(ctx, record.JTI)
	require.NoError(t, apperr)
	assert.Equal(t, "read", updated.Scopes)
}

func TestGetRefreshTokenReapsSupersededTokens(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "read")

	earlier := &models.RefreshToken{
		JTI:       "earlier-" + uuid.New().String(),
		UserID:    user.UserID,
		ClientID:  "client-1",
		Scopes:    "read",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.DB(ctx).CreateRefreshToken(ctx, earlier))

	other := &models.RefreshToken{
		JTI:       "other-" + uuid.New().String(),
		UserID:    "user-" + uuid.New().String(),
		ClientID:  "client-1",
		Scopes:    "read",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.DB(ctx).CreateRefreshToken(ctx, other))

	signed, record, apperr := i.GenerateRefreshToken(ctx, "client-1", user.UserID, []string{"read"})
	require.NoError(t, apperr)

	got, apperr := i.GetRefreshToken(ctx, signed)
	require.NoError(t, apperr)
	assert.Equal(t, record.JTI, got.JTI)

	// the superseded refresh token of the same user is gone
	_, apperr = db.DB(ctx).GetRefreshToken(ctx, earlier.JTI)
	assert.Error(t, apperr)

	// other users' refresh tokens and the resolved token survive
	_, apperr = db.DB(ctx).GetRefreshToken(ctx, other.JTI)
	require.NoError(t, apperr)
	_, apperr = db.DB(ctx).GetRefreshToken(ctx, record.JTI)
	require.NoError(t, apperr)
}

func TestGetRefreshTokenRejectsBareJTI(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "read")

	_, record, apperr := i.GenerateRefreshToken(ctx, "client-1", user.UserID, []string{"read"})
	require.NoError(t, apperr)

	_, apperr = i.GetRefreshToken(ctx, record.JTI)
	assert.ErrorIs(t, apperr, ErrUnauthorized)
}

func TestUpdateRefreshTokenScopesNotFound(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)

	apperr := i.UpdateRefreshTokenScopes(ctx, "no-such-jti", []string{"read"})
	assert.ErrorIs(t, apperr, ErrTokenNotFound)
}

func TestGenerateIDToken(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "openid")

	authTime := time.Now().Add(-5 * time.Minute)
	signed, record, apperr := i.GenerateIDToken(ctx, "client-1", user.UserID, []string{"openid"}, "nonce-123", &authTime)
	require.NoError(t, apperr)
	assert.NotEmpty(t, signed)
	assert.True(t, record.Nonce.Valid)
	assert.Equal(t, "nonce-123", record.Nonce.String)
	assert.True(t, record.AuthTime.Valid)

	claims := &IDTokenClaims{}
	_, apperr = i.signer.Verify(signed, claims)
	require.NoError(t, apperr)
	assert.Equal(t, "nonce-123", claims.Nonce)
	assert.Equal(t, user.UserID, claims.Subject)
	require.NotNil(t, claims.AuthTime)
}

func TestGenerateIDTokenNotEntitled(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "profile")

	_, _, apperr := i.GenerateIDToken(ctx, "client-1", user.UserID, []string{"openid"}, "", nil)
	assert.ErrorIs(t, apperr, ErrUnauthorized)
}

func TestGenerateTokens(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "read")

	set, apperr := i.GenerateTokens(ctx, "client-1", user.UserID, []string{"read"}, "nonce-xyz", nil)
	require.NoError(t, apperr)
	assert.NotEmpty(t, set.AccessToken)
	assert.NotEmpty(t, set.RefreshToken)
	assert.NotEmpty(t, set.IDToken)
	assert.Equal(t, "Bearer", set.TokenType)
	assert.Equal(t, "read", set.Scope)
	assert.Greater(t, set.ExpiresIn, int64(0))
}

func TestGenerateAccessRefreshTokens(t *testing.T) {
	ctx := newDb(t)
	i := newTestIssuer(t)
	user := newTestUser(t, ctx, "read")

	set, apperr := i.GenerateAccessRefreshTokens(ctx, "client-1", user.UserID, []string{"read"})
	require.NoError(t, apperr)
	assert.NotEmpty(t, set.AccessToken)
	assert.NotEmpty(t, set.RefreshToken)
	assert.Empty(t, set.IDToken)
}
