package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/securetoken/internal/common/uuid"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dberror"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
)

func testJTI() string {
	return fmt.Sprintf("jti-%s", uuid.New().String())
}

func TestAccessTokenLifecycle(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	token := &models.AccessToken{
		JTI:       testJTI(),
		UserID:    "user-1",
		ClientID:  "client-1",
		Scopes:    "openid profile",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}

	err := DB(ctx).CreateAccessToken(ctx, token)
	require.NoError(t, err)
	defer DB(ctx).DeleteAccessToken(ctx, token.JTI)
	assert.False(t, token.CreatedAt.IsZero())

	got, err := DB(ctx).GetAccessToken(ctx, token.JTI)
	require.NoError(t, err)
	assert.Equal(t, token.UserID, got.UserID)
	assert.Equal(t, token.ClientID, got.ClientID)
	assert.Equal(t, token.Scopes, got.Scopes)

	_, err = DB(ctx).GetAccessToken(ctx, "no-such-jti")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestDeleteAccessTokensBefore(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	userID := fmt.Sprintf("reap-user-%s", uuid.New().String())
	now := time.Now().UTC()

	stale1 := &models.AccessToken{JTI: testJTI(), UserID: userID, ClientID: "c", ExpiresAt: now.Add(-2 * time.Hour)}
	stale2 := &models.AccessToken{JTI: testJTI(), UserID: userID, ClientID: "c", ExpiresAt: now.Add(-1 * time.Hour)}
	current := &models.AccessToken{JTI: testJTI(), UserID: userID, ClientID: "c", ExpiresAt: now.Add(time.Hour)}
	otherUser := &models.AccessToken{JTI: testJTI(), UserID: userID + "-other", ClientID: "c", ExpiresAt: now.Add(-1 * time.Hour)}

	for _, tok := range []*models.AccessToken{stale1, stale2, current, otherUser} {
		require.NoError(t, DB(ctx).CreateAccessToken(ctx, tok))
		defer DB(ctx).DeleteAccessToken(ctx, tok.JTI)
	}

	n, err := DB(ctx).DeleteAccessTokensBefore(ctx, userID, current.ExpiresAt, current.JTI)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// current token survives
	_, err = DB(ctx).GetAccessToken(ctx, current.JTI)
	assert.NoError(t, err)

	// other user's token is untouched
	_, err = DB(ctx).GetAccessToken(ctx, otherUser.JTI)
	assert.NoError(t, err)

	_, err = DB(ctx).GetAccessToken(ctx, stale1.JTI)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestDeleteRefreshTokensBefore(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	userID := fmt.Sprintf("reap-user-%s", uuid.New().String())
	now := time.Now().UTC()

	superseded := &models.RefreshToken{JTI: testJTI(), UserID: userID, ClientID: "c", ExpiresAt: now.Add(time.Hour)}
	current := &models.RefreshToken{JTI: testJTI(), UserID: userID, ClientID: "c", ExpiresAt: now.Add(30 * 24 * time.Hour)}
	otherUser := &models.RefreshToken{JTI: testJTI(), UserID: userID + "-other", ClientID: "c", ExpiresAt: now.Add(time.Hour)}

	for _, tok := range []*models.RefreshToken{superseded, current, otherUser} {
		require.NoError(t, DB(ctx).CreateRefreshToken(ctx, tok))
	}
	defer DB(ctx).DeleteRefreshTokensBefore(ctx, userID, now.Add(365*24*time.Hour), "")
	defer DB(ctx).DeleteRefreshTokensBefore(ctx, otherUser.UserID, now.Add(365*24*time.Hour), "")

	n, err := DB(ctx).DeleteRefreshTokensBefore(ctx, userID, current.ExpiresAt, current.JTI)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = DB(ctx).GetRefreshToken(ctx, superseded.JTI)
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	// current token and other user's token survive
	_, err = DB(ctx).GetRefreshToken(ctx, current.JTI)
	assert.NoError(t, err)
	_, err = DB(ctx).GetRefreshToken(ctx, otherUser.JTI)
	assert.NoError(t, err)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	token := &models.RefreshToken{
		JTI:       testJTI(),
		UserID:    "user-1",
		ClientID:  "client-1",
		Scopes:    "openid",
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour).UTC(),
	}

	err := DB(ctx).CreateRefreshToken(ctx, token)
	require.NoError(t, err)

	got, err := DB(ctx).GetRefreshToken(ctx, token.JTI)
	require.NoError(t, err)
	assert.Equal(t, "openid", got.Scopes)

	err = DB(ctx).UpdateRefreshTokenScopes(ctx, token.JTI, "openid profile email")
	require.NoError(t, err)

	got, err = DB(ctx).GetRefreshToken(ctx, token.JTI)
	require.NoError(t, err)
	assert.Equal(t, "openid profile email", got.Scopes)

	err = DB(ctx).UpdateRefreshTokenScopes(ctx, "no-such-jti", "openid")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestIDTokenLifecycle(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	token := &models.IDToken{
		JTI:       testJTI(),
		UserID:    "user-1",
		ClientID:  "client-1",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	token.Nonce.String = "nonce-value"
	token.Nonce.Valid = true

	err := DB(ctx).CreateIDToken(ctx, token)
	require.NoError(t, err)

	got, err := DB(ctx).GetIDToken(ctx, token.JTI)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.True(t, got.Nonce.Valid)
	assert.Equal(t, "nonce-value", got.Nonce.String)
	assert.False(t, got.AuthTime.Valid)
}

func TestDeleteExpiredTokens(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	now := time.Now().UTC()
	expired := &models.AccessToken{JTI: testJTI(), UserID: "sweep-user", ClientID: "c", ExpiresAt: now.Add(-time.Minute)}
	live := &models.AccessToken{JTI: testJTI(), UserID: "sweep-user", ClientID: "c", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, DB(ctx).CreateAccessToken(ctx, expired))
	require.NoError(t, DB(ctx).CreateAccessToken(ctx, live))
	defer DB(ctx).DeleteAccessToken(ctx, live.JTI)

	n, err := DB(ctx).DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	_, err = DB(ctx).GetAccessToken(ctx, expired.JTI)
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	_, err = DB(ctx).GetAccessToken(ctx, live.JTI)
	assert.NoError(t, err)
}
