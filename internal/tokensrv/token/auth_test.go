package token

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/securetoken/internal/common/uuid"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
)

func TestRegisterAndAuthenticateUser(t *testing.T) {
	ctx := newDb(t)

	username := fmt.Sprintf("bob-%s", uuid.New().String()[:8])
	user, apperr := RegisterUser(ctx, username, "correct horse battery", []string{"openid"})
	require.NoError(t, apperr)
	require.NotNil(t, user)
	t.Cleanup(func() {
		db.DB(ctx).DeleteUser(ctx, user.UserID)
	})

	assert.Equal(t, username, user.Username)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash)

	userID, ok, apperr := AuthenticateUser(ctx, username, "correct horse battery")
	require.NoError(t, apperr)
	assert.True(t, ok)
	assert.Equal(t, user.UserID, userID)

	// wrong password is a plain denial, not an error
	_, ok, apperr = AuthenticateUser(ctx, username, "wrong password")
	require.NoError(t, apperr)
	assert.False(t, ok)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	ctx := newDb(t)

	_, ok, apperr := AuthenticateUser(ctx, "nobody-"+uuid.New().String(), "whatever")
	require.NoError(t, apperr)
	assert.False(t, ok)
}

func TestRegisterUserDuplicateUsername(t *testing.T) {
	ctx := newDb(t)

	username := fmt.Sprintf("eve-%s", uuid.New().String()[:8])
	user, apperr := RegisterUser(ctx, username, "first password", nil)
	require.NoError(t, apperr)
	t.Cleanup(func() {
		db.DB(ctx).DeleteUser(ctx, user.UserID)
	})

	_, apperr = RegisterUser(ctx, username, "second password", nil)
	assert.ErrorIs(t, apperr, ErrUserExists)
}

func TestRegisterUserRejectsEmptyInputs(t *testing.T) {
	ctx := newDb(t)

	_, apperr := RegisterUser(ctx, "", "password", nil)
	assert.ErrorIs(t, apperr, ErrBadRequest)

	_, apperr = RegisterUser(ctx, "someone", "", nil)
	assert.ErrorIs(t, apperr, ErrBadRequest)

	_, _, apperr = AuthenticateUser(ctx, "", "password")
	assert.ErrorIs(t, apperr, ErrBadRequest)
}
