package token

import (
	"context"
	goerrors "errors"

	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/common/uuid"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dberror"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
)

// RegisterUser creates a user account. The password is stored as an
// argon2id hash; the roles become the account's entitlement source.
func RegisterUser(ctx context.Context, username, password string, roles []string) (*models.User, apperrors.Error) {
	if username == "" || password == "" {
		return nil, ErrBadRequest.Msg("username and password are required")
	}

	hash, err := authcommon.HashPassword(password)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to hash password")
		return nil, ErrInternal.MsgErr("unable to hash password", err)
	}

	user := &models.User{
		UserID:       uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Roles:        roles,
	}
	if apperr := db.DB(ctx).CreateUser(ctx, user); apperr != nil {
		if goerrors.Is(apperr, dberror.ErrAlreadyExists) {
			return nil, ErrUserExists.Err(apperr)
		}
		return nil, ErrInternal.MsgErr("unable to create user", apperr)
	}

	log.Ctx(ctx).Info().
		Str("user_id", user.UserID).
		Str("username", username).
		Msg("user registered")
	return user, nil
}

// AuthenticateUser verifies a username and password pair and returns the
// account's user id. An unknown username or a wrong password yields
// ok=false without an error; callers only consume the boolean outcome
// and the id.
func AuthenticateUser(ctx context.Context, username, password string) (string, bool, apperrors.Error) {
	if username == "" || password == "" {
		return "", false, ErrBadRequest.Msg("username and password are required")
	}

	user, apperr := db.DB(ctx).GetUserByUsername(ctx, username)
	if apperr != nil {
		if goerrors.Is(apperr, dberror.ErrNotFound) {
			log.Ctx(ctx).Info().Str("username", username).Msg("authentication for unknown user")
			return "", false, nil
		}
		return "", false, ErrInternal.MsgErr("unable to load user", apperr)
	}

	ok, err := authcommon.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", user.UserID).Msg("stored password hash is unreadable")
		return "", false, ErrInternal.MsgErr("unable to verify password", err)
	}
	if !ok {
		log.Ctx(ctx).Warn().Str("user_id", user.UserID).Msg("authentication failed")
		return "", false, nil
	}
	return user.UserID, true, nil
}
