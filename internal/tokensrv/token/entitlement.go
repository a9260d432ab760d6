package token

import (
	"context"
	goerrors "errors"

	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dberror"
)

// IsUserEntitled reports whether the user holds every requested scope.
// When the requested scopes are a subset of the user's roles, the user's
// full role set is returned alongside true. An unknown user or a missing
// scope yields false without an error; only malformed inputs and storage
// failures are errors.
func IsUserEntitled(ctx context.Context, userID string, scopes []string) (bool, []string, apperrors.Error) {
	if userID == "" {
		return false, nil, ErrBadRequest.Msg("user is required")
	}
	if len(scopes) == 0 {
		return false, nil, ErrBadRequest.Msg("scopes are required")
	}

	user, apperr := db.DB(ctx).GetUser(ctx, userID)
	if apperr != nil {
		if goerrors.Is(apperr, dberror.ErrNotFound) {
			log.Ctx(ctx).Info().Str("user_id", userID).Msg("entitlement check for unknown user")
			return false, nil, nil
		}
		return false, nil, ErrInternal.MsgErr("unable to load user", apperr)
	}

	if !authcommon.IsSubset(scopes, user.Roles) {
		log.Ctx(ctx).Info().
			Str("user_id", userID).
			Strs("scopes", scopes).
			Msg("entitlement denied")
		return false, nil, nil
	}
	return true, user.Roles, nil
}
