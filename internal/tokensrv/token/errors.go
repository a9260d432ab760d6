package token

import (
	"net/http"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
)

var (
	// ErrToken is the base error for token operations.
	ErrToken apperrors.Error = apperrors.New("token error").SetStatusCode(http.StatusInternalServerError)

	// ErrBadRequest indicates missing or malformed inputs.
	ErrBadRequest apperrors.Error = ErrToken.New("invalid request").SetStatusCode(http.StatusBadRequest)

	// ErrUnauthorized indicates the caller does not hold the requested entitlements.
	ErrUnauthorized apperrors.Error = ErrToken.New("unauthorized").SetStatusCode(http.StatusUnauthorized)

	// ErrUserExists indicates the username is already registered.
	ErrUserExists apperrors.Error = ErrToken.New("user already exists").SetStatusCode(http.StatusConflict)

	// ErrTokenNotFound indicates no stored record matches the token.
	ErrTokenNotFound apperrors.Error = ErrToken.New("token not found").SetStatusCode(http.StatusNotFound)

	// ErrTokenExpired indicates the stored record has passed its expiry.
	ErrTokenExpired apperrors.Error = ErrToken.New("token expired").SetStatusCode(http.StatusUnauthorized)

	// ErrInternal indicates a storage or signing failure.
	ErrInternal apperrors.Error = ErrToken.New("internal error").SetStatusCode(http.StatusInternalServerError)
)
