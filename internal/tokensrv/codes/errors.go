package codes

import (
	"net/http"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
)

var (
	// ErrCode is the base error for authorization and device code
	// operations.
	ErrCode apperrors.Error = apperrors.New("code error").SetStatusCode(http.StatusInternalServerError)

	// ErrBadRequest indicates missing or malformed inputs.
	ErrBadRequest apperrors.Error = ErrCode.New("invalid request").SetStatusCode(http.StatusBadRequest)

	// ErrCodeNotFound indicates no pending code matches.
	ErrCodeNotFound apperrors.Error = ErrCode.New("code not found").SetStatusCode(http.StatusNotFound)

	// ErrCodeExpired indicates the code has passed its expiry.
	ErrCodeExpired apperrors.Error = ErrCode.New("code expired").SetStatusCode(http.StatusUnauthorized)

	// ErrCodePending indicates a device grant awaiting user approval.
	ErrCodePending apperrors.Error = ErrCode.New("authorization pending").SetStatusCode(http.StatusUnauthorized)

	// ErrCodeDenied indicates the user denied the device grant.
	ErrCodeDenied apperrors.Error = ErrCode.New("authorization denied").SetStatusCode(http.StatusUnauthorized)

	// ErrInternal indicates a storage failure.
	ErrInternal apperrors.Error = ErrCode.New("internal error").SetStatusCode(http.StatusInternalServerError)
)
