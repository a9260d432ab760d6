package signer

import (
	"net/http"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
)

var (
	// ErrSigner is the base error for signing failures.
	ErrSigner apperrors.Error = apperrors.New("token signing error").SetStatusCode(http.StatusInternalServerError)

	// ErrUnableToSign indicates the token could not be signed.
	ErrUnableToSign apperrors.Error = ErrSigner.New("unable to sign token")

	// ErrInvalidToken indicates the token failed signature or claim validation.
	ErrInvalidToken apperrors.Error = ErrSigner.New("invalid token").SetStatusCode(http.StatusUnauthorized)
)
