// Package signer signs and verifies the service's JWTs with the active
// ES256 key pair.
package signer

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/keymanager"
)

// Signer signs and verifies tokens with a single key pair.
type Signer struct {
	key *keymanager.SigningKey
}

// NewSigner resolves the active signing key and returns a Signer bound
// to it. Resolution is retried since the first call may race key creation.
func NewSigner(ctx context.Context) (*Signer, apperrors.Error) {
	var key *keymanager.SigningKey
	err := retry.Do(func() error {
		var apperr apperrors.Error
		key, apperr = keymanager.GetKeyManager().GetActiveKey(ctx)
		if apperr != nil {
			return apperr
		}
		return nil
	}, retry.Attempts(3), retry.Delay(500*time.Millisecond), retry.DelayType(retry.BackOffDelay))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to resolve signing key")
		return nil, ErrSigner.MsgErr("unable to resolve signing key", err)
	}
	return &Signer{key: key}, nil
}

// NewSignerFromKey returns a Signer bound to the given key pair.
func NewSignerFromKey(key *keymanager.SigningKey) *Signer {
	return &Signer{key: key}
}

// Kid returns the key identifier placed in signed token headers.
func (s *Signer) Kid() string {
	return s.key.Kid
}

// Sign produces a signed ES256 JWT carrying the given claims. The kid of
// the signing key is placed in the token header.
func (s *Signer) Sign(claims jwt.Claims) (string, apperrors.Error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.key.Kid

	signed, err := token.SignedString(s.key.PrivateKey)
	if err != nil {
		return "", ErrUnableToSign.Err(err)
	}
	return signed, nil
}

// Verify parses the token string, checks the ES256 signature against the
// signer's public key, and unmarshals the claims into the given value.
func (s *Signer) Verify(tokenString string, claims jwt.Claims) (*jwt.Token, apperrors.Error) {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithLeeway(clockSkew()))

	if err != nil {
		return nil, ErrInvalidToken.Err(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return token, nil
}

// clockSkew returns the configured leeway for time-based claims. Falls
// back to one minute when configuration is not loaded, as in unit tests.
func clockSkew() time.Duration {
	cfg := config.Config()
	if cfg == nil {
		return time.Minute
	}
	skew, err := cfg.Auth.GetClockSkew()
	if err != nil {
		return time.Minute
	}
	return skew
}
