package token

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
)

// AccessTokenClaims is the claim set of issued access tokens.
type AccessTokenClaims struct {
	Scope           string `json:"scope,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
	jwt.RegisteredClaims
}

// RefreshTokenClaims is the claim set of issued refresh tokens.
type RefreshTokenClaims struct {
	Scopes string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// IDTokenClaims is the claim set of issued OpenID Connect ID tokens.
type IDTokenClaims struct {
	Nonce    string           `json:"nonce,omitempty"`
	AuthTime *jwt.NumericDate `json:"auth_time,omitempty"`
	jwt.RegisteredClaims
}

// NewJTI returns a fresh token identifier: 32 random bytes in hex form.
func NewJTI() (string, apperrors.Error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", ErrInternal.MsgErr("unable to generate token id", err)
	}
	return hex.EncodeToString(b), nil
}

// newAccessTokenClaims builds the access token claim set. The audience is
// the client, the subject is the user, and azp is set only when it differs
// from the audience.
func newAccessTokenClaims(jti, issuer, clientID, userID string, scopes []string, now time.Time, validity time.Duration) AccessTokenClaims {
	return AccessTokenClaims{
		Scope: authcommon.JoinScopes(scopes),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{clientID},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	}
}

// newRefreshTokenClaims builds the refresh token claim set.
func newRefreshTokenClaims(jti, issuer, clientID, userID string, scopes []string, now time.Time, validity time.Duration) RefreshTokenClaims {
	return RefreshTokenClaims{
		Scopes: authcommon.JoinScopes(scopes),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{clientID},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	}
}

// newIDTokenClaims builds the ID token claim set. Nonce and auth_time are
// included only when present.
func newIDTokenClaims(jti, issuer, clientID, userID, nonce string, authTime *time.Time, now time.Time, validity time.Duration) IDTokenClaims {
	claims := IDTokenClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{clientID},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	}
	if authTime != nil {
		claims.AuthTime = jwt.NewNumericDate(*authTime)
	}
	return claims
}
