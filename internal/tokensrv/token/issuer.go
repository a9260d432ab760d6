// Package token issues and resolves the service's OAuth2 and OpenID
// Connect tokens. Every issued token is a signed ES256 JWT with a stored
// record keyed by jti; the record is the anchor for lookup and cleanup.
package token

import (
	"context"
	"database/sql"
	goerrors "errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dberror"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/signer"
)

// Issuer issues and resolves tokens with a single bound signer. The iss
// claim of every issued token carries the configured issuer URL.
type Issuer struct {
	signer *signer.Signer
	issuer string
}

// TokenSet is the result of a combined issuance. IDToken is empty when no
// ID token was requested.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// NewIssuer resolves the active signing key and returns an Issuer bound
// to it.
func NewIssuer(ctx context.Context) (*Issuer, apperrors.Error) {
	s, err := signer.NewSigner(ctx)
	if err != nil {
		return nil, err
	}
	return &Issuer{signer: s, issuer: issuerURL()}, nil
}

// NewIssuerWithSigner returns an Issuer bound to the given signer and
// issuer URL.
func NewIssuerWithSigner(s *signer.Signer, issuerURL string) *Issuer {
	return &Issuer{signer: s, issuer: issuerURL}
}

// GenerateAccessToken issues a signed access token for the given client,
// user, and scopes, and stores its record. The user must be entitled to
// every requested scope; the issued token carries the user's full role
// set, not the narrower request. The signed token and the stored record
// are returned.
func (i *Issuer) GenerateAccessToken(ctx context.Context, clientID, userID string, scopes []string) (string, *models.AccessToken, apperrors.Error) {
	if clientID == "" || userID == "" {
		return "", nil, ErrBadRequest.Msg("client and user are required")
	}
	roles, apperr := entitledRoles(ctx, userID, scopes)
	if apperr != nil {
		return "", nil, apperr
	}
	jti, apperr := NewJTI()
	if apperr != nil {
		return "", nil, apperr
	}

	now := time.Now()
	validity := config.Config().Auth.GetAccessTokenValidityOrDefault()
	claims := newAccessTokenClaims(jti, i.issuer, clientID, userID, roles, now, validity)

	signed, apperr := i.signer.Sign(claims)
	if apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Msg("unable to sign access token")
		return "", nil, ErrInternal.MsgErr("unable to sign access token", apperr)
	}

	record := &models.AccessToken{
		JTI:       jti,
		UserID:    userID,
		ClientID:  clientID,
		Scopes:    authcommon.JoinScopes(roles),
		ExpiresAt: now.Add(validity),
	}
	if apperr := db.DB(ctx).CreateAccessToken(ctx, record); apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Str("jti", jti).Msg("unable to store access token")
		return "", nil, ErrInternal.MsgErr("unable to store access token", apperr)
	}

	log.Ctx(ctx).Info().
		Str("jti", jti).
		Str("client_id", clientID).
		Str("token_type", string(authcommon.TokenTypeAccess)).
		Msg("token issued")
	return signed, record, nil
}

// GenerateRefreshToken issues a signed refresh token and stores its
// record. The same entitlement gate as access tokens applies, and the
// stored scopes are the user's full role set.
func (i *Issuer) GenerateRefreshToken(ctx context.Context, clientID, userID string, scopes []string) (string, *models.RefreshToken, apperrors.Error) {
	if clientID == "" || userID == "" {
		return "", nil, ErrBadRequest.Msg("client and user are required")
	}
	roles, apperr := entitledRoles(ctx, userID, scopes)
	if apperr != nil {
		return "", nil, apperr
	}
	jti, apperr := NewJTI()
	if apperr != nil {
		return "", nil, apperr
	}

	now := time.Now()
	validity := config.Config().Auth.GetRefreshTokenValidityOrDefault()
	claims := newRefreshTokenClaims(jti, i.issuer, clientID, userID, roles, now, validity)

	signed, apperr := i.signer.Sign(claims)
	if apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Msg("unable to sign refresh token")
		return "", nil, ErrInternal.MsgErr("unable to sign refresh token", apperr)
	}

	record := &models.RefreshToken{
		JTI:       jti,
		UserID:    userID,
		ClientID:  clientID,
		Scopes:    authcommon.JoinScopes(roles),
		ExpiresAt: now.Add(validity),
	}
	if apperr := db.DB(ctx).CreateRefreshToken(ctx, record); apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Str("jti", jti).Msg("unable to store refresh token")
		return "", nil, ErrInternal.MsgErr("unable to store refresh token", apperr)
	}

	log.Ctx(ctx).Info().
		Str("jti", jti).
		Str("client_id", clientID).
		Str("token_type", string(authcommon.TokenTypeRefresh)).
		Msg("token issued")
	return signed, record, nil
}

// GenerateIDToken issues a signed OpenID Connect ID token and stores its
// record. Issuance is gated on the same entitlement check as the other
// token kinds. Nonce and authTime are optional.
func (i *Issuer) GenerateIDToken(ctx context.Context, clientID, userID string, scopes []string, nonce string, authTime *time.Time) (string, *models.IDToken, apperrors.Error) {
	if clientID == "" || userID == "" {
		return "", nil, ErrBadRequest.Msg("client and user are required")
	}
	if _, apperr := entitledRoles(ctx, userID, scopes); apperr != nil {
		return "", nil, apperr
	}
	jti, apperr := NewJTI()
	if apperr != nil {
		return "", nil, apperr
	}

	now := time.Now()
	validity := config.Config().Auth.GetIDTokenValidityOrDefault()
	claims := newIDTokenClaims(jti, i.issuer, clientID, userID, nonce, authTime, now, validity)

	signed, apperr := i.signer.Sign(claims)
	if apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Msg("unable to sign id token")
		return "", nil, ErrInternal.MsgErr("unable to sign id token", apperr)
	}

	record := &models.IDToken{
		JTI:       jti,
		UserID:    userID,
		ClientID:  clientID,
		Nonce:     sql.NullString{String: nonce, Valid: nonce != ""},
		ExpiresAt: now.Add(validity),
	}
	if authTime != nil {
		record.AuthTime = sql.NullTime{Time: *authTime, Valid: true}
	}
	if apperr := db.DB(ctx).CreateIDToken(ctx, record); apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Str("jti", jti).Msg("unable to store id token")
		return "", nil, ErrInternal.MsgErr("unable to store id token", apperr)
	}

	log.Ctx(ctx).Info().
		Str("jti", jti).
		Str("client_id", clientID).
		Str("token_type", string(authcommon.TokenTypeID)).
		Msg("token issued")
	return signed, record, nil
}

// GenerateAccessRefreshTokens issues an access and refresh token pair.
// Issuance is sequential; a failure partway leaves earlier tokens issued
// and stored.
func (i *Issuer) GenerateAccessRefreshTokens(ctx context.Context, clientID, userID string, scopes []string) (*TokenSet, apperrors.Error) {
	access, record, apperr := i.GenerateAccessToken(ctx, clientID, userID, scopes)
	if apperr != nil {
		return nil, apperr
	}
	refresh, _, apperr := i.GenerateRefreshToken(ctx, clientID, userID, scopes)
	if apperr != nil {
		return nil, apperr
	}
	return &TokenSet{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(record.ExpiresAt).Seconds()),
		RefreshToken: refresh,
		Scope:        record.Scopes,
	}, nil
}

// GenerateTokens issues the full set: access, refresh, and ID token. When
// no authTime is given, the user's account creation time is used.
func (i *Issuer) GenerateTokens(ctx context.Context, clientID, userID string, scopes []string, nonce string, authTime *time.Time) (*TokenSet, apperrors.Error) {
	set, apperr := i.GenerateAccessRefreshTokens(ctx, clientID, userID, scopes)
	if apperr != nil {
		return nil, apperr
	}
	if authTime == nil {
		if user, apperr := db.DB(ctx).GetUser(ctx, userID); apperr == nil {
			authTime = &user.CreatedAt
		}
	}
	idToken, _, apperr := i.GenerateIDToken(ctx, clientID, userID, scopes, nonce, authTime)
	if apperr != nil {
		return nil, apperr
	}
	set.IDToken = idToken
	return set, nil
}

// entitledRoles runs the entitlement gate for an issuance. It returns the
// user's full role set, which callers persist into the issued token in
// place of the narrower request.
func entitledRoles(ctx context.Context, userID string, scopes []string) ([]string, apperrors.Error) {
	entitled, roles, apperr := IsUserEntitled(ctx, userID, scopes)
	if apperr != nil {
		return nil, apperr
	}
	if !entitled {
		log.Ctx(ctx).Warn().
			Str("user_id", userID).
			Strs("scopes", scopes).
			Msg("token issuance denied")
		return nil, ErrUnauthorized.Msg("user is not entitled for the requested scopes")
	}
	return roles, nil
}

// GetAccessToken resolves a token string to its stored record. A signed
// JWT is verified and resolved by its jti claim; any other string is
// treated as a bare jti, which is accepted for compatibility but logged.
// Resolving a live token also reaps the user's access tokens superseded
// by it.
func (i *Issuer) GetAccessToken(ctx context.Context, tokenString string) (*models.AccessToken, apperrors.Error) {
	if tokenString == "" {
		return nil, ErrBadRequest.Msg("token is required")
	}

	jti := tokenString
	claims := &AccessTokenClaims{}
	if _, apperr := i.signer.Verify(tokenString, claims); apperr == nil {
		jti = claims.ID
	} else {
		log.Ctx(ctx).Warn().Err(apperr).Msg("access token lookup by bare jti")
	}

	record, apperr := db.DB(ctx).GetAccessToken(ctx, jti)
	if apperr != nil {
		if goerrors.Is(apperr, dberror.ErrNotFound) {
			return nil, ErrTokenNotFound.Err(apperr)
		}
		return nil, ErrInternal.MsgErr("unable to load access token", apperr)
	}
	if record.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	reapSupersededAccessTokens(ctx, record.UserID, record.ExpiresAt, record.JTI)
	return record, nil
}

// reapSupersededAccessTokens piggybacks cleanup on a lookup: the user's
// access tokens with expiry strictly earlier than the resolved token's
// are deleted. Tokens of other users and the resolved token itself are
// untouched. Failure is logged, not surfaced.
func reapSupersededAccessTokens(ctx context.Context, userID string, before time.Time, excludeJTI string) {
	deleted, apperr := db.DB(ctx).DeleteAccessTokensBefore(ctx, userID, before, excludeJTI)
	if apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Str("user_id", userID).Msg("unable to reap superseded access tokens")
	} else if deleted > 0 {
		log.Ctx(ctx).Info().Int64("deleted", deleted).Str("user_id", userID).Msg("reaped superseded access tokens")
	}
}

// reapSupersededRefreshTokens removes the user's refresh tokens with
// expiry strictly earlier than the resolved token's. Refresh tokens have
// no revoke path; superseding on lookup and the background sweep are the
// only ways they are removed.
func reapSupersededRefreshTokens(ctx context.Context, userID string, before time.Time, excludeJTI string) {
	deleted, apperr := db.DB(ctx).DeleteRefreshTokensBefore(ctx, userID, before, excludeJTI)
	if apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Str("user_id", userID).Msg("unable to reap superseded refresh tokens")
	} else if deleted > 0 {
		log.Ctx(ctx).Info().Int64("deleted", deleted).Str("user_id", userID).Msg("reaped superseded refresh tokens")
	}
}

// GetRefreshToken verifies a signed refresh token and resolves its stored
// record. Unlike access tokens, bare jti lookup is not accepted.
func (i *Issuer) GetRefreshToken(ctx context.Context, tokenString string) (*models.RefreshToken, apperrors.Error) {
	if tokenString == "" {
		return nil, ErrBadRequest.Msg("token is required")
	}

	claims := &RefreshTokenClaims{}
	if _, apperr := i.signer.Verify(tokenString, claims); apperr != nil {
		return nil, ErrUnauthorized.MsgErr("invalid refresh token", apperr)
	}

	record, apperr := db.DB(ctx).GetRefreshToken(ctx, claims.ID)
	if apperr != nil {
		if goerrors.Is(apperr, dberror.ErrNotFound) {
			return nil, ErrTokenNotFound.Err(apperr)
		}
		return nil, ErrInternal.MsgErr("unable to load refresh token", apperr)
	}
	if record.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	reapSupersededRefreshTokens(ctx, record.UserID, record.ExpiresAt, record.JTI)
	return record, nil
}

// UpdateRefreshTokenScopes narrows or widens the scopes recorded for a
// refresh token. Refresh tokens are never revoked here; scope updates are
// the only mutation.
func (i *Issuer) UpdateRefreshTokenScopes(ctx context.Context, jti string, scopes []string) apperrors.Error {
	if jti == "" {
		return ErrBadRequest.Msg("token id is required")
	}
	apperr := db.DB(ctx).UpdateRefreshTokenScopes(ctx, jti, authcommon.JoinScopes(scopes))
	if apperr != nil {
		if goerrors.Is(apperr, dberror.ErrNotFound) {
			return ErrTokenNotFound.Err(apperr)
		}
		return ErrInternal.MsgErr("unable to update refresh token", apperr)
	}
	log.Ctx(ctx).Info().Str("jti", jti).Msg("refresh token scopes updated")
	return nil
}

func issuerURL() string {
	cfg := config.Config()
	if cfg == nil {
		return ""
	}
	return cfg.Issuer
}
