package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dberror"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
)

// CreateAccessToken stores the record of an issued access token.
func (tm *tokenManager) CreateAccessToken(ctx context.Context, token *models.AccessToken) apperrors.Error {
	query := `
		INSERT INTO access_tokens (jti, user_id, client_id, scopes, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	row := tm.conn().QueryRowContext(ctx, query, token.JTI, token.UserID, token.ClientID, token.Scopes, token.ExpiresAt)
	errdb := row.Scan(&token.CreatedAt)
	if errdb != nil {
		if pgErr, ok := errdb.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return dberror.ErrAlreadyExists.Msg("access token already exists")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to create access token")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// GetAccessToken retrieves an access token record by its jti.
func (tm *tokenManager) GetAccessToken(ctx context.Context, jti string) (*models.AccessToken, apperrors.Error) {
	query := `
		SELECT jti, user_id, client_id, scopes, expires_at, created_at
		FROM access_tokens
		WHERE jti = $1`

	var token models.AccessToken
	row := tm.conn().QueryRowContext(ctx, query, jti)
	errdb := row.Scan(&token.JTI, &token.UserID, &token.ClientID, &token.Scopes, &token.ExpiresAt, &token.CreatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("access token not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get access token")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &token, nil
}

// DeleteAccessToken removes an access token record by its jti.
func (tm *tokenManager) DeleteAccessToken(ctx context.Context, jti string) apperrors.Error {
	query := `
		DELETE FROM access_tokens
		WHERE jti = $1
		RETURNING jti`

	row := tm.conn().QueryRowContext(ctx, query, jti)
	var returned string
	errdb := row.Scan(&returned)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("access token not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to delete access token")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// DeleteAccessTokensBefore removes the user's access tokens whose expiry is
// strictly earlier than the given time, excluding the named token.
func (tm *tokenManager) DeleteAccessTokensBefore(ctx context.Context, userID string, before time.Time, excludeJTI string) (int64, apperrors.Error) {
	res, errdb := tm.conn().ExecContext(ctx, `
		DELETE FROM access_tokens
		WHERE user_id = $1 AND expires_at < $2 AND jti <> $3`, userID, before, excludeJTI)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to delete stale access tokens")
		return 0, dberror.ErrDatabase.Err(errdb)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CreateRefreshToken stores the record of an issued refresh token.
func (tm *tokenManager) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) apperrors.Error {
	query := `
		INSERT INTO refresh_tokens (jti, user_id, client_id, scopes, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	row := tm.conn().QueryRowContext(ctx, query, token.JTI, token.UserID, token.ClientID, token.Scopes, token.ExpiresAt)
	errdb := row.Scan(&token.CreatedAt)
	if errdb != nil {
		if pgErr, ok := errdb.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return dberror.ErrAlreadyExists.Msg("refresh token already exists")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to create refresh token")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// GetRefreshToken retrieves a refresh token record by its jti.
func (tm *tokenManager) GetRefreshToken(ctx context.Context, jti string) (*models.RefreshToken, apperrors.Error) {
	query := `
		SELECT jti, user_id, client_id, scopes, expires_at, created_at
		FROM refresh_tokens
		WHERE jti = $1`

	var token models.RefreshToken
	row := tm.conn().QueryRowContext(ctx, query, jti)
	errdb := row.Scan(&token.JTI, &token.UserID, &token.ClientID, &token.Scopes, &token.ExpiresAt, &token.CreatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("refresh token not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get refresh token")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &token, nil
}

// DeleteRefreshTokensBefore removes the user's refresh tokens whose expiry
// is strictly earlier than the given time, excluding the named token.
func (tm *tokenManager) DeleteRefreshTokensBefore(ctx context.Context, userID string, before time.Time, excludeJTI string) (int64, apperrors.Error) {
	res, errdb := tm.conn().ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE user_id = $1 AND expires_at < $2 AND jti <> $3`, userID, before, excludeJTI)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to delete stale refresh tokens")
		return 0, dberror.ErrDatabase.Err(errdb)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UpdateRefreshTokenScopes replaces the scope set recorded for a refresh token.
func (tm *tokenManager) UpdateRefreshTokenScopes(ctx context.Context, jti string, scopes string) apperrors.Error {
	query := `
		UPDATE refresh_tokens
		SET scopes = $1
		WHERE jti = $2
		RETURNING jti`

	row := tm.conn().QueryRowContext(ctx, query, scopes, jti)
	var returned string
	errdb := row.Scan(&returned)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("refresh token not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to update refresh token scopes")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// CreateIDToken stores the record of an issued ID token.
func (tm *tokenManager) CreateIDToken(ctx context.Context, token *models.IDToken) apperrors.Error {
	query := `
		INSERT INTO id_tokens (jti, user_id, client_id, nonce, auth_time, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	row := tm.conn().QueryRowContext(ctx, query, token.JTI, token.UserID, token.ClientID, token.Nonce, token.AuthTime, token.ExpiresAt)
	errdb := row.Scan(&token.CreatedAt)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to create id token")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// GetIDToken retrieves an ID token record by its jti.
func (tm *tokenManager) GetIDToken(ctx context.Context, jti string) (*models.IDToken, apperrors.Error) {
	query := `
		SELECT jti, user_id, client_id, nonce, auth_time, expires_at, created_at
		FROM id_tokens
		WHERE jti = $1`

	var token models.IDToken
	row := tm.conn().QueryRowContext(ctx, query, jti)
	errdb := row.Scan(&token.JTI, &token.UserID, &token.ClientID, &token.Nonce, &token.AuthTime, &token.ExpiresAt, &token.CreatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("id token not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get id token")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &token, nil
}

// DeleteExpiredTokens removes expired records from all three token tables
// and returns the total number of rows deleted.
func (tm *tokenManager) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, apperrors.Error) {
	var total int64
	for _, table := range []string{"access_tokens", "refresh_tokens", "id_tokens"} {
		res, errdb := tm.conn().ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at < $1`, before)
		if errdb != nil {
			log.Ctx(ctx).Error().Err(errdb).Str("table", table).Msg("failed to delete expired tokens")
			return total, dberror.ErrDatabase.Err(errdb)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
