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

// CreateAuthCode stores a new authorization code.
func (cm *codeManager) CreateAuthCode(ctx context.Context, code *models.AuthorizationCode) apperrors.Error {
	query := `
		INSERT INTO authorization_codes (code_id, client_id, user_id, redirect_uri, scopes, nonce, code_challenge, code_challenge_method, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	row := cm.conn().QueryRowContext(ctx, query,
		code.CodeID, code.ClientID, code.UserID, code.RedirectURI, code.Scopes,
		code.Nonce, code.CodeChallenge, code.CodeChallengeMethod, code.ExpiresAt)
	errdb := row.Scan(&code.CreatedAt)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to create authorization code")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// GetAuthCode retrieves an authorization code by its identifier.
func (cm *codeManager) GetAuthCode(ctx context.Context, codeID string) (*models.AuthorizationCode, apperrors.Error) {
	query := `
		SELECT code_id, client_id, user_id, redirect_uri, scopes, nonce, code_challenge, code_challenge_method, expires_at, created_at
		FROM authorization_codes
		WHERE code_id = $1`

	var code models.AuthorizationCode
	row := cm.conn().QueryRowContext(ctx, query, codeID)
	errdb := row.Scan(&code.CodeID, &code.ClientID, &code.UserID, &code.RedirectURI, &code.Scopes,
		&code.Nonce, &code.CodeChallenge, &code.CodeChallengeMethod, &code.ExpiresAt, &code.CreatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("authorization code not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get authorization code")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &code, nil
}

// DeleteAuthCode removes an authorization code. A missing row is not an
// error: consumption is idempotent by absence.
func (cm *codeManager) DeleteAuthCode(ctx context.Context, codeID string) apperrors.Error {
	_, errdb := cm.conn().ExecContext(ctx, `
		DELETE FROM authorization_codes
		WHERE code_id = $1`, codeID)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to delete authorization code")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// CreateDeviceCode stores a new device authorization grant.
func (cm *codeManager) CreateDeviceCode(ctx context.Context, code *models.DeviceCode) apperrors.Error {
	query := `
		INSERT INTO device_codes (device_code, user_code, client_id, user_id, scopes, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	row := cm.conn().QueryRowContext(ctx, query,
		code.DeviceCode, code.UserCode, code.ClientID, code.UserID, code.Scopes, code.Status, code.ExpiresAt)
	errdb := row.Scan(&code.CreatedAt)
	if errdb != nil {
		if pgErr, ok := errdb.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return dberror.ErrAlreadyExists.Msg("device code already exists")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to create device code")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// GetDeviceCode retrieves a device grant by its device code.
func (cm *codeManager) GetDeviceCode(ctx context.Context, deviceCode string) (*models.DeviceCode, apperrors.Error) {
	query := `
		SELECT device_code, user_code, client_id, user_id, scopes, status, expires_at, created_at
		FROM device_codes
		WHERE device_code = $1`

	var code models.DeviceCode
	row := cm.conn().QueryRowContext(ctx, query, deviceCode)
	errdb := row.Scan(&code.DeviceCode, &code.UserCode, &code.ClientID, &code.UserID, &code.Scopes, &code.Status, &code.ExpiresAt, &code.CreatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("device code not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get device code")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &code, nil
}

// GetDeviceCodeByUserCode retrieves a device grant by its user code.
func (cm *codeManager) GetDeviceCodeByUserCode(ctx context.Context, userCode string) (*models.DeviceCode, apperrors.Error) {
	query := `
		SELECT device_code, user_code, client_id, user_id, scopes, status, expires_at, created_at
		FROM device_codes
		WHERE user_code = $1`

	var code models.DeviceCode
	row := cm.conn().QueryRowContext(ctx, query, userCode)
	errdb := row.Scan(&code.DeviceCode, &code.UserCode, &code.ClientID, &code.UserID, &code.Scopes, &code.Status, &code.ExpiresAt, &code.CreatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("device code not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get device code by user code")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &code, nil
}

// UpdateDeviceCodeStatus records the user's approval decision on a device grant.
func (cm *codeManager) UpdateDeviceCodeStatus(ctx context.Context, deviceCode string, userID string, status string) apperrors.Error {
	query := `
		UPDATE device_codes
		SET user_id = $1, status = $2
		WHERE device_code = $3
		RETURNING device_code`

	row := cm.conn().QueryRowContext(ctx, query, userID, status, deviceCode)
	var returned string
	errdb := row.Scan(&returned)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("device code not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to update device code status")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// DeleteDeviceCode removes a device grant. A missing row is not an error:
// consumption is idempotent by absence.
func (cm *codeManager) DeleteDeviceCode(ctx context.Context, deviceCode string) apperrors.Error {
	_, errdb := cm.conn().ExecContext(ctx, `
		DELETE FROM device_codes
		WHERE device_code = $1`, deviceCode)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to delete device code")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// DeleteExpiredCodes removes expired authorization and device codes and
// returns the total number of rows deleted.
func (cm *codeManager) DeleteExpiredCodes(ctx context.Context, before time.Time) (int64, apperrors.Error) {
	var total int64
	for _, table := range []string{"authorization_codes", "device_codes"} {
		res, errdb := cm.conn().ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at < $1`, before)
		if errdb != nil {
			log.Ctx(ctx).Error().Err(errdb).Str("table", table).Msg("failed to delete expired codes")
			return total, dberror.ErrDatabase.Err(errdb)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
