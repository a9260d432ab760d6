package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/common/uuid"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dberror"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
)

// CreateSigningKeyPair stores a new key pair in a single transaction.
// The pair is assigned the next generation number, any previously active
// keys are deactivated, and one audit row is written per half.
func (km *keyManager) CreateSigningKeyPair(ctx context.Context, priv, pub *models.SigningKey, operation string) apperrors.Error {
	tx, errdb := km.conn().BeginTx(ctx, &sql.TxOptions{})
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to start transaction")
		return dberror.ErrDatabase.Err(errdb)
	}

	var txErr error
	defer func() {
		if txErr != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.Ctx(ctx).Error().Err(rollbackErr).Msg("failed to rollback transaction")
			}
		}
	}()

	// Next generation number. The max is taken under the transaction so
	// concurrent rotations serialize on the insert below.
	var generation int64
	row := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(generation), 0) + 1
		FROM signing_keys`)
	if txErr = row.Scan(&generation); txErr != nil {
		log.Ctx(ctx).Error().Err(txErr).Msg("failed to compute key generation")
		return dberror.ErrDatabase.Err(txErr)
	}

	// Deactivate any existing active keys
	_, txErr = tx.ExecContext(ctx, `
		UPDATE signing_keys
		SET is_active = false, updated_at = NOW()
		WHERE is_active = true`)
	if txErr != nil {
		log.Ctx(ctx).Error().Err(txErr).Msg("failed to deactivate existing keys")
		return dberror.ErrDatabase.Err(txErr)
	}

	for _, key := range []*models.SigningKey{priv, pub} {
		if key.KeyID == uuid.Nil {
			key.KeyID = uuid.New()
		}
		key.Generation = generation
		key.IsActive = true

		query := `
			INSERT INTO signing_keys (key_id, key_type, key_value, generation, is_active, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING key_id, created_at, updated_at`

		row := tx.QueryRowContext(ctx, query, key.KeyID, key.KeyType, key.KeyValue, key.Generation, key.IsActive, key.ExpiresAt)
		txErr = row.Scan(&key.KeyID, &key.CreatedAt, &key.UpdatedAt)
		if txErr != nil {
			log.Ctx(ctx).Error().Err(txErr).Msg("failed to create signing key")
			return dberror.ErrDatabase.Err(txErr)
		}

		_, txErr = tx.ExecContext(ctx, `
			INSERT INTO key_operations (id, key_id, operation)
			VALUES ($1, $2, $3)`, uuid.New(), key.KeyID, operation)
		if txErr != nil {
			log.Ctx(ctx).Error().Err(txErr).Msg("failed to record key operation")
			return dberror.ErrDatabase.Err(txErr)
		}
	}

	if txErr = tx.Commit(); txErr != nil {
		log.Ctx(ctx).Error().Err(txErr).Msg("failed to commit transaction")
		return dberror.ErrDatabase.Err(txErr)
	}

	return nil
}

// GetSigningKey retrieves a signing key by its ID.
func (km *keyManager) GetSigningKey(ctx context.Context, keyID uuid.UUID) (*models.SigningKey, apperrors.Error) {
	query := `
		SELECT key_id, key_type, key_value, generation, is_active, expires_at, created_at, updated_at
		FROM signing_keys
		WHERE key_id = $1`

	var key models.SigningKey
	row := km.conn().QueryRowContext(ctx, query, keyID)
	errdb := row.Scan(&key.KeyID, &key.KeyType, &key.KeyValue, &key.Generation, &key.IsActive, &key.ExpiresAt, &key.CreatedAt, &key.UpdatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("signing key not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get signing key")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &key, nil
}

// GetActiveSigningKey retrieves the active signing key of the given type.
func (km *keyManager) GetActiveSigningKey(ctx context.Context, keyType string) (*models.SigningKey, apperrors.Error) {
	query := `
		SELECT key_id, key_type, key_value, generation, is_active, expires_at, created_at, updated_at
		FROM signing_keys
		WHERE is_active = true AND key_type = $1`

	var key models.SigningKey
	row := km.conn().QueryRowContext(ctx, query, keyType)
	errdb := row.Scan(&key.KeyID, &key.KeyType, &key.KeyValue, &key.Generation, &key.IsActive, &key.ExpiresAt, &key.CreatedAt, &key.UpdatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("no active signing key found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get active signing key")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &key, nil
}

// ListSigningKeys returns all stored signing keys, newest generation first.
func (km *keyManager) ListSigningKeys(ctx context.Context) ([]*models.SigningKey, apperrors.Error) {
	query := `
		SELECT key_id, key_type, key_value, generation, is_active, expires_at, created_at, updated_at
		FROM signing_keys
		ORDER BY generation DESC, key_type`

	rows, errdb := km.conn().QueryContext(ctx, query)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to list signing keys")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	var keys []*models.SigningKey
	for rows.Next() {
		var key models.SigningKey
		if errdb := rows.Scan(&key.KeyID, &key.KeyType, &key.KeyValue, &key.Generation, &key.IsActive, &key.ExpiresAt, &key.CreatedAt, &key.UpdatedAt); errdb != nil {
			log.Ctx(ctx).Error().Err(errdb).Msg("failed to scan signing key")
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		keys = append(keys, &key)
	}
	if errdb := rows.Err(); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to iterate signing keys")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return keys, nil
}

// DeactivateSigningKey marks a key inactive and writes an audit row in the
// same transaction. Deactivating an already inactive key still records the
// operation.
func (km *keyManager) DeactivateSigningKey(ctx context.Context, keyID uuid.UUID, operation string) apperrors.Error {
	tx, errdb := km.conn().BeginTx(ctx, &sql.TxOptions{})
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to start transaction")
		return dberror.ErrDatabase.Err(errdb)
	}

	var txErr error
	defer func() {
		if txErr != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.Ctx(ctx).Error().Err(rollbackErr).Msg("failed to rollback transaction")
			}
		}
	}()

	query := `
		UPDATE signing_keys
		SET is_active = false, updated_at = NOW()
		WHERE key_id = $1
		RETURNING key_id`

	row := tx.QueryRowContext(ctx, query, keyID)
	var returnedKeyID uuid.UUID
	txErr = row.Scan(&returnedKeyID)
	if txErr != nil {
		if txErr == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("signing key not found")
		}
		log.Ctx(ctx).Error().Err(txErr).Msg("failed to deactivate signing key")
		return dberror.ErrDatabase.Err(txErr)
	}

	_, txErr = tx.ExecContext(ctx, `
		INSERT INTO key_operations (id, key_id, operation)
		VALUES ($1, $2, $3)`, uuid.New(), keyID, operation)
	if txErr != nil {
		log.Ctx(ctx).Error().Err(txErr).Msg("failed to record key operation")
		return dberror.ErrDatabase.Err(txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		log.Ctx(ctx).Error().Err(txErr).Msg("failed to commit transaction")
		return dberror.ErrDatabase.Err(txErr)
	}

	return nil
}

// DeleteSigningKey deletes a signing key by its ID. Audit rows are removed
// by the foreign key cascade.
func (km *keyManager) DeleteSigningKey(ctx context.Context, keyID uuid.UUID) apperrors.Error {
	query := `
		DELETE FROM signing_keys
		WHERE key_id = $1
		RETURNING key_id`

	row := km.conn().QueryRowContext(ctx, query, keyID)
	var returnedKeyID uuid.UUID
	errdb := row.Scan(&returnedKeyID)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("signing key not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to delete signing key")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// ListKeyOperations returns the audit trail for a key, oldest first.
func (km *keyManager) ListKeyOperations(ctx context.Context, keyID uuid.UUID) ([]*models.KeyOperationLog, apperrors.Error) {
	query := `
		SELECT id, key_id, operation, created_at
		FROM key_operations
		WHERE key_id = $1
		ORDER BY created_at`

	rows, errdb := km.conn().QueryContext(ctx, query, keyID)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to list key operations")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	var ops []*models.KeyOperationLog
	for rows.Next() {
		var op models.KeyOperationLog
		if errdb := rows.Scan(&op.ID, &op.KeyID, &op.Operation, &op.CreatedAt); errdb != nil {
			log.Ctx(ctx).Error().Err(errdb).Msg("failed to scan key operation")
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		ops = append(ops, &op)
	}
	if errdb := rows.Err(); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to iterate key operations")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return ops, nil
}

// DeleteExpiredSigningKeys removes inactive keys whose expiry is before the
// given time. Active keys are never swept.
func (km *keyManager) DeleteExpiredSigningKeys(ctx context.Context, before time.Time) (int64, apperrors.Error) {
	res, errdb := km.conn().ExecContext(ctx, `
		DELETE FROM signing_keys
		WHERE is_active = false AND expires_at < $1`, before)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to delete expired signing keys")
		return 0, dberror.ErrDatabase.Err(errdb)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
