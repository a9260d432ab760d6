// Package db provides database interfaces and implementations for the
// token service. It defines four managers:
// - KeyManager: signing key storage, rotation, and audit
// - TokenManager: access, refresh, and ID token records
// - CodeManager: authorization and device codes
// - UserManager: user accounts
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/common/uuid"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dbmanager"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/postgresql"
)

// KeyManager handles signing key storage. Key pairs are stored as two rows
// (private and public halves) sharing a generation number. Writes that
// change key state also write the audit trail in the same transaction.
// All operations require a valid context and may return apperrors.Error.
type KeyManager interface {
	CreateSigningKeyPair(ctx context.Context, priv, pub *models.SigningKey, operation string) apperrors.Error
	GetSigningKey(ctx context.Context, keyID uuid.UUID) (*models.SigningKey, apperrors.Error)
	GetActiveSigningKey(ctx context.Context, keyType string) (*models.SigningKey, apperrors.Error)
	ListSigningKeys(ctx context.Context) ([]*models.SigningKey, apperrors.Error)
	DeactivateSigningKey(ctx context.Context, keyID uuid.UUID, operation string) apperrors.Error
	DeleteSigningKey(ctx context.Context, keyID uuid.UUID) apperrors.Error
	ListKeyOperations(ctx context.Context, keyID uuid.UUID) ([]*models.KeyOperationLog, apperrors.Error)
	DeleteExpiredSigningKeys(ctx context.Context, before time.Time) (int64, apperrors.Error)
}

// TokenManager handles records of issued tokens.
type TokenManager interface {
	CreateAccessToken(ctx context.Context, token *models.AccessToken) apperrors.Error
	GetAccessToken(ctx context.Context, jti string) (*models.AccessToken, apperrors.Error)
	DeleteAccessToken(ctx context.Context, jti string) apperrors.Error
	DeleteAccessTokensBefore(ctx context.Context, userID string, before time.Time, excludeJTI string) (int64, apperrors.Error)

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) apperrors.Error
	GetRefreshToken(ctx context.Context, jti string) (*models.RefreshToken, apperrors.Error)
	UpdateRefreshTokenScopes(ctx context.Context, jti string, scopes string) apperrors.Error
	DeleteRefreshTokensBefore(ctx context.Context, userID string, before time.Time, excludeJTI string) (int64, apperrors.Error)

	CreateIDToken(ctx context.Context, token *models.IDToken) apperrors.Error
	GetIDToken(ctx context.Context, jti string) (*models.IDToken, apperrors.Error)

	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, apperrors.Error)
}

// CodeManager handles authorization and device codes.
type CodeManager interface {
	CreateAuthCode(ctx context.Context, code *models.AuthorizationCode) apperrors.Error
	GetAuthCode(ctx context.Context, codeID string) (*models.AuthorizationCode, apperrors.Error)
	DeleteAuthCode(ctx context.Context, codeID string) apperrors.Error

	CreateDeviceCode(ctx context.Context, code *models.DeviceCode) apperrors.Error
	GetDeviceCode(ctx context.Context, deviceCode string) (*models.DeviceCode, apperrors.Error)
	GetDeviceCodeByUserCode(ctx context.Context, userCode string) (*models.DeviceCode, apperrors.Error)
	UpdateDeviceCodeStatus(ctx context.Context, deviceCode string, userID string, status string) apperrors.Error
	DeleteDeviceCode(ctx context.Context, deviceCode string) apperrors.Error

	DeleteExpiredCodes(ctx context.Context, before time.Time) (int64, apperrors.Error)
}

// UserManager handles user accounts.
type UserManager interface {
	CreateUser(ctx context.Context, user *models.User) apperrors.Error
	GetUser(ctx context.Context, userID string) (*models.User, apperrors.Error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, apperrors.Error)
	UpdateUserRoles(ctx context.Context, userID string, roles []string) apperrors.Error
	DeleteUser(ctx context.Context, userID string) apperrors.Error
}

// ConnectionManager handles the lifecycle of the underlying connection.
type ConnectionManager interface {
	// Close returns the connection to the database pool.
	Close(ctx context.Context)
}

// Database interface combines the managers into a single interface.
// This allows for a unified database access layer while maintaining
// separation of concerns.
type Database interface {
	KeyManager
	TokenManager
	CodeManager
	UserManager
	ConnectionManager
}

var pool dbmanager.Pool

// Init initializes the database connection pool.
func Init() {
	ctx := log.Logger.WithContext(context.Background())
	pg := dbmanager.NewPool(ctx, "postgresql")
	if pg == nil {
		panic("unable to create db pool")
	}
	pool = pg
}

// Conn returns a new database connection from the pool.
// Returns an error if the connection cannot be established.
func Conn(ctx context.Context) (dbmanager.Conn, error) {
	if pool != nil {
		conn, err := pool.Conn(ctx)
		if err == nil {
			return conn, nil
		}
		log.Ctx(ctx).Error().Err(err).Msg("unable to get db connection")
		return nil, err
	}
	return nil, fmt.Errorf("database pool not initialized")
}

type ctxDbKeyType string

const ctxDbKey ctxDbKeyType = "SecureTokenDb"

// ConnCtx adds a database connection to the context.
// Returns an error if the connection cannot be established.
func ConnCtx(ctx context.Context) (context.Context, error) {
	conn, err := Conn(ctx)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, ctxDbKey, conn), nil
}

type tokenStoreDb struct {
	KeyManager
	TokenManager
	CodeManager
	UserManager
	conn dbmanager.Conn
}

func (d *tokenStoreDb) Close(ctx context.Context) {
	d.conn.Close(ctx)
}

// DB returns a new database instance from the context.
// It expects a valid database connection in the context.
// Returns nil if no connection is found in the context.
func DB(ctx context.Context) Database {
	if conn, ok := ctx.Value(ctxDbKey).(dbmanager.Conn); ok {
		km, tm, cm, um := postgresql.NewTokenStoreDb(conn)
		return &tokenStoreDb{
			KeyManager:   km,
			TokenManager: tm,
			CodeManager:  cm,
			UserManager:  um,
			conn:         conn,
		}
	}
	log.Ctx(ctx).Error().Msg("unable to get db connection from context")
	return nil
}
