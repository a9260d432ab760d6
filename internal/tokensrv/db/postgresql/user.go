package postgresql

import (
	"context"
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dberror"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
)

// CreateUser stores a new user account.
func (um *userManager) CreateUser(ctx context.Context, user *models.User) apperrors.Error {
	query := `
		INSERT INTO users (user_id, username, password_hash, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	row := um.conn().QueryRowContext(ctx, query, user.UserID, user.Username, user.PasswordHash, user.Roles)
	errdb := row.Scan(&user.CreatedAt, &user.UpdatedAt)
	if errdb != nil {
		if pgErr, ok := errdb.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return dberror.ErrAlreadyExists.Msg("user already exists")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to create user")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// GetUser retrieves a user by ID.
func (um *userManager) GetUser(ctx context.Context, userID string) (*models.User, apperrors.Error) {
	query := `
		SELECT user_id, username, password_hash, roles, created_at, updated_at
		FROM users
		WHERE user_id = $1`

	var user models.User
	row := um.conn().QueryRowContext(ctx, query, userID)
	errdb := row.Scan(&user.UserID, &user.Username, &user.PasswordHash, &user.Roles, &user.CreatedAt, &user.UpdatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("user not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get user")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (um *userManager) GetUserByUsername(ctx context.Context, username string) (*models.User, apperrors.Error) {
	query := `
		SELECT user_id, username, password_hash, roles, created_at, updated_at
		FROM users
		WHERE username = $1`

	var user models.User
	row := um.conn().QueryRowContext(ctx, query, username)
	errdb := row.Scan(&user.UserID, &user.Username, &user.PasswordHash, &user.Roles, &user.CreatedAt, &user.UpdatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("user not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get user by username")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &user, nil
}

// UpdateUserRoles replaces the role set recorded for a user.
func (um *userManager) UpdateUserRoles(ctx context.Context, userID string, roles []string) apperrors.Error {
	query := `
		UPDATE users
		SET roles = $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING user_id`

	row := um.conn().QueryRowContext(ctx, query, pq.StringArray(roles), userID)
	var returned string
	errdb := row.Scan(&returned)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("user not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to update user roles")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// DeleteUser removes a user account.
func (um *userManager) DeleteUser(ctx context.Context, userID string) apperrors.Error {
	query := `
		DELETE FROM users
		WHERE user_id = $1
		RETURNING user_id`

	row := um.conn().QueryRowContext(ctx, query, userID)
	var returned string
	errdb := row.Scan(&returned)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("user not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to delete user")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}
