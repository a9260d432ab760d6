// Package codes manages the short-lived grant codes of the authorization
// code and device authorization flows. Codes are single-use: marking a
// code used deletes its row, and a missing row means the code was already
// used.
package codes

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	goerrors "errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dberror"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
)

// userCodeAlphabet avoids ambiguous characters so user codes survive being
// read aloud or handwritten.
const userCodeAlphabet = "ABCDEFGHJKLMNPQRSTVWXYZ23456789"

// AuthCodeRequest carries the parameters of an authorization code grant.
type AuthCodeRequest struct {
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              []string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// GenerateCode mints a single-use authorization code and stores it before
// returning. A storage failure fails the issuance; the caller never
// receives a code that was not persisted.
func GenerateCode(ctx context.Context, req *AuthCodeRequest) (*models.AuthorizationCode, apperrors.Error) {
	if req == nil || req.ClientID == "" || req.UserID == "" || req.RedirectURI == "" {
		return nil, ErrBadRequest.Msg("client, user, and redirect uri are required")
	}

	codeID, apperr := randomCode()
	if apperr != nil {
		return nil, apperr
	}

	code := &models.AuthorizationCode{
		CodeID:              codeID,
		ClientID:            req.ClientID,
		UserID:              req.UserID,
		RedirectURI:         req.RedirectURI,
		Scopes:              authcommon.JoinScopes(req.Scopes),
		Nonce:               sql.NullString{String: req.Nonce, Valid: req.Nonce != ""},
		CodeChallenge:       sql.NullString{String: req.CodeChallenge, Valid: req.CodeChallenge != ""},
		CodeChallengeMethod: sql.NullString{String: req.CodeChallengeMethod, Valid: req.CodeChallengeMethod != ""},
		ExpiresAt:           time.Now().Add(config.Config().Auth.GetAuthCodeValidityOrDefault()),
	}
	if apperr := db.DB(ctx).CreateAuthCode(ctx, code); apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Msg("unable to store authorization code")
		return nil, ErrInternal.MsgErr("unable to store authorization code", apperr)
	}

	log.Ctx(ctx).Info().Str("client_id", req.ClientID).Msg("authorization code issued")
	return code, nil
}

// GetCode looks up an authorization code. A code that does not exist, for
// instance one already used, returns nil without an error.
func GetCode(ctx context.Context, codeID string) (*models.AuthorizationCode, apperrors.Error) {
	if codeID == "" {
		return nil, ErrBadRequest.Msg("code is required")
	}
	code, apperr := db.DB(ctx).GetAuthCode(ctx, codeID)
	if apperr != nil {
		if goerrors.Is(apperr, dberror.ErrNotFound) {
			return nil, nil
		}
		return nil, ErrInternal.MsgErr("unable to load authorization code", apperr)
	}
	return code, nil
}

// CodeUsed marks an authorization code as consumed by deleting it. Marking
// a code that is already gone is not an error.
func CodeUsed(ctx context.Context, codeID string) apperrors.Error {
	if codeID == "" {
		return ErrBadRequest.Msg("code is required")
	}
	if apperr := db.DB(ctx).DeleteAuthCode(ctx, codeID); apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Str("code_id", codeID).Msg("unable to delete authorization code")
		return ErrInternal.MsgErr("unable to delete authorization code", apperr)
	}
	return nil
}

// ConsumeAuthCode redeems an authorization code. The code must match the
// presenting client and redirect URI and must not be expired. The row is
// deleted on every outcome that reaches it, so a replayed code is simply
// not found.
func ConsumeAuthCode(ctx context.Context, codeID, clientID, redirectURI string) (*models.AuthorizationCode, apperrors.Error) {
	if codeID == "" || clientID == "" {
		return nil, ErrBadRequest.Msg("code and client are required")
	}

	code, apperr := GetCode(ctx, codeID)
	if apperr != nil {
		return nil, apperr
	}
	if code == nil {
		return nil, ErrCodeNotFound
	}

	if apperr := CodeUsed(ctx, codeID); apperr != nil {
		return nil, apperr
	}

	if code.ClientID != clientID {
		return nil, ErrBadRequest.Msg("code was not issued to this client")
	}
	if redirectURI != "" && code.RedirectURI != redirectURI {
		return nil, ErrBadRequest.Msg("redirect uri does not match")
	}
	if code.ExpiresAt.Before(time.Now()) {
		return nil, ErrCodeExpired
	}
	return code, nil
}

// GenerateDeviceCode starts a device authorization grant. The returned
// record carries both the device code polled by the client and the short
// user code the user enters to approve the grant.
func GenerateDeviceCode(ctx context.Context, clientID string, scopes []string) (*models.DeviceCode, apperrors.Error) {
	if clientID == "" {
		return nil, ErrBadRequest.Msg("client is required")
	}

	deviceCode, apperr := randomCode()
	if apperr != nil {
		return nil, apperr
	}
	userCode, apperr := randomUserCode(userCodeLength())
	if apperr != nil {
		return nil, apperr
	}

	code := &models.DeviceCode{
		DeviceCode: deviceCode,
		UserCode:   userCode,
		ClientID:   clientID,
		Scopes:     authcommon.JoinScopes(scopes),
		Status:     models.DeviceCodeStatusPending,
		ExpiresAt:  time.Now().Add(config.Config().Auth.GetDeviceCodeValidityOrDefault()),
	}
	if apperr := db.DB(ctx).CreateDeviceCode(ctx, code); apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Msg("unable to store device code")
		return nil, ErrInternal.MsgErr("unable to store device code", apperr)
	}

	log.Ctx(ctx).Info().Str("client_id", clientID).Str("user_code", userCode).Msg("device code issued")
	return code, nil
}

// GetDeviceCode looks up a device grant by its device code. A grant that
// does not exist returns nil without an error.
func GetDeviceCode(ctx context.Context, deviceCode string) (*models.DeviceCode, apperrors.Error) {
	if deviceCode == "" {
		return nil, ErrBadRequest.Msg("device code is required")
	}
	code, apperr := db.DB(ctx).GetDeviceCode(ctx, deviceCode)
	if apperr != nil {
		if goerrors.Is(apperr, dberror.ErrNotFound) {
			return nil, nil
		}
		return nil, ErrInternal.MsgErr("unable to load device code", apperr)
	}
	return code, nil
}

// DeviceCodeUsed marks a device grant as consumed by deleting it. Marking
// a grant that is already gone is not an error.
func DeviceCodeUsed(ctx context.Context, deviceCode string) apperrors.Error {
	if deviceCode == "" {
		return ErrBadRequest.Msg("device code is required")
	}
	if apperr := db.DB(ctx).DeleteDeviceCode(ctx, deviceCode); apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Str("device_code", deviceCode).Msg("unable to delete device code")
		return ErrInternal.MsgErr("unable to delete device code", apperr)
	}
	return nil
}

// PollDeviceCode checks a device grant on behalf of the polling client.
// Pending grants return ErrCodePending. An approved grant is consumed and
// returned; a denied or expired grant is consumed and rejected.
func PollDeviceCode(ctx context.Context, deviceCode, clientID string) (*models.DeviceCode, apperrors.Error) {
	if deviceCode == "" || clientID == "" {
		return nil, ErrBadRequest.Msg("device code and client are required")
	}

	code, apperr := GetDeviceCode(ctx, deviceCode)
	if apperr != nil {
		return nil, apperr
	}
	if code == nil {
		return nil, ErrCodeNotFound
	}
	if code.ClientID != clientID {
		return nil, ErrBadRequest.Msg("code was not issued to this client")
	}

	if code.ExpiresAt.Before(time.Now()) {
		if apperr := DeviceCodeUsed(ctx, deviceCode); apperr != nil {
			log.Ctx(ctx).Error().Err(apperr).Msg("unable to delete expired device code")
		}
		return nil, ErrCodeExpired
	}

	switch code.Status {
	case models.DeviceCodeStatusPending:
		return nil, ErrCodePending
	case models.DeviceCodeStatusDenied:
		if apperr := DeviceCodeUsed(ctx, deviceCode); apperr != nil {
			log.Ctx(ctx).Error().Err(apperr).Msg("unable to delete denied device code")
		}
		return nil, ErrCodeDenied
	case models.DeviceCodeStatusApproved:
		if apperr := DeviceCodeUsed(ctx, deviceCode); apperr != nil {
			return nil, apperr
		}
		return code, nil
	default:
		return nil, ErrInternal.Msg("device code in unknown state")
	}
}

// ApproveDeviceCode records the user's approval of the grant identified by
// the user code.
func ApproveDeviceCode(ctx context.Context, userCode, userID string) apperrors.Error {
	return decideDeviceCode(ctx, userCode, userID, models.DeviceCodeStatusApproved)
}

// DenyDeviceCode records the user's denial of the grant identified by the
// user code.
func DenyDeviceCode(ctx context.Context, userCode, userID string) apperrors.Error {
	return decideDeviceCode(ctx, userCode, userID, models.DeviceCodeStatusDenied)
}

func decideDeviceCode(ctx context.Context, userCode, userID, status string) apperrors.Error {
	if userCode == "" || userID == "" {
		return ErrBadRequest.Msg("user code and user are required")
	}

	code, apperr := db.DB(ctx).GetDeviceCodeByUserCode(ctx, userCode)
	if apperr != nil {
		if goerrors.Is(apperr, dberror.ErrNotFound) {
			return ErrCodeNotFound.Err(apperr)
		}
		return ErrInternal.MsgErr("unable to load device code", apperr)
	}
	if code.ExpiresAt.Before(time.Now()) {
		return ErrCodeExpired
	}
	if code.Status != models.DeviceCodeStatusPending {
		return ErrBadRequest.Msg("device code already decided")
	}

	if apperr := db.DB(ctx).UpdateDeviceCodeStatus(ctx, code.DeviceCode, userID, status); apperr != nil {
		return ErrInternal.MsgErr("unable to update device code", apperr)
	}
	log.Ctx(ctx).Info().Str("user_code", userCode).Str("status", status).Msg("device code decided")
	return nil
}

func randomCode() (string, apperrors.Error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", ErrInternal.MsgErr("unable to generate code", err)
	}
	return hex.EncodeToString(b), nil
}

func randomUserCode(length int) (string, apperrors.Error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", ErrInternal.MsgErr("unable to generate user code", err)
	}
	for i := range b {
		b[i] = userCodeAlphabet[int(b[i])%len(userCodeAlphabet)]
	}
	return string(b), nil
}

func userCodeLength() int {
	cfg := config.Config()
	if cfg == nil || cfg.Auth.UserCodeLength <= 0 {
		return 8
	}
	return cfg.Auth.UserCodeLength
}
