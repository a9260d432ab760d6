package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/common/httpx"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/codes"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
)

type issueAuthCodeReq struct {
	ClientID            string   `json:"clientId" validate:"required"`
	UserID              string   `json:"userId" validate:"required"`
	RedirectURI         string   `json:"redirectUri" validate:"required,uri"`
	Scopes              []string `json:"scopes"`
	Nonce               string   `json:"nonce"`
	CodeChallenge       string   `json:"codeChallenge"`
	CodeChallengeMethod string   `json:"codeChallengeMethod"`
}

type consumeAuthCodeReq struct {
	Code        string `json:"code" validate:"required"`
	ClientID    string `json:"clientId" validate:"required"`
	RedirectURI string `json:"redirectUri"`
}

type authCodeRsp struct {
	Code        string    `json:"code"`
	ClientID    string    `json:"clientId"`
	UserID      string    `json:"userId"`
	RedirectURI string    `json:"redirectUri"`
	Scopes      []string  `json:"scopes"`
	Nonce       string    `json:"nonce,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func codesRouter() chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/", httpx.WrapHttpRsp(issueAuthCode))
	r.Method(http.MethodPost, "/consume", httpx.WrapHttpRsp(consumeAuthCode))
	r.Method(http.MethodDelete, "/{codeID}", httpx.WrapHttpRsp(revokeAuthCode))
	return r
}

func issueAuthCode(r *http.Request) (*httpx.Response, error) {
	req := &issueAuthCodeReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	code, apperr := codes.GenerateCode(r.Context(), &codes.AuthCodeRequest{
		ClientID:            req.ClientID,
		UserID:              req.UserID,
		RedirectURI:         req.RedirectURI,
		Scopes:              req.Scopes,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	})
	if apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Response:   newAuthCodeRsp(code),
	}, nil
}

func consumeAuthCode(r *http.Request) (*httpx.Response, error) {
	req := &consumeAuthCodeReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	code, apperr := codes.ConsumeAuthCode(r.Context(), req.Code, req.ClientID, req.RedirectURI)
	if apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   newAuthCodeRsp(code),
	}, nil
}

func revokeAuthCode(r *http.Request) (*httpx.Response, error) {
	if apperr := codes.CodeUsed(r.Context(), chi.URLParam(r, "codeID")); apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusNoContent,
	}, nil
}

type issueDeviceCodeReq struct {
	ClientID string   `json:"clientId" validate:"required"`
	Scopes   []string `json:"scopes"`
}

type pollDeviceCodeReq struct {
	DeviceCode string `json:"deviceCode" validate:"required"`
	ClientID   string `json:"clientId" validate:"required"`
}

type decideDeviceCodeReq struct {
	UserCode string `json:"userCode" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
}

type deviceCodeRsp struct {
	DeviceCode string    `json:"deviceCode"`
	UserCode   string    `json:"userCode"`
	ClientID   string    `json:"clientId"`
	UserID     string    `json:"userId,omitempty"`
	Scopes     []string  `json:"scopes"`
	Status     string    `json:"status"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func deviceRouter() chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/", httpx.WrapHttpRsp(issueDeviceCode))
	r.Method(http.MethodPost, "/poll", httpx.WrapHttpRsp(pollDeviceCode))
	r.Method(http.MethodPost, "/approve", httpx.WrapHttpRsp(approveDeviceCode))
	r.Method(http.MethodPost, "/deny", httpx.WrapHttpRsp(denyDeviceCode))
	return r
}

func issueDeviceCode(r *http.Request) (*httpx.Response, error) {
	req := &issueDeviceCodeReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	code, apperr := codes.GenerateDeviceCode(r.Context(), req.ClientID, req.Scopes)
	if apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Response:   newDeviceCodeRsp(code),
	}, nil
}

func pollDeviceCode(r *http.Request) (*httpx.Response, error) {
	req := &pollDeviceCodeReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	code, apperr := codes.PollDeviceCode(r.Context(), req.DeviceCode, req.ClientID)
	if apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   newDeviceCodeRsp(code),
	}, nil
}

func approveDeviceCode(r *http.Request) (*httpx.Response, error) {
	return decideDeviceCode(r, codes.ApproveDeviceCode)
}

func denyDeviceCode(r *http.Request) (*httpx.Response, error) {
	return decideDeviceCode(r, codes.DenyDeviceCode)
}

func decideDeviceCode(r *http.Request, decide func(ctx context.Context, userCode, userID string) apperrors.Error) (*httpx.Response, error) {
	req := &decideDeviceCodeReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	if err := decide(r.Context(), req.UserCode, req.UserID); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: map[string]string{
			"userCode": req.UserCode,
		},
	}, nil
}

func newAuthCodeRsp(code *models.AuthorizationCode) authCodeRsp {
	return authCodeRsp{
		Code:        code.CodeID,
		ClientID:    code.ClientID,
		UserID:      code.UserID,
		RedirectURI: code.RedirectURI,
		Scopes:      authcommon.SplitScopes(code.Scopes),
		Nonce:       code.Nonce.String,
		ExpiresAt:   code.ExpiresAt,
	}
}

func newDeviceCodeRsp(code *models.DeviceCode) deviceCodeRsp {
	return deviceCodeRsp{
		DeviceCode: code.DeviceCode,
		UserCode:   code.UserCode,
		ClientID:   code.ClientID,
		UserID:     code.UserID.String,
		Scopes:     authcommon.SplitScopes(code.Scopes),
		Status:     code.Status,
		ExpiresAt:  code.ExpiresAt,
	}
}
