package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dewonderstruck/securetoken/internal/common/httpx"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/token"
)

var validate = validator.New()

type issueTokensReq struct {
	ClientID       string   `json:"clientId" validate:"required"`
	UserID         string   `json:"userId" validate:"required"`
	Scopes         []string `json:"scopes" validate:"required,min=1"`
	Nonce          string   `json:"nonce"`
	IncludeIDToken bool     `json:"includeIdToken"`
}

type introspectReq struct {
	Token string `json:"token" validate:"required"`
}

type updateRefreshScopesReq struct {
	Scopes []string `json:"scopes" validate:"required,min=1"`
}

// tokenRecordRsp describes a stored token record.
type tokenRecordRsp struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"userId"`
	ClientID  string    `json:"clientId"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func tokensRouter() chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/", httpx.WrapHttpRsp(issueTokens))
	r.Method(http.MethodPost, "/introspect", httpx.WrapHttpRsp(introspectAccessToken))
	r.Method(http.MethodPost, "/refresh/introspect", httpx.WrapHttpRsp(introspectRefreshToken))
	r.Method(http.MethodPut, "/refresh/{jti}", httpx.WrapHttpRsp(updateRefreshScopes))
	return r
}

func issueTokens(r *http.Request) (*httpx.Response, error) {
	req := &issueTokensReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	issuer, apperr := token.NewIssuer(r.Context())
	if apperr != nil {
		return nil, apperr
	}

	var set *token.TokenSet
	if req.IncludeIDToken {
		set, apperr = issuer.GenerateTokens(r.Context(), req.ClientID, req.UserID, req.Scopes, req.Nonce, nil)
	} else {
		set, apperr = issuer.GenerateAccessRefreshTokens(r.Context(), req.ClientID, req.UserID, req.Scopes)
	}
	if apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Response:   set,
	}, nil
}

func introspectAccessToken(r *http.Request) (*httpx.Response, error) {
	req := &introspectReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	issuer, apperr := token.NewIssuer(r.Context())
	if apperr != nil {
		return nil, apperr
	}
	record, apperr := issuer.GetAccessToken(r.Context(), req.Token)
	if apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: tokenRecordRsp{
			JTI:       record.JTI,
			UserID:    record.UserID,
			ClientID:  record.ClientID,
			Scopes:    authcommon.SplitScopes(record.Scopes),
			ExpiresAt: record.ExpiresAt,
			CreatedAt: record.CreatedAt,
		},
	}, nil
}

func introspectRefreshToken(r *http.Request) (*httpx.Response, error) {
	req := &introspectReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	issuer, apperr := token.NewIssuer(r.Context())
	if apperr != nil {
		return nil, apperr
	}
	record, apperr := issuer.GetRefreshToken(r.Context(), req.Token)
	if apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: tokenRecordRsp{
			JTI:       record.JTI,
			UserID:    record.UserID,
			ClientID:  record.ClientID,
			Scopes:    authcommon.SplitScopes(record.Scopes),
			ExpiresAt: record.ExpiresAt,
			CreatedAt: record.CreatedAt,
		},
	}, nil
}

func updateRefreshScopes(r *http.Request) (*httpx.Response, error) {
	jti := chi.URLParam(r, "jti")
	req := &updateRefreshScopesReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	issuer, apperr := token.NewIssuer(r.Context())
	if apperr != nil {
		return nil, apperr
	}
	if apperr := issuer.UpdateRefreshTokenScopes(r.Context(), jti, req.Scopes); apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: map[string]any{
			"jti":    jti,
			"scopes": req.Scopes,
		},
	}, nil
}

type entitlementReq struct {
	UserID string   `json:"userId" validate:"required"`
	Scopes []string `json:"scopes" validate:"required,min=1"`
}

type entitlementRsp struct {
	Entitled bool     `json:"entitled"`
	Roles    []string `json:"roles,omitempty"`
}

func entitlementsRouter() chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/check", httpx.WrapHttpRsp(checkEntitlement))
	return r
}

func checkEntitlement(r *http.Request) (*httpx.Response, error) {
	req := &entitlementReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	entitled, roles, apperr := token.IsUserEntitled(r.Context(), req.UserID, req.Scopes)
	if apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: entitlementRsp{
			Entitled: entitled,
			Roles:    roles,
		},
	}, nil
}
