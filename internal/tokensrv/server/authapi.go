package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dewonderstruck/securetoken/internal/common/httpx"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/token"
)

type registerUserReq struct {
	Username string   `json:"username" validate:"required"`
	Password string   `json:"password" validate:"required,min=8"`
	Roles    []string `json:"roles"`
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userRsp struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
}

func authRouter() chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/register", httpx.WrapHttpRsp(registerUser))
	r.Method(http.MethodPost, "/login", httpx.WrapHttpRsp(loginUser))
	return r
}

func registerUser(r *http.Request) (*httpx.Response, error) {
	req := &registerUserReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	user, apperr := token.RegisterUser(r.Context(), req.Username, req.Password, req.Roles)
	if apperr != nil {
		return nil, apperr
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Response: userRsp{
			UserID:    user.UserID,
			Username:  user.Username,
			Roles:     user.Roles,
			CreatedAt: user.CreatedAt,
		},
	}, nil
}

func loginUser(r *http.Request) (*httpx.Response, error) {
	req := &loginReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	userID, ok, apperr := token.AuthenticateUser(r.Context(), req.Username, req.Password)
	if apperr != nil {
		return nil, apperr
	}
	if !ok {
		return nil, token.ErrUnauthorized.Msg("invalid username or password")
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: map[string]any{
			"userId":        userID,
			"authenticated": true,
		},
	}, nil
}
