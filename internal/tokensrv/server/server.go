// Package server wires the HTTP surface of the token service: discovery
// and JWKS endpoints, the admin key API, and the token, entitlement, and
// grant code APIs.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/httpx"
	commonmiddleware "github.com/dewonderstruck/securetoken/internal/common/middleware"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/keymanager"
)

// TokenServer is the HTTP server of the token service.
type TokenServer struct {
	Router *chi.Mux
	km     keymanager.KeyManager
}

// CreateNewServer creates a new server with the singleton key manager.
func CreateNewServer() (*TokenServer, error) {
	s := &TokenServer{}
	s.Router = chi.NewRouter()
	s.km = keymanager.GetKeyManager()
	return s, nil
}

// MountHandlers installs the middleware stack and all routes.
func (s *TokenServer) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	s.Router.Use(commonmiddleware.SetTimeout(30 * time.Second))
	s.Router.Use(db.LoadDBMiddleware)
	if config.Config().HandleCORS {
		s.Router.Use(s.HandleCORS)
	}

	s.Router.Mount("/auth", authRouter())
	s.Router.Mount("/keys", keysRouter(s.km))
	s.Router.Mount("/tokens", tokensRouter())
	s.Router.Mount("/entitlements", entitlementsRouter())
	s.Router.Mount("/codes", codesRouter())
	s.Router.Mount("/device", deviceRouter())

	s.Router.Get("/version", s.getVersion)
	s.Router.Get("/ready", s.getReadiness)
	s.Router.Get("/.well-known/jwks.json", getJWKSHandler(s.km))
	s.Router.Get("/.well-known/openid-configuration", getDiscoveryHandler())
}

type getVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *TokenServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &getVersionRsp{
		ServerVersion: "SecureToken Server: " + authcommon.ServerVersion,
		ApiVersion:    authcommon.ApiVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *TokenServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")

	ctx, err := db.ConnCtx(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("database connection failed during readiness check")
		httpx.SendJsonRsp(r.Context(), w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "database connection failed",
		})
		return
	}
	defer db.DB(ctx).Close(ctx)

	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// HandleCORS provides CORS middleware for cross-origin requests.
func (s *TokenServer) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Accept-Encoding"},
		ExposedHeaders:   []string{"Link", "Location", commonmiddleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
