package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/httpx"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/keymanager"
)

// getJWKSHandler returns a handler that serves the JWKS endpoint.
func getJWKSHandler(km keymanager.KeyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Ctx(r.Context()).Debug().Msg("Serving JWKS request")

		jwks, err := km.JWKS(r.Context())
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("unable to assemble jwks")
			httpx.SendJsonRsp(r.Context(), w, http.StatusInternalServerError, map[string]string{
				"error": "unable to assemble key set",
			})
			return
		}
		httpx.SendJsonRsp(r.Context(), w, http.StatusOK, jwks)
	}
}

// discoveryDocument is the OpenID Connect provider metadata served at the
// well-known discovery endpoint.
type discoveryDocument struct {
	Issuer                           string   `json:"issuer"`
	JwksURI                          string   `json:"jwks_uri"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	DeviceAuthorizationEndpoint      string   `json:"device_authorization_endpoint"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported"`
}

func getDiscoveryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Ctx(r.Context()).Debug().Msg("Serving discovery request")

		issuer := config.Config().Issuer
		doc := &discoveryDocument{
			Issuer:                      issuer,
			JwksURI:                     issuer + "/.well-known/jwks.json",
			AuthorizationEndpoint:       issuer + "/codes",
			TokenEndpoint:               issuer + "/tokens",
			DeviceAuthorizationEndpoint: issuer + "/device",
			ResponseTypesSupported:      []string{"code"},
			GrantTypesSupported: []string{
				"authorization_code",
				"refresh_token",
				"urn:ietf:params:oauth:grant-type:device_code",
			},
			SubjectTypesSupported:            []string{"public"},
			IDTokenSigningAlgValuesSupported: []string{"ES256"},
			ScopesSupported:                  []string{"openid"},
			ClaimsSupported: []string{
				"iss", "sub", "aud", "exp", "iat", "jti", "scope", "nonce", "auth_time",
			},
			CodeChallengeMethodsSupported: []string{"S256", "plain"},
		}
		httpx.SendJsonRsp(r.Context(), w, http.StatusOK, doc)
	}
}
