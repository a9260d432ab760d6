package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
)

func TestGetVersion(t *testing.T) {
	req, _ := http.NewRequest("GET", "/version", nil)
	rr := executeTestRequest(t, req)

	require.Equal(t, http.StatusOK, rr.Code)
	checkHeader(t, rr.Result().Header)

	var rsp getVersionRsp
	decodeBody(t, rr, &rsp)
	assert.True(t, strings.HasPrefix(rsp.ServerVersion, "SecureToken Server:"))
	assert.NotEmpty(t, rsp.ApiVersion)
}

func TestGetReadiness(t *testing.T) {
	req, _ := http.NewRequest("GET", "/ready", nil)
	rr := executeTestRequest(t, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var rsp map[string]string
	decodeBody(t, rr, &rsp)
	assert.Equal(t, "ready", rsp["status"])
}

func TestGetJWKS(t *testing.T) {
	// Ensure at least one active key exists.
	keyReq, _ := http.NewRequest("POST", "/keys", nil)
	setRequestBodyAndHeader(t, keyReq, `{}`)
	rr := executeTestRequest(t, keyReq)
	require.Equal(t, http.StatusCreated, rr.Code)

	req, _ := http.NewRequest("GET", "/.well-known/jwks.json", nil)
	rr = executeTestRequest(t, req)

	require.Equal(t, http.StatusOK, rr.Code)
	checkHeader(t, rr.Result().Header)

	var rsp struct {
		Keys []struct {
			Kty string `json:"kty"`
			Crv string `json:"crv"`
			Alg string `json:"alg"`
			Use string `json:"use"`
			Kid string `json:"kid"`
			X   string `json:"x"`
			Y   string `json:"y"`
		} `json:"keys"`
	}
	decodeBody(t, rr, &rsp)
	require.NotEmpty(t, rsp.Keys)
	for _, key := range rsp.Keys {
		assert.Equal(t, "EC", key.Kty)
		assert.Equal(t, "P-256", key.Crv)
		assert.Equal(t, "ES256", key.Alg)
		assert.Equal(t, "sig", key.Use)
		assert.NotEmpty(t, key.Kid)
		assert.NotEmpty(t, key.X)
		assert.NotEmpty(t, key.Y)
	}
}

func TestGetDiscoveryDocument(t *testing.T) {
	req, _ := http.NewRequest("GET", "/.well-known/openid-configuration", nil)
	rr := executeTestRequest(t, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var doc discoveryDocument
	decodeBody(t, rr, &doc)
	assert.Equal(t, config.Config().Issuer, doc.Issuer)
	assert.Equal(t, config.Config().Issuer+"/.well-known/jwks.json", doc.JwksURI)
	assert.Contains(t, doc.IDTokenSigningAlgValuesSupported, "ES256")
	assert.Contains(t, doc.GrantTypesSupported, "authorization_code")
	assert.Contains(t, doc.GrantTypesSupported, "urn:ietf:params:oauth:grant-type:device_code")
}
