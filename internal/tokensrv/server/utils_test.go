package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
)

func executeTestRequest(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	config.TestInit()
	db.Init()

	s, err := CreateNewServer()
	require.NoError(t, err, "create new server")
	s.MountHandlers()

	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func setRequestBodyAndHeader(t *testing.T, req *http.Request, body any) {
	t.Helper()
	var b []byte
	switch v := body.(type) {
	case string:
		b = []byte(v)
	default:
		var err error
		b, err = json.Marshal(v)
		require.NoError(t, err, "json marshal")
	}
	req.Body = io.NopCloser(bytes.NewReader(b))
	req.ContentLength = int64(len(b))
	req.Header.Set("Content-Type", "application/json")
}

func checkHeader(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.NotEmpty(t, h.Get("X-SecureToken-Request-ID"), "no request id")
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), into), "decode response body")
}

// newDbCtx opens a db-scoped context for direct fixture setup alongside
// requests that go through the router.
func newDbCtx(t *testing.T) context.Context {
	t.Helper()
	config.TestInit()
	db.Init()
	ctx := log.Logger.WithContext(context.Background())
	ctx, err := db.ConnCtx(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.DB(ctx).Close(context.Background())
	})
	return ctx
}
