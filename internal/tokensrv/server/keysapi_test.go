package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysAPI(t *testing.T) {
	req, _ := http.NewRequest("POST", "/keys", nil)
	setRequestBodyAndHeader(t, req, `{}`)
	rr := executeTestRequest(t, req)
	require.Equal(t, http.StatusCreated, rr.Code)
	checkHeader(t, rr.Result().Header)

	var pair keyPairRsp
	decodeBody(t, rr, &pair)
	assert.NotEmpty(t, pair.PrivateKeyID)
	assert.NotEmpty(t, pair.PublicKeyID)
	assert.NotEmpty(t, pair.Kid)
	assert.Greater(t, pair.Generation, int64(0))

	req, _ = http.NewRequest("GET", "/keys", nil)
	rr = executeTestRequest(t, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var keys []keyRsp
	decodeBody(t, rr, &keys)
	require.NotEmpty(t, keys)

	activeByType := map[string]bool{}
	for _, key := range keys {
		if key.IsActive {
			assert.False(t, activeByType[key.KeyType], "more than one active %s key", key.KeyType)
			activeByType[key.KeyType] = true
		}
	}

	req, _ = http.NewRequest("GET", "/keys/"+pair.PublicKeyID, nil)
	rr = executeTestRequest(t, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var key keyRsp
	decodeBody(t, rr, &key)
	assert.Equal(t, pair.PublicKeyID, key.KeyID)
	assert.Equal(t, "public", key.KeyType)

	req, _ = http.NewRequest("GET", "/keys/"+pair.PublicKeyID+"/operations", nil)
	rr = executeTestRequest(t, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var ops []keyOperationRsp
	decodeBody(t, rr, &ops)
	require.NotEmpty(t, ops)
}

func TestRotateKeysAPI(t *testing.T) {
	req, _ := http.NewRequest("POST", "/keys", nil)
	setRequestBodyAndHeader(t, req, `{}`)
	rr := executeTestRequest(t, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var before keyPairRsp
	decodeBody(t, rr, &before)

	req, _ = http.NewRequest("POST", "/keys/rotate?deprecate_old=true", nil)
	setRequestBodyAndHeader(t, req, `{}`)
	rr = executeTestRequest(t, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var after keyPairRsp
	decodeBody(t, rr, &after)
	assert.NotEqual(t, before.Kid, after.Kid)
	assert.Greater(t, after.Generation, before.Generation)
}

func TestGetKeyInvalidID(t *testing.T) {
	req, _ := http.NewRequest("GET", "/keys/not-a-uuid", nil)
	rr := executeTestRequest(t, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteKey(t *testing.T) {
	req, _ := http.NewRequest("POST", "/keys/rotate", nil)
	setRequestBodyAndHeader(t, req, `{}`)
	rr := executeTestRequest(t, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var pair keyPairRsp
	decodeBody(t, rr, &pair)

	// Rotate again so the pair being deleted is no longer active.
	req, _ = http.NewRequest("POST", "/keys/rotate", nil)
	setRequestBodyAndHeader(t, req, `{}`)
	rr = executeTestRequest(t, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	req, _ = http.NewRequest("DELETE", "/keys/"+pair.PrivateKeyID, nil)
	rr = executeTestRequest(t, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	req, _ = http.NewRequest("GET", "/keys/"+pair.PrivateKeyID+"?type=private", nil)
	rr = executeTestRequest(t, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
