package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/httpx"
	"github.com/dewonderstruck/securetoken/internal/common/uuid"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/keymanager"
)

// keyRsp describes a stored key row. Key material is never returned by the
// admin API; public keys are published through the JWKS endpoint.
type keyRsp struct {
	KeyID      string    `json:"keyId"`
	KeyType    string    `json:"keyType"`
	Generation int64     `json:"generation"`
	IsActive   bool      `json:"isActive"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// keyPairRsp describes the active key pair.
type keyPairRsp struct {
	PrivateKeyID string    `json:"privateKeyId"`
	PublicKeyID  string    `json:"publicKeyId"`
	Kid          string    `json:"kid"`
	Generation   int64     `json:"generation"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type keyOperationRsp struct {
	Operation string    `json:"operation"`
	CreatedAt time.Time `json:"createdAt"`
}

func keysRouter(km keymanager.KeyManager) chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/", httpx.WrapHttpRsp(generateKey(km)))
	r.Method(http.MethodPost, "/rotate", httpx.WrapHttpRsp(rotateKeys(km)))
	r.Method(http.MethodGet, "/", httpx.WrapHttpRsp(listKeys(km)))
	r.Method(http.MethodGet, "/{keyID}", httpx.WrapHttpRsp(getKey(km)))
	r.Method(http.MethodGet, "/{keyID}/operations", httpx.WrapHttpRsp(listKeyOperations))
	r.Method(http.MethodDelete, "/{keyID}", httpx.WrapHttpRsp(deleteKey(km)))
	return r
}

// generateKey ensures an active key pair exists and returns it. The pair
// is created on first use; a later call returns the existing pair.
func generateKey(km keymanager.KeyManager) httpx.RequestHandler {
	return func(r *http.Request) (*httpx.Response, error) {
		key, err := km.GetActiveKey(r.Context())
		if err != nil {
			return nil, err
		}
		return &httpx.Response{
			StatusCode: http.StatusCreated,
			Response:   newKeyPairRsp(key),
		}, nil
	}
}

func rotateKeys(km keymanager.KeyManager) httpx.RequestHandler {
	return func(r *http.Request) (*httpx.Response, error) {
		deprecateOld := r.URL.Query().Get("deprecate_old") == "true"
		key, err := km.RotateKeys(r.Context(), deprecateOld)
		if err != nil {
			return nil, err
		}
		log.Ctx(r.Context()).Info().
			Bool("deprecate_old", deprecateOld).
			Int64("generation", key.Generation).
			Msg("keys rotated")
		return &httpx.Response{
			StatusCode: http.StatusCreated,
			Response:   newKeyPairRsp(key),
		}, nil
	}
}

func listKeys(km keymanager.KeyManager) httpx.RequestHandler {
	return func(r *http.Request) (*httpx.Response, error) {
		keys, err := km.ListKeys(r.Context())
		if err != nil {
			return nil, err
		}
		rsp := make([]keyRsp, 0, len(keys))
		for _, key := range keys {
			rsp = append(rsp, keyRsp{
				KeyID:      key.KeyID.String(),
				KeyType:    key.KeyType,
				Generation: key.Generation,
				IsActive:   key.IsActive,
				ExpiresAt:  key.ExpiresAt,
				CreatedAt:  key.CreatedAt,
			})
		}
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response:   rsp,
		}, nil
	}
}

func getKey(km keymanager.KeyManager) httpx.RequestHandler {
	return func(r *http.Request) (*httpx.Response, error) {
		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			return nil, httpx.ErrInvalidRequest("invalid key id")
		}
		keyType := authcommon.KeyType(r.URL.Query().Get("type"))
		if keyType == "" {
			keyType = authcommon.KeyTypePublic
		}
		if !keyType.IsValid() {
			return nil, httpx.ErrInvalidRequest("invalid key type")
		}
		key, apperr := km.GetKey(r.Context(), keyID, keyType)
		if apperr != nil {
			return nil, apperr
		}
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response: keyRsp{
				KeyID:      key.KeyID.String(),
				KeyType:    key.KeyType,
				Generation: key.Generation,
				IsActive:   key.IsActive,
				ExpiresAt:  key.ExpiresAt,
				CreatedAt:  key.CreatedAt,
			},
		}, nil
	}
}

func listKeyOperations(r *http.Request) (*httpx.Response, error) {
	keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
	if err != nil {
		return nil, httpx.ErrInvalidRequest("invalid key id")
	}
	ops, apperr := db.DB(r.Context()).ListKeyOperations(r.Context(), keyID)
	if apperr != nil {
		return nil, apperr
	}
	rsp := make([]keyOperationRsp, 0, len(ops))
	for _, op := range ops {
		rsp = append(rsp, keyOperationRsp{
			Operation: op.Operation,
			CreatedAt: op.CreatedAt,
		})
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

func deleteKey(km keymanager.KeyManager) httpx.RequestHandler {
	return func(r *http.Request) (*httpx.Response, error) {
		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			return nil, httpx.ErrInvalidRequest("invalid key id")
		}
		if apperr := km.DeleteKey(r.Context(), keyID); apperr != nil {
			return nil, apperr
		}
		return &httpx.Response{
			StatusCode: http.StatusNoContent,
		}, nil
	}
}

func newKeyPairRsp(key *keymanager.SigningKey) keyPairRsp {
	return keyPairRsp{
		PrivateKeyID: key.PrivateKeyID.String(),
		PublicKeyID:  key.PublicKeyID.String(),
		Kid:          key.Kid,
		Generation:   key.Generation,
		ExpiresAt:    key.ExpiresAt,
	}
}
