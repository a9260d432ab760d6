package keymanager

import (
	"net/http"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
)

var (
	// ErrKeyManagement is the base error for all key management failures.
	ErrKeyManagement apperrors.Error = apperrors.New("key management error").SetStatusCode(http.StatusInternalServerError)

	// ErrKeyNotFound indicates the requested key does not exist.
	ErrKeyNotFound apperrors.Error = ErrKeyManagement.New("key not found").SetStatusCode(http.StatusNotFound)

	// ErrKeyTypeMismatch indicates the key exists but is not of the requested type.
	ErrKeyTypeMismatch apperrors.Error = ErrKeyManagement.New("key type mismatch").SetStatusCode(http.StatusBadRequest)

	// ErrInvalidKeyLength indicates the key material has an unexpected size.
	ErrInvalidKeyLength apperrors.Error = ErrKeyManagement.New("invalid key length").SetStatusCode(http.StatusUnprocessableEntity)

	// ErrKeyParse indicates stored key material could not be decoded.
	ErrKeyParse apperrors.Error = ErrKeyManagement.New("unable to parse key").SetStatusCode(http.StatusUnprocessableEntity)

	// ErrKeyGeneration indicates a new key pair could not be created.
	ErrKeyGeneration apperrors.Error = ErrKeyManagement.New("unable to generate key")
)
