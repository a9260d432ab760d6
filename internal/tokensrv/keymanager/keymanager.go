// Package keymanager manages the service's ES256 signing keys: generation,
// rotation, retrieval, and the JWKS view of the public halves. Key material
// is stored PEM-encoded in the database; private and public halves are
// separate rows sharing a generation number.
package keymanager

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
	"github.com/dewonderstruck/securetoken/internal/common/uuid"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/authcommon"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dberror"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
)

// KeyManager defines the interface for key management operations.
type KeyManager interface {
	// GetActiveKey returns the active key pair, creating one if none exists.
	GetActiveKey(ctx context.Context) (*SigningKey, apperrors.Error)
	// RotateKeys creates a new active pair. When deprecateOld is set the
	// previous pair is additionally marked deprecated in the audit trail.
	RotateKeys(ctx context.Context, deprecateOld bool) (*SigningKey, apperrors.Error)
	// CurrentKey returns the stored PEM material and generation of the
	// active key of the given type.
	CurrentKey(ctx context.Context, keyType authcommon.KeyType) ([]byte, int64, apperrors.Error)
	// GetKey returns the stored record of a key, constrained to the given type.
	GetKey(ctx context.Context, keyID uuid.UUID, keyType authcommon.KeyType) (*models.SigningKey, apperrors.Error)
	// ListKeys returns all stored keys, newest generation first.
	ListKeys(ctx context.Context) ([]*models.SigningKey, apperrors.Error)
	// DeleteKey removes a stored key.
	DeleteKey(ctx context.Context, keyID uuid.UUID) apperrors.Error
	// JWKS returns the JSON Web Key Set of non-expired public keys.
	JWKS(ctx context.Context) (*JWKS, apperrors.Error)
}

var (
	keyManagerInstance *keyManager
	keyManagerOnce     sync.Once
)

// GetKeyManager returns the singleton instance of KeyManager.
func GetKeyManager() KeyManager {
	keyManagerOnce.Do(func() {
		keyManagerInstance = &keyManager{}
	})
	return keyManagerInstance
}

// SigningKey is an in-memory key pair used for signing tokens.
type SigningKey struct {
	PrivateKeyID uuid.UUID
	PublicKeyID  uuid.UUID
	PrivateKey   *ecdsa.PrivateKey
	PublicKey    *ecdsa.PublicKey
	Generation   int64
	Kid          string
	ExpiresAt    time.Time
}

// IsExpired checks if the signing key has expired.
func (sk *SigningKey) IsExpired() bool {
	return sk.ExpiresAt.Before(time.Now())
}

// keyManager handles the management of signing keys.
type keyManager struct {
	activeKey *SigningKey
	mu        sync.RWMutex
}

// GetActiveKey retrieves the active signing key, creating a new one if necessary.
func (km *keyManager) GetActiveKey(ctx context.Context) (*SigningKey, apperrors.Error) {
	km.mu.RLock()
	active := km.activeKey
	km.mu.RUnlock()
	if active != nil {
		return active, nil
	}
	return km.retrieveOrCreateKey(ctx)
}

// retrieveOrCreateKey retrieves the stored active pair or creates a new one.
func (km *keyManager) retrieveOrCreateKey(ctx context.Context) (*SigningKey, apperrors.Error) {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.activeKey != nil {
		return km.activeKey, nil
	}

	var privRow *models.SigningKey
	err := retry.Do(func() error {
		var err error
		privRow, err = db.DB(ctx).GetActiveSigningKey(ctx, string(authcommon.KeyTypePrivate))
		if err != nil {
			if errors.Is(err, dberror.ErrNotFound) {
				return nil
			}
			return retry.Unrecoverable(err)
		}
		return err
	}, retry.Attempts(3), retry.Delay(1*time.Second), retry.DelayType(retry.BackOffDelay))
	if err != nil {
		return nil, ErrKeyManagement.MsgErr("unable to retrieve signing key", err)
	}

	if privRow == nil {
		key, apperr := km.createKeyPairLocked(ctx, string(authcommon.KeyOperationCreate))
		if apperr != nil {
			return nil, apperr
		}
		km.activeKey = key
		return km.activeKey, nil
	}

	pubRow, apperr := db.DB(ctx).GetActiveSigningKey(ctx, string(authcommon.KeyTypePublic))
	if apperr != nil {
		return nil, ErrKeyManagement.MsgErr("unable to retrieve public signing key", apperr)
	}

	key, apperr := assembleSigningKey(privRow, pubRow)
	if apperr != nil {
		return nil, apperr
	}
	km.activeKey = key
	return km.activeKey, nil
}

// RotateKeys creates and activates a new key pair. The storage layer
// deactivates the previous pair in the same transaction that inserts the
// new one. When deprecateOld is set, a deprecate audit entry is recorded
// for each half of the previous pair.
func (km *keyManager) RotateKeys(ctx context.Context, deprecateOld bool) (*SigningKey, apperrors.Error) {
	km.mu.Lock()
	defer km.mu.Unlock()

	oldKey := km.activeKey
	if oldKey == nil {
		privRow, err := db.DB(ctx).GetActiveSigningKey(ctx, string(authcommon.KeyTypePrivate))
		if err == nil {
			pubRow, puberr := db.DB(ctx).GetActiveSigningKey(ctx, string(authcommon.KeyTypePublic))
			if puberr == nil {
				oldKey, _ = assembleSigningKey(privRow, pubRow)
			}
		}
	}

	newKey, apperr := km.createKeyPairLocked(ctx, string(authcommon.KeyOperationRotate))
	if apperr != nil {
		return nil, apperr
	}

	if deprecateOld && oldKey != nil {
		for _, keyID := range []uuid.UUID{oldKey.PrivateKeyID, oldKey.PublicKeyID} {
			if err := db.DB(ctx).DeactivateSigningKey(ctx, keyID, string(authcommon.KeyOperationDeprecate)); err != nil {
				log.Ctx(ctx).Error().Err(err).Str("key_id", keyID.String()).Msg("unable to deprecate old key")
				return nil, ErrKeyManagement.MsgErr("unable to deprecate old key", err)
			}
		}
	}

	km.activeKey = newKey
	return newKey, nil
}

// createKeyPairLocked generates a P-256 pair, persists it, and returns the
// in-memory form. Callers must hold km.mu.
func (km *keyManager) createKeyPairLocked(ctx context.Context, operation string) (*SigningKey, apperrors.Error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to generate signing key")
		return nil, ErrKeyGeneration.Err(err)
	}

	privPEM, apperr := encodePrivateKeyPEM(priv)
	if apperr != nil {
		return nil, apperr
	}
	pubPEM, apperr := encodePublicKeyPEM(&priv.PublicKey)
	if apperr != nil {
		return nil, apperr
	}

	expiresAt := time.Now().Add(config.Config().Auth.GetKeyValidityOrDefault()).UTC()

	privRow := &models.SigningKey{
		KeyType:   string(authcommon.KeyTypePrivate),
		KeyValue:  privPEM,
		ExpiresAt: expiresAt,
	}
	pubRow := &models.SigningKey{
		KeyType:   string(authcommon.KeyTypePublic),
		KeyValue:  pubPEM,
		ExpiresAt: expiresAt,
	}

	err = retry.Do(func() error {
		return db.DB(ctx).CreateSigningKeyPair(ctx, privRow, pubRow, operation)
	}, retry.Attempts(3), retry.Delay(1*time.Second), retry.DelayType(retry.BackOffDelay))
	if err != nil {
		return nil, ErrKeyManagement.MsgErr("unable to store signing key", err)
	}

	kid, apperr := CalculateKid(&priv.PublicKey)
	if apperr != nil {
		return nil, apperr
	}

	log.Ctx(ctx).Info().
		Str("key_id", privRow.KeyID.String()).
		Int64("generation", privRow.Generation).
		Str("operation", operation).
		Msg("signing key pair created")

	return &SigningKey{
		PrivateKeyID: privRow.KeyID,
		PublicKeyID:  pubRow.KeyID,
		PrivateKey:   priv,
		PublicKey:    &priv.PublicKey,
		Generation:   privRow.Generation,
		Kid:          kid,
		ExpiresAt:    expiresAt,
	}, nil
}

// CurrentKey returns the PEM material and generation of the active key of
// the given type.
func (km *keyManager) CurrentKey(ctx context.Context, keyType authcommon.KeyType) ([]byte, int64, apperrors.Error) {
	if !keyType.IsValid() {
		return nil, 0, ErrKeyManagement.New("invalid key type").SetStatusCode(400)
	}

	row, err := db.DB(ctx).GetActiveSigningKey(ctx, string(keyType))
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, 0, ErrKeyNotFound.Msg("no active key of requested type")
		}
		return nil, 0, ErrKeyManagement.MsgErr("unable to retrieve key", err)
	}
	return row.KeyValue, row.Generation, nil
}

// GetKey returns the stored record of a key, constrained to the given
// type. A key that exists under the other type is a type mismatch, not a
// miss.
func (km *keyManager) GetKey(ctx context.Context, keyID uuid.UUID, keyType authcommon.KeyType) (*models.SigningKey, apperrors.Error) {
	row, err := db.DB(ctx).GetSigningKey(ctx, keyID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, ErrKeyManagement.MsgErr("unable to retrieve key", err)
	}
	if row.KeyType != string(keyType) {
		return nil, ErrKeyTypeMismatch.Msg("key is of type " + row.KeyType)
	}
	return row, nil
}

// ListKeys returns all stored keys, newest generation first.
func (km *keyManager) ListKeys(ctx context.Context) ([]*models.SigningKey, apperrors.Error) {
	keys, err := db.DB(ctx).ListSigningKeys(ctx)
	if err != nil {
		return nil, ErrKeyManagement.MsgErr("unable to list keys", err)
	}
	return keys, nil
}

// DeleteKey removes a stored key. Deleting the cached active key clears
// the cache.
func (km *keyManager) DeleteKey(ctx context.Context, keyID uuid.UUID) apperrors.Error {
	if err := db.DB(ctx).DeleteSigningKey(ctx, keyID); err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return ErrKeyNotFound
		}
		return ErrKeyManagement.MsgErr("unable to delete key", err)
	}

	km.mu.Lock()
	if km.activeKey != nil && (km.activeKey.PrivateKeyID == keyID || km.activeKey.PublicKeyID == keyID) {
		km.activeKey = nil
	}
	km.mu.Unlock()

	return nil
}

// JWKS returns the key set of non-expired public keys.
func (km *keyManager) JWKS(ctx context.Context) (*JWKS, apperrors.Error) {
	rows, err := db.DB(ctx).ListSigningKeys(ctx)
	if err != nil {
		return nil, ErrKeyManagement.MsgErr("unable to list keys", err)
	}

	jwks := &JWKS{Keys: []JWK{}}
	now := time.Now()
	for _, row := range rows {
		if row.KeyType != string(authcommon.KeyTypePublic) || row.ExpiresAt.Before(now) {
			continue
		}
		pub, apperr := ParsePublicKeyPEM(row.KeyValue)
		if apperr != nil {
			log.Ctx(ctx).Error().Err(apperr).Str("key_id", row.KeyID.String()).Msg("skipping unparseable public key")
			continue
		}
		jwk, apperr := ConvertToJWK(pub)
		if apperr != nil {
			log.Ctx(ctx).Error().Err(apperr).Str("key_id", row.KeyID.String()).Msg("skipping unconvertible public key")
			continue
		}
		jwks.Keys = append(jwks.Keys, *jwk)
	}

	return jwks, nil
}

// assembleSigningKey builds the in-memory pair from its stored halves.
func assembleSigningKey(privRow, pubRow *models.SigningKey) (*SigningKey, apperrors.Error) {
	priv, apperr := ParsePrivateKeyPEM(privRow.KeyValue)
	if apperr != nil {
		return nil, apperr
	}
	pub, apperr := ParsePublicKeyPEM(pubRow.KeyValue)
	if apperr != nil {
		return nil, apperr
	}
	kid, apperr := CalculateKid(pub)
	if apperr != nil {
		return nil, apperr
	}
	return &SigningKey{
		PrivateKeyID: privRow.KeyID,
		PublicKeyID:  pubRow.KeyID,
		PrivateKey:   priv,
		PublicKey:    pub,
		Generation:   privRow.Generation,
		Kid:          kid,
		ExpiresAt:    privRow.ExpiresAt,
	}, nil
}

// encodePrivateKeyPEM renders the private key in PKCS#8 PEM form.
func encodePrivateKeyPEM(priv *ecdsa.PrivateKey) ([]byte, apperrors.Error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, ErrKeyGeneration.MsgErr("unable to encode private key", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// encodePublicKeyPEM renders the public key in PKIX PEM form.
func encodePublicKeyPEM(pub *ecdsa.PublicKey) ([]byte, apperrors.Error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, ErrKeyGeneration.MsgErr("unable to encode public key", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ParsePrivateKeyPEM decodes a PKCS#8 PEM private key.
func ParsePrivateKeyPEM(data []byte) (*ecdsa.PrivateKey, apperrors.Error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrKeyParse.Msg("no PEM block found")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, ErrKeyParse.Err(err)
	}
	priv, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, ErrKeyParse.Msg("not an EC private key")
	}
	return priv, nil
}

// ParsePublicKeyPEM decodes a PKIX PEM public key.
func ParsePublicKeyPEM(data []byte) (*ecdsa.PublicKey, apperrors.Error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrKeyParse.Msg("no PEM block found")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, ErrKeyParse.Err(err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, ErrKeyParse.Msg("not an EC public key")
	}
	return pub, nil
}
