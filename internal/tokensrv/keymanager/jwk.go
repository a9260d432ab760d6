package keymanager

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"

	"github.com/dewonderstruck/securetoken/internal/common/apperrors"
)

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// rawPoint returns the uncompressed EC point as X||Y with each coordinate
// left-padded to 32 bytes. Returns ErrInvalidKeyLength if the result is
// not exactly 64 bytes.
func rawPoint(pub *ecdsa.PublicKey) ([]byte, apperrors.Error) {
	x := pub.X.Bytes()
	y := pub.Y.Bytes()
	if len(x) > 32 || len(y) > 32 {
		return nil, ErrInvalidKeyLength
	}

	raw := make([]byte, 64)
	copy(raw[32-len(x):32], x)
	copy(raw[64-len(y):64], y)
	return raw, nil
}

// CalculateKid derives the key identifier from the public key: the
// URL-safe, unpadded base64 form of the SHA-256 digest of the raw
// 64-byte EC point.
func CalculateKid(pub *ecdsa.PublicKey) (string, apperrors.Error) {
	raw, err := rawPoint(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// ConvertToJWK converts a P-256 public key into its JWK representation.
// The x and y coordinates are standard base64 of the 32-byte halves of
// the raw point.
func ConvertToJWK(pub *ecdsa.PublicKey) (*JWK, apperrors.Error) {
	raw, err := rawPoint(pub)
	if err != nil {
		return nil, err
	}

	kid, err := CalculateKid(pub)
	if err != nil {
		return nil, err
	}

	return &JWK{
		Kty: "EC",
		Kid: kid,
		Use: "sig",
		Alg: "ES256",
		Crv: "P-256",
		X:   base64.StdEncoding.EncodeToString(raw[:32]),
		Y:   base64.StdEncoding.EncodeToString(raw[32:]),
	}, nil
}
