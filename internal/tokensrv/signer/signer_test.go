package signer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/securetoken/internal/tokensrv/keymanager"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	kid, apperr := keymanager.CalculateKid(&priv.PublicKey)
	require.NoError(t, apperr)

	return NewSignerFromKey(&keymanager.SigningKey{
		PrivateKey: priv,
		PublicKey:  &priv.PublicKey,
		Kid:        kid,
		ExpiresAt:  time.Now().Add(time.Hour),
	})
}

func TestSignAndVerify(t *testing.T) {
	s := newTestSigner(t)

	claims := jwt.MapClaims{
		"sub": "user-1",
		"aud": "client-1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
		"jti": "abc123",
	}

	signed, err := s.Sign(claims)
	require.NoError(t, err)
	assert.NotEmpty(t, signed)

	var parsed jwt.MapClaims = jwt.MapClaims{}
	token, err := s.Verify(signed, parsed)
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "user-1", parsed["sub"])
	assert.Equal(t, s.Kid(), token.Header["kid"])
	assert.Equal(t, "ES256", token.Header["alg"])
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := newTestSigner(t)

	claims := jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
	}

	signed, err := s.Sign(claims)
	require.NoError(t, err)

	_, err = s.Verify(signed, jwt.MapClaims{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	s1 := newTestSigner(t)
	s2 := newTestSigner(t)

	claims := jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	signed, err := s1.Sign(claims)
	require.NoError(t, err)

	_, err = s2.Verify(signed, jwt.MapClaims{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := newTestSigner(t)

	signed, err := s.Sign(jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	tampered := signed[:len(signed)-4] + "AAAA"
	_, err = s.Verify(tampered, jwt.MapClaims{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s := newTestSigner(t)

	_, err := s.Verify("not-a-jwt", jwt.MapClaims{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}
