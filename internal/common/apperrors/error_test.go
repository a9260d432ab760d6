package apperrors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New("base error")
	assert.Equal(t, "base error", err.Error())
	assert.Equal(t, 0, err.StatusCode())
}

func TestMsgWrapsOriginal(t *testing.T) {
	base := New("base error").SetStatusCode(http.StatusNotFound)
	wrapped := base.Msg("wrapped message")

	assert.Equal(t, "wrapped message", wrapped.Error())
	assert.Equal(t, http.StatusNotFound, wrapped.StatusCode())
	assert.True(t, errors.Is(wrapped, base))
}

func TestNewFromTemplate(t *testing.T) {
	base := New("base error").SetStatusCode(http.StatusBadRequest)
	derived := base.New("derived error")

	assert.Equal(t, "derived error", derived.Error())
	assert.Equal(t, http.StatusBadRequest, derived.StatusCode())
	assert.True(t, errors.Is(derived, base))
}

func TestErrAttachesErrors(t *testing.T) {
	base := New("base error")
	inner := errors.New("inner failure")
	err := base.Err(inner)

	assert.Equal(t, "base error", err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.True(t, errors.Is(err, base))
}

func TestMsgErr(t *testing.T) {
	base := New("base error")
	inner := errors.New("db connection refused")
	err := base.MsgErr("operation failed", inner)

	assert.Equal(t, "operation failed", err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.True(t, errors.Is(err, base))
}

func TestErrorAllExpansion(t *testing.T) {
	base := New("base error")
	inner := errors.New("inner failure")

	err := base.MsgErr("outer message", inner)
	assert.Equal(t, "outer message", err.ErrorAll())

	expanded := err.SetExpandError(true)
	all := expanded.ErrorAll()
	assert.Contains(t, all, "outer message")
	assert.Contains(t, all, "base error")
	assert.Contains(t, all, "inner failure")
}

func TestUnwrapAll(t *testing.T) {
	base := New("base error")
	e1 := errors.New("first")
	e2 := errors.New("second")

	err := base.Err(e1, e2)
	unwrapped := err.UnwrapAll()
	assert.Len(t, unwrapped, 3)
}

func TestChainedHierarchy(t *testing.T) {
	root := New("auth error").SetStatusCode(http.StatusUnauthorized)
	mid := root.New("token validation failed")
	leaf := mid.New("token expired")

	assert.True(t, errors.Is(leaf, mid))
	assert.True(t, errors.Is(leaf, root))
	assert.False(t, errors.Is(root, leaf))
	assert.Equal(t, http.StatusUnauthorized, leaf.StatusCode())
}

func TestSetStatusCodeDoesNotMutate(t *testing.T) {
	base := New("base error").SetStatusCode(http.StatusBadRequest)
	other := base.SetStatusCode(http.StatusInternalServerError)

	assert.Equal(t, http.StatusBadRequest, base.StatusCode())
	assert.Equal(t, http.StatusInternalServerError, other.StatusCode())
}
