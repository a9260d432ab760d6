// Package authcommon holds the shared types and helpers used across the
// token service: key and token classifications, key operation labels, and
// scope string handling.
package authcommon

import (
	"strings"

	"github.com/dewonderstruck/securetoken/internal/common/uuid"
)

// KeyID identifies a stored signing key.
type KeyID uuid.UUID

func (k KeyID) String() string {
	return uuid.UUID(k).String()
}

func (k KeyID) IsNil() bool {
	return k == KeyID(uuid.Nil)
}

// KeyType classifies stored key material.
type KeyType string

const (
	KeyTypePrivate KeyType = "private"
	KeyTypePublic  KeyType = "public"
)

// IsValid reports whether the key type is one of the known values.
func (t KeyType) IsValid() bool {
	return t == KeyTypePrivate || t == KeyTypePublic
}

// KeyOperation labels an entry in the key audit log.
type KeyOperation string

const (
	KeyOperationCreate    KeyOperation = "create"
	KeyOperationRotate    KeyOperation = "rotate"
	KeyOperationDeprecate KeyOperation = "deprecate"
)

// TokenType classifies issued tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	TokenTypeID      TokenType = "id"
)

// JoinScopes renders a scope list as the space-delimited wire form.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// SplitScopes parses the space-delimited wire form into a scope list.
// Empty input yields a nil slice.
func SplitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// IsSubset reports whether every element of want is present in have.
// An empty want is trivially a subset.
func IsSubset(want, have []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
