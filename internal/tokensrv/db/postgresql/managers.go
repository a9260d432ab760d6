package postgresql

import (
	"database/sql"

	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dbmanager"
)

// Key Manager
type keyManager struct {
	c dbmanager.Conn
}

func (km *keyManager) conn() *sql.Conn {
	return km.c.Conn()
}

func newKeyManager(c dbmanager.Conn) *keyManager {
	return &keyManager{c: c}
}

// Token Manager
type tokenManager struct {
	c dbmanager.Conn
}

func (tm *tokenManager) conn() *sql.Conn {
	return tm.c.Conn()
}

func newTokenManager(c dbmanager.Conn) *tokenManager {
	return &tokenManager{c: c}
}

// Code Manager
type codeManager struct {
	c dbmanager.Conn
}

func (cm *codeManager) conn() *sql.Conn {
	return cm.c.Conn()
}

func newCodeManager(c dbmanager.Conn) *codeManager {
	return &codeManager{c: c}
}

// User Manager
type userManager struct {
	c dbmanager.Conn
}

func (um *userManager) conn() *sql.Conn {
	return um.c.Conn()
}

func newUserManager(c dbmanager.Conn) *userManager {
	return &userManager{c: c}
}
