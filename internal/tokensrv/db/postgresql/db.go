// Description: This file wires the per-entity managers for the PostgreSQL token store.
package postgresql

import (
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/dbmanager"
)

type tokenStoreDb struct {
	km *keyManager
	tm *tokenManager
	cm *codeManager
	um *userManager
}

func NewTokenStoreDb(c dbmanager.Conn) (*keyManager, *tokenManager, *codeManager, *userManager) {
	h := &tokenStoreDb{}
	h.km = newKeyManager(c)
	h.tm = newTokenManager(c)
	h.cm = newCodeManager(c)
	h.um = newUserManager(c)
	return h.km, h.tm, h.cm, h.um
}
