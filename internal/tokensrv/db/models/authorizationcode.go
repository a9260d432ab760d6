package models

import (
	"database/sql"
	"time"
)

/*
   Column                |          Type           | Collation | Nullable |      Default
-----------------------+-------------------------+-----------+----------+--------------------
 code_id                | text                    |           | not null |
 client_id              | text                    |           | not null |
 user_id                | text                    |           | not null |
 redirect_uri           | text                    |           | not null |
 scopes                 | text                    |           | not null | ''
 nonce                  | text                    |           |          |
 code_challenge         | text                    |           |          |
 code_challenge_method  | text                    |           |          |
 expires_at             | timestamptz             |           | not null |
 created_at             | timestamptz             |           | not null | now()
Indexes:
    "authorization_codes_pkey" PRIMARY KEY, btree (code_id)
    "idx_authorization_codes_expires_at" btree (expires_at)
*/

// AuthorizationCode is a short-lived, single-use code issued during the
// authorization code flow. Consumption deletes the row.
type AuthorizationCode struct {
	CodeID              string         `db:"code_id"`
	ClientID            string         `db:"client_id"`
	UserID              string         `db:"user_id"`
	RedirectURI         string         `db:"redirect_uri"`
	Scopes              string         `db:"scopes"`
	Nonce               sql.NullString `db:"nonce"`
	CodeChallenge       sql.NullString `db:"code_challenge"`
	CodeChallengeMethod sql.NullString `db:"code_challenge_method"`
	ExpiresAt           time.Time      `db:"expires_at"`
	CreatedAt           time.Time      `db:"created_at"`
}
