package models

import (
	"database/sql"
	"time"
)

/*
   Column     |          Type           | Collation | Nullable |      Default
--------------+-------------------------+-----------+----------+--------------------
 jti          | text                    |           | not null |
 user_id      | text                    |           | not null |
 client_id    | text                    |           | not null |
 nonce        | text                    |           |          |
 auth_time    | timestamptz             |           |          |
 expires_at   | timestamptz             |           | not null |
 created_at   | timestamptz             |           | not null | now()
Indexes:
    "id_tokens_pkey" PRIMARY KEY, btree (jti)
    "idx_id_tokens_expires_at" btree (expires_at)
*/

// IDToken is the stored record of an issued OpenID Connect ID token.
type IDToken struct {
	JTI       string         `db:"jti"`
	UserID    string         `db:"user_id"`
	ClientID  string         `db:"client_id"`
	Nonce     sql.NullString `db:"nonce"`
	AuthTime  sql.NullTime   `db:"auth_time"`
	ExpiresAt time.Time      `db:"expires_at"`
	CreatedAt time.Time      `db:"created_at"`
}
