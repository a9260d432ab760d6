package models

import "time"

/*
   Column     |          Type           | Collation | Nullable |      Default
--------------+-------------------------+-----------+----------+--------------------
 jti          | text                    |           | not null |
 user_id      | text                    |           | not null |
 client_id    | text                    |           | not null |
 scopes       | text                    |           | not null | ''
 expires_at   | timestamptz             |           | not null |
 created_at   | timestamptz             |           | not null | now()
Indexes:
    "access_tokens_pkey" PRIMARY KEY, btree (jti)
    "idx_access_tokens_user_id" btree (user_id)
    "idx_access_tokens_expires_at" btree (expires_at)
*/

// AccessToken is the stored record of an issued access token. The token
// itself is a signed JWT; this row is the revocation and lookup anchor.
type AccessToken struct {
	JTI       string    `db:"jti"`
	UserID    string    `db:"user_id"`
	ClientID  string    `db:"client_id"`
	Scopes    string    `db:"scopes"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
