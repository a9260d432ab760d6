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
    "refresh_tokens_pkey" PRIMARY KEY, btree (jti)
    "idx_refresh_tokens_user_id" btree (user_id)
    "idx_refresh_tokens_expires_at" btree (expires_at)
*/

// RefreshToken is the stored record of an issued refresh token. Refresh
// tokens are superseded by scope updates rather than deleted.
type RefreshToken struct {
	JTI       string    `db:"jti"`
	UserID    string    `db:"user_id"`
	ClientID  string    `db:"client_id"`
	Scopes    string    `db:"scopes"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
