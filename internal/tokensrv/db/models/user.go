package models

import (
	"time"

	"github.com/lib/pq"
)

/*
   Column        |          Type           | Collation | Nullable |      Default
-----------------+-------------------------+-----------+----------+--------------------
 user_id         | text                    |           | not null |
 username        | text                    |           | not null |
 password_hash   | text                    |           | not null |
 roles           | text[]                  |           | not null | '{}'
 created_at      | timestamptz             |           | not null | now()
 updated_at      | timestamptz             |           | not null | now()
Indexes:
    "users_pkey" PRIMARY KEY, btree (user_id)
    "idx_users_username" UNIQUE, btree (username)
*/

// User is a registered account. Roles drive entitlement checks.
type User struct {
	UserID       string         `db:"user_id"`
	Username     string         `db:"username"`
	PasswordHash string         `db:"password_hash"`
	Roles        pq.StringArray `db:"roles"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}
