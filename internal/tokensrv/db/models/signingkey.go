package models

import (
	"time"

	"github.com/dewonderstruck/securetoken/internal/common/uuid"
)

/*
   Column     |          Type           | Collation | Nullable |      Default
--------------+-------------------------+-----------+----------+--------------------
 key_id       | uuid                    |           | not null |
 key_type     | text                    |           | not null |
 key_value    | bytea                   |           | not null |
 generation   | bigint                  |           | not null |
 is_active    | boolean                 |           | not null | false
 expires_at   | timestamptz             |           | not null |
 created_at   | timestamptz             |           | not null | now()
 updated_at   | timestamptz             |           | not null | now()
Indexes:
    "signing_keys_pkey" PRIMARY KEY, btree (key_id)
    "idx_active_signing_key_type" UNIQUE, btree (key_type) WHERE is_active = true
    "idx_signing_keys_generation" btree (key_type, generation)
*/

// SigningKey is one half of a stored key pair. Private and public halves
// are separate rows sharing a generation number. key_value holds the
// PEM-encoded key material.
type SigningKey struct {
	KeyID      uuid.UUID `db:"key_id"`
	KeyType    string    `db:"key_type"`
	KeyValue   []byte    `db:"key_value"`
	Generation int64     `db:"generation"`
	IsActive   bool      `db:"is_active"`
	ExpiresAt  time.Time `db:"expires_at"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
