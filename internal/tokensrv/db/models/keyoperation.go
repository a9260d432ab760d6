package models

import (
	"time"

	"github.com/dewonderstruck/securetoken/internal/common/uuid"
)

/*
   Column     |          Type           | Collation | Nullable |      Default
--------------+-------------------------+-----------+----------+--------------------
 id           | uuid                    |           | not null |
 key_id       | uuid                    |           | not null |
 operation    | text                    |           | not null |
 created_at   | timestamptz             |           | not null | now()
Indexes:
    "key_operations_pkey" PRIMARY KEY, btree (id)
    "idx_key_operations_key_id" btree (key_id)
Foreign-key constraints:
    "key_operations_key_id_fkey" FOREIGN KEY (key_id) REFERENCES signing_keys(key_id) ON DELETE CASCADE
*/

// KeyOperationLog is an audit record of a lifecycle operation applied to
// a stored key.
type KeyOperationLog struct {
	ID        uuid.UUID `db:"id"`
	KeyID     uuid.UUID `db:"key_id"`
	Operation string    `db:"operation"`
	CreatedAt time.Time `db:"created_at"`
}
