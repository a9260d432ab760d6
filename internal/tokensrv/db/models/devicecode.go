package models

import (
	"database/sql"
	"time"
)

/*
   Column       |          Type           | Collation | Nullable |      Default
----------------+-------------------------+-----------+----------+--------------------
 device_code    | text                    |           | not null |
 user_code      | text                    |           | not null |
 client_id      | text                    |           | not null |
 user_id        | text                    |           |          |
 scopes         | text                    |           | not null | ''
 status         | text                    |           | not null | 'pending'
 expires_at     | timestamptz             |           | not null |
 created_at     | timestamptz             |           | not null | now()
Indexes:
    "device_codes_pkey" PRIMARY KEY, btree (device_code)
    "idx_device_codes_user_code" UNIQUE, btree (user_code)
    "idx_device_codes_expires_at" btree (expires_at)
*/

// Device code approval states.
const (
	DeviceCodeStatusPending  = "pending"
	DeviceCodeStatusApproved = "approved"
	DeviceCodeStatusDenied   = "denied"
)

// DeviceCode is a pending device authorization grant. The user_id is set
// once the user approves the grant through the user code.
type DeviceCode struct {
	DeviceCode string         `db:"device_code"`
	UserCode   string         `db:"user_code"`
	ClientID   string         `db:"client_id"`
	UserID     sql.NullString `db:"user_id"`
	Scopes     string         `db:"scopes"`
	Status     string         `db:"status"`
	ExpiresAt  time.Time      `db:"expires_at"`
	CreatedAt  time.Time      `db:"created_at"`
}
