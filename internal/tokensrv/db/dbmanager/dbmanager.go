package dbmanager

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"
)

// Pool hands out connections to the token store database.
type Pool interface {
	// Conn returns a new connection to the database.
	Conn(ctx context.Context) (Conn, error)
	// Stats returns the number of connection requests and returns.
	Stats() (requests, returns uint64)
}

// Conn is a single database connection checked out from the pool.
// It is not concurrency safe and must be used from a single goroutine.
// The service uses one connection per request and does not share it
// across goroutines.
type Conn interface {
	// Conn returns the underlying *sql.Conn. Do not close this directly.
	// Use Conn.Close(ctx) to return the connection to the pool.
	Conn() *sql.Conn
	// Close returns the connection back to the pool.
	Close(ctx context.Context)
}

// NewPool creates a connection pool for the given database type.
// Only "postgresql" is supported.
func NewPool(ctx context.Context, dbtype string) Pool {
	switch dbtype {
	case "postgresql":
		db, err := NewPostgresqlDb()
		if err != nil || db == nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to create PostgreSQL DB")
			return nil
		}
		return db
	}
	return nil
}
