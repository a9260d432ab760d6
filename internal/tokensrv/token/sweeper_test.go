package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/securetoken/internal/common/uuid"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db/models"
)

func TestSweepDeletesExpiredTokens(t *testing.T) {
	ctx := newDb(t)

	stale := &models.AccessToken{
		JTI:       "sweep-" + uuid.New().String(),
		UserID:    "user-sweep",
		ClientID:  "client-1",
		Scopes:    "read",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.DB(ctx).CreateAccessToken(ctx, stale))

	s := NewSweeper(time.Minute)
	s.sweep(ctx)

	_, apperr := db.DB(ctx).GetAccessToken(ctx, stale.JTI)
	assert.Error(t, apperr)
}

func TestSweeperStartStop(t *testing.T) {
	newDb(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSweeper(50 * time.Millisecond)
	s.Start(ctx)
	time.Sleep(120 * time.Millisecond)
	s.Stop()
}
