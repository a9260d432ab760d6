package token

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
)

// Sweeper periodically deletes expired token, code, and retired signing
// key rows. It complements the lazy cleanup performed on token lookups.
type Sweeper struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper returns a Sweeper that runs at the given interval.
func NewSweeper(interval time.Duration) *Sweeper {
	return &Sweeper{
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or the context is
// canceled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		log.Ctx(ctx).Info().Dur("interval", s.interval).Msg("sweeper started")
		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) sweep(ctx context.Context) {
	ctx, err := db.ConnCtx(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("sweep skipped, no db connection")
		return
	}
	d := db.DB(ctx)
	defer d.Close(context.Background())

	now := time.Now()

	tokens, apperr := d.DeleteExpiredTokens(ctx, now)
	if apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Msg("unable to sweep expired tokens")
	}
	codes, apperr := d.DeleteExpiredCodes(ctx, now)
	if apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Msg("unable to sweep expired codes")
	}
	keys, apperr := d.DeleteExpiredSigningKeys(ctx, now)
	if apperr != nil {
		log.Ctx(ctx).Error().Err(apperr).Msg("unable to sweep expired signing keys")
	}

	if tokens > 0 || codes > 0 || keys > 0 {
		log.Ctx(ctx).Info().
			Int64("tokens", tokens).
			Int64("codes", codes).
			Int64("keys", keys).
			Msg("sweep completed")
	}
}
