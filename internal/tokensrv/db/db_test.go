package db

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
)

func newDb(c ...context.Context) context.Context {
	config.TestInit()
	Init()
	var ctx context.Context
	var err error
	if len(c) > 0 {
		ctx, err = ConnCtx(c[0])
		if err != nil {
			log.Ctx(ctx).Fatal().Err(err).Msg("unable to get db connection")
		}
	} else {
		ctx, err = ConnCtx(context.Background())
		if err != nil {
			log.Ctx(ctx).Fatal().Err(err).Msg("unable to get db connection")
		}
	}
	return ctx
}
