package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/dewonderstruck/securetoken/internal/common/logtrace"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/config"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/db"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/server"
	"github.com/dewonderstruck/securetoken/internal/tokensrv/token"
)

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()

	// Token lifetime overrides (OAUTH_*_MAX_AGE) may come from a .env file.
	if err := godotenv.Load(); err == nil {
		slog.Info().Msg("loaded environment from .env")
	}

	slog.Info().Str("config_file", opt.configFile).Msg("loading config file")
	if err := config.LoadConfig(opt.configFile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	if config.Config().ServerPort == "" {
		return fmt.Errorf("server port not defined")
	}

	db.Init()

	sweeper := token.NewSweeper(config.Config().Auth.GetSweepIntervalOrDefault())
	sweeper.Start(ctx)

	serverErrors, shutdownServer, err := createTokenServer(ctx)
	if err != nil {
		return fmt.Errorf("creating token server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		sweeper.Stop()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		sweeper.Stop()
		shutdownServer()
	}

	slog.Info().Msg("server stopped")
	return nil
}

func createTokenServer(ctx context.Context) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()

	s, err := server.CreateNewServer()
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              ":" + config.Config().ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info().Str("port", config.Config().ServerPort).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown, nil
}

func parseFlags() cmdoptions {
	opt := cmdoptions{}
	flag.StringVar(&opt.configFile, "config", "securetokensrv.conf", "path to the configuration file")
	flag.Parse()
	return opt
}
