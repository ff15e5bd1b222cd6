package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/auth"
	"github.com/vovakirdan/wireboard-server/internal/config"
	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/log"
	"github.com/vovakirdan/wireboard-server/internal/store"
	"github.com/vovakirdan/wireboard-server/internal/store/memory"
	"github.com/vovakirdan/wireboard-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wireboard-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	persister       *core.Persister
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.StorageDriver).Str("db_path", cfg.DatabasePath).Msg("storage initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	persistOpts := core.DefaultPersisterOptions()
	persistOpts.MaxRetries = cfg.SaveMaxRetries
	if cfg.SaveInitialBackoff > 0 {
		persistOpts.InitialBackoff = cfg.SaveInitialBackoff
	}
	persister := core.NewPersister(st, persistOpts, log.Component(logger, "persister"))

	hub := core.NewHub(persister, core.Options{
		RoomGracePeriod: cfg.RoomGracePeriod,
		Room: core.RoomOptions{
			CursorTTL:           cfg.CursorTTL,
			CursorSweepInterval: cfg.CursorSweepInterval,
			CursorMinInterval:   cfg.CursorMinInterval,
		},
	}, log.Component(logger, "hub"))

	server := transporthttp.NewServer(hub, authService, st, persister, cfg, log.Component(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		persister:       persister,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StorageDriver {
	case "memory":
		return memory.New(), nil
	case "sqlite", "":
		return sqlite.New(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go a.hub.Run(hubCtx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)
		stopHub()
		a.cleanup()
		if err != nil {
			return err
		}
		return <-serverErr
	}
}

// cleanup flushes pending board saves, then closes the store.
func (a *App) cleanup() {
	flushCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.persister.Close(flushCtx); err != nil {
		a.log.Warn().Err(err).Msg("pending board saves lost")
	} else {
		a.log.Info().Msg("board saves flushed")
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
