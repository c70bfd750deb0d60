package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"crewchat/internal/auth"
	"crewchat/internal/avatar"
	"crewchat/internal/config"
	"crewchat/internal/log"
	"crewchat/internal/realtime"
	"crewchat/internal/store"
	"crewchat/internal/store/sqlite"
	transporthttp "crewchat/internal/transport/http"
)

// App wires storage, auth, the realtime layer and the HTTP transport.
type App struct {
	server          *stdhttp.Server
	registry        *realtime.Registry
	store           store.Store
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	realtimeLog := log.Component(logger, "realtime")
	registry := realtime.NewRegistry(realtimeLog, realtime.RegistryOptions{
		OriginLimit:       cfg.Realtime.OriginLimit,
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
		ProbeTimeout:      cfg.Realtime.SendTimeout,
	})
	dispatcher := realtime.NewDispatcher(registry, realtimeLog, cfg.Realtime.SendTimeout)

	var responder avatar.Responder
	if len(cfg.Avatar.Command) > 0 {
		pipeline, err := avatar.NewPipeline(cfg.Avatar.Command, cfg.Avatar.Timeout)
		if err != nil {
			return nil, fmt.Errorf("init avatar pipeline: %w", err)
		}
		responder = pipeline
		logger.Info().Strs("command", cfg.Avatar.Command).Msg("avatar pipeline enabled")
	}
	avatarService := avatar.NewService(responder, st, dispatcher, log.Component(logger, "avatar"))

	server := transporthttp.NewServer(transporthttp.Deps{
		Store:      st,
		Auth:       authService,
		Registry:   registry,
		Dispatcher: dispatcher,
		Avatar:     avatarService,
	}, *cfg, logger)

	return &App{
		server:          server,
		registry:        registry,
		store:           st,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

// Run starts the heartbeat loop and the HTTP server, blocking until context
// cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.registry.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
