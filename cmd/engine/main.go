package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gator-social/internal/api"
	"gator-social/internal/config"
	"gator-social/internal/database"
	"gator-social/internal/handlers"
	"gator-social/internal/messages"
	"gator-social/internal/middleware"
	"gator-social/internal/presence"
	"gator-social/internal/relations"
	"gator-social/internal/rooms"
	"gator-social/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// app is everything main wires together, kept apart from the listener so tests can drive it.
type app struct {
	store    *database.SQLStore
	notifier *presence.Notifier
	router   http.Handler
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Database.Type, err)
	}
	logger.Info().Str("type", cfg.Database.Type).Msg("connected to database")

	var reg *prometheus.Registry
	var metrics *utils.MetricsCollector
	if cfg.Server.MetricsEnabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = utils.NewMetricsCollector(reg)
	} else {
		metrics = utils.NewMetricsCollector(nil)
	}

	system := actor.NewActorSystem()
	directory := rooms.NewDirectory(store, logger)
	notifier := presence.NewNotifier(system, directory, cfg.SubscriptionBuffer, metrics, logger)

	service := api.NewService(api.Deps{
		Store:    store,
		Rooms:    directory,
		Ledger:   messages.NewLedger(store, notifier, logger),
		Notifier: notifier,
		Toggler:  relations.NewToggler(store, logger),
		Paging:   cfg.Paging,
		Metrics:  metrics,
		Logger:   logger,
	})

	auth := middleware.NewAuthenticator(cfg.JWTSecret, logger)
	var gatherer prometheus.Gatherer
	if reg != nil {
		gatherer = reg
	}
	server := handlers.NewServer(service, auth, store, metrics, gatherer, cfg, logger)

	return &app{store: store, notifier: notifier, router: server.Routes()}, nil
}

// close ends live subscriptions before the store goes away.
func (a *app) close() error {
	a.notifier.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.store.Close(ctx)
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.Server.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
