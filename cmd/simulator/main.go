package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gator-social/internal/config"
	"gator-social/internal/database"
	"gator-social/internal/middleware"
	"gator-social/simulator"

	"github.com/rs/zerolog"
)

func main() {
	simCfg := simulator.DefaultSimConfig()
	flag.IntVar(&simCfg.NumUsers, "users", simCfg.NumUsers, "number of seeded users")
	flag.IntVar(&simCfg.PostsPerUser, "posts", simCfg.PostsPerUser, "posts seeded per user")
	flag.DurationVar(&simCfg.SimulationTime, "duration", simCfg.SimulationTime, "how long to simulate")
	flag.Float64Var(&simCfg.MessageFrequency, "messages", simCfg.MessageFrequency, "messages per user per minute")
	flag.Float64Var(&simCfg.ToggleFrequency, "toggles", simCfg.ToggleFrequency, "likes and follows per user per minute")
	flag.Float64Var(&simCfg.ReadFrequency, "reads", simCfg.ReadFrequency, "inbox checks per user per minute")
	flag.StringVar(&simCfg.EngineURL, "engine", simCfg.EngineURL, "engine base URL")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	// The simulator seeds the engine's database directly, so it shares its configuration.
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close(context.Background())

	auth := middleware.NewAuthenticator(cfg.JWTSecret, logger)
	sim := simulator.NewEnhancedSimulator(simCfg, store, auth, logger)

	logger.Info().
		Str("engine", simCfg.EngineURL).
		Int("users", simCfg.NumUsers).
		Dur("duration", simCfg.SimulationTime).
		Float64("zipf_s", simCfg.ZipfS).
		Msg("starting simulation")

	runCtx, cancel := context.WithTimeout(ctx, simCfg.SimulationTime)
	defer cancel()
	if err := sim.Run(runCtx); err != nil {
		logger.Fatal().Err(err).Msg("simulation failed")
	}

	m := sim.GetMetrics()
	logger.Info().
		Int("users", m.TotalUsers).
		Int("rooms", m.RoomsOpened).
		Int("messages_sent", m.MessagesSent).
		Int("messages_read", m.MessagesRead).
		Int("toggles", m.Toggles).
		Int("deliveries", m.Deliveries).
		Int("requests", m.TotalRequests).
		Int("errors", m.ErrorCount).
		Dur("avg_latency", m.AverageLatency).
		Msg("simulation completed")
}
