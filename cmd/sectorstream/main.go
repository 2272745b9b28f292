// Package main is the entry point for the headless terrain streaming runner.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/sectorstream/internal/config"
	"github.com/Faultbox/sectorstream/internal/logger"
	"github.com/Faultbox/sectorstream/internal/sim"
	"github.com/Faultbox/sectorstream/internal/tile"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Sector Stream ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if config.SaveRequested() {
		if err := cfg.Save(); err != nil {
			logger.Error("failed to save config", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("config saved", zap.String("dir", config.ConfigDir()))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create and run the simulation
	renderer := tile.NewMemoryRenderer()
	s, err := sim.New(cfg, renderer, logger.Named("sim"))
	if err != nil {
		logger.Error("failed to create simulation", zap.Error(err))
		os.Exit(1)
	}
	defer s.Close()

	res, err := s.Run(ctx)
	if err != nil {
		logger.Error("simulation error", zap.Error(err))
	}

	logger.Info("simulation finished",
		zap.Int("ticks", res.Ticks),
		zap.Int("sector_changes", res.SectorChanges),
		zap.Int("checkpoints", res.Checkpoints),
		zap.Bool("player_spawned", res.PlayerSpawned),
		zap.Int("tiles_in_use", res.Stats.InUse),
		zap.Int("tiles_free", res.Stats.Free),
		zap.Int("sectors_decided", res.Stats.Decided),
		zap.Ints("jobs_per_worker", res.Stats.Dispatched),
		zap.Int("triangles", res.Triangles))
}
