// Package app wires configuration, the world store, the hub, and the
// transports into a runnable process.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	server "gladewood/server"
	"gladewood/server/internal/game"
	"gladewood/server/logging"
)

// Run parses flags, loads configuration, and serves until the context
// is canceled or a termination signal arrives.
func Run(ctx context.Context) error {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	world, err := loadOrCreateWorld(cfg)
	if err != nil {
		return err
	}
	log.WithField("world", world.Name).WithField("entities", len(world.Entities)).Info("world ready")

	hub := server.NewHub(world, cfg, log)

	diag := server.NewDiagnostics(hub, log)
	mux := http.NewServeMux()
	diag.Register(mux)
	diagSrv := &http.Server{Addr: cfg.DiagnosticsAddr, Handler: mux}
	go func() {
		if err := diagSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("diagnostics server stopped")
		}
	}()
	defer diagSrv.Close()

	srv := server.NewServer(hub, cfg, log)
	return srv.Serve(ctx)
}

// loadOrCreateWorld restores the configured world file, falling back
// to a fresh starter world when none exists yet.
func loadOrCreateWorld(cfg server.Config) (*game.World, error) {
	path := game.WorldFilePath(cfg.WorldsDir, cfg.WorldName)
	world, err := game.Load(path)
	if err == nil {
		return world, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return game.NewTestWorld(cfg.WorldName), nil
	}
	return nil, fmt.Errorf("load world %s: %w", path, err)
}
