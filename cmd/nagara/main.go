// Package main provides the nagara player daemon entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/yskmt/nagara/internal/app/catalog"
	"github.com/yskmt/nagara/internal/app/mediasession"
	"github.com/yskmt/nagara/internal/app/notify"
	"github.com/yskmt/nagara/internal/app/player"
	"github.com/yskmt/nagara/internal/app/player/media"
	"github.com/yskmt/nagara/internal/app/preload"
	"github.com/yskmt/nagara/internal/app/syncer"
	"github.com/yskmt/nagara/internal/infra/browser"
	"github.com/yskmt/nagara/internal/infra/config"
	"github.com/yskmt/nagara/internal/infra/driveapi"
	"github.com/yskmt/nagara/internal/infra/logger"
	"github.com/yskmt/nagara/internal/infra/storage"
	"github.com/yskmt/nagara/internal/server"
)

var (
	app        = kingpin.New("nagara", "Folder-backed audio player daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/nagara.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Daemon error: %v", err)
		os.Exit(1)
	}
}

// run executes the daemon. Using a separate function ensures defer
// statements run even when returning with an error.
func run(cfg *config.Config) error {
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	cat := catalog.New(catalog.WithHistoryLimit(cfg.Playback.HistoryLimit))
	if err := rehydrate(store, cat); err != nil {
		zlog.Warn().Err(err).Msg("Failed to restore persisted state, starting fresh")
	}

	api, err := driveapi.New(driveapi.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           time.Duration(cfg.API.TimeoutSec) * time.Second,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	})
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}

	sy := syncer.New(cat, api, store, browser.Open)

	factory := media.NewStreamFactory(media.Config{
		TickInterval: time.Duration(cfg.Playback.TickMs) * time.Millisecond,
	})
	cache := preload.New(factory, cfg.Playback.PreloadThreshold)
	coord := player.New(cat, factory, cache)
	defer coord.Close()

	hub := notify.NewHub()
	defer hub.Close()

	bridge := mediasession.New(mediasession.NewLogSession(), coord, cat)
	hub.Subscribe(bridge)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Pump(ctx, coord.Events())

	srv := server.New(cfg.Server.Addr, cat, coord, sy, hub)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			serverErrCh <- err
		}
	}()

	// Periodic snapshot flush. The final flush at shutdown still runs;
	// the ticker bounds data loss on a crash.
	flushInterval := time.Duration(cfg.Storage.FlushIntervalMs) * time.Millisecond
	flushTicker := time.NewTicker(flushInterval)
	defer flushTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-flushTicker.C:
				persist(store, cat)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	persist(store, cat)
	zlog.Info().Msg("Daemon stopped")
	return nil
}

// rehydrate loads the persisted snapshot and token into the catalogue.
func rehydrate(store *storage.Store, cat *catalog.Store) error {
	var snap catalog.Snapshot
	ok, err := store.LoadState(&snap)
	if err != nil {
		return err
	}
	if ok {
		cat.Restore(snap)
		zlog.Info().Int("playlists", len(snap.Playlists)).Msg("Restored persisted state")
	}

	// The token lives under its own key so the auth tool can write it
	// without touching the snapshot.
	token, err := store.LoadToken()
	if err != nil {
		return err
	}
	if token != "" {
		cat.SetAuthToken(token)
	}
	return nil
}

// persist writes the current snapshot and token back to storage.
func persist(store *storage.Store, cat *catalog.Store) {
	if err := store.SaveState(cat.Snapshot()); err != nil {
		zlog.Error().Err(err).Msg("Failed to persist state")
		return
	}
	if err := store.SaveToken(cat.AuthToken()); err != nil {
		zlog.Error().Err(err).Msg("Failed to persist token")
	}
}
