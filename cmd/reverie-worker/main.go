// Package main provides the reverie worker entry point: the local HTTP
// service frontends submit journal entries to.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/halcyonlabs/reverie/internal/analyzer"
	"github.com/halcyonlabs/reverie/internal/config"
	"github.com/halcyonlabs/reverie/internal/store"
	"github.com/halcyonlabs/reverie/internal/watcher"
	"github.com/halcyonlabs/reverie/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "Listen port (default: from settings)")
	dataDir := flag.String("data-dir", "", "Data directory (default: ~/.reverie)")
	backendName := flag.String("store", "", "Storage backend: file or sqlite (default: from settings)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if *dataDir != "" {
		os.Setenv("REVERIE_DATA_DIR", *dataDir)
	}

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize data directory")
	}

	cfg := config.Get()
	if *port > 0 {
		cfg.WorkerPort = *port
	}
	if *backendName != "" {
		cfg.StoreBackend = *backendName
	}
	if cfg.APIKey == "" {
		log.Warn().Msg(config.EnvAPIKey + " is not set; analysis requests will fail")
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open journal store")
	}

	caller := analyzer.NewOpenAICaller(analyzer.OpenAIConfig{
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		MaxOutputTokens: int64(cfg.MaxOutputTokens),
	})
	svc := worker.NewService(Version, cfg, st, analyzer.New(st, caller, cfg))

	// With the file backend, deleting ~/.reverie while the worker runs is a
	// supported way to wipe the journal; reconcile in-memory state when it
	// happens.
	if cfg.StoreBackend == "file" {
		w, err := watcher.New(config.StatePath(), st.Reload)
		if err != nil {
			log.Warn().Err(err).Msg("Journal state watcher unavailable")
		} else if err := w.Start(); err == nil {
			defer w.Stop()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start(cfg.WorkerPort)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Worker failed")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown incomplete")
	}
}

func openStore(cfg *config.Config) (*store.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		backend, err := store.NewSQLiteBackend(store.SQLiteConfig{
			Path:     config.DBPath(),
			MaxConns: cfg.MaxConns,
			WALMode:  true,
		})
		if err != nil {
			return nil, err
		}
		return store.Open(backend), nil
	default:
		return store.Open(store.NewFileBackend(config.StatePath())), nil
	}
}
