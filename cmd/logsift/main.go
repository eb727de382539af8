package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/open-sift/logsift/internal/config"
	"github.com/open-sift/logsift/internal/db"
	"github.com/open-sift/logsift/internal/persist"
	"github.com/open-sift/logsift/internal/reader"
	"github.com/open-sift/logsift/internal/retention"
	"github.com/open-sift/logsift/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure logging
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid LOGSIFT_LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	// Open history database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	// Create the state file store and the reader over it
	store, err := persist.NewFileStore(cfg.StateDir)
	if err != nil {
		log.Fatalf("Failed to open state directory: %v", err)
	}
	rd := reader.New(store)

	// Create components
	cleaner := retention.New(database, cfg.HistoryDays)
	srv := server.New(cfg, database, rd)

	// Create root context with cancel
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup shutdown signal handler
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start retention cleaner in the background
	go func() {
		if err := cleaner.Run(ctx); err != nil {
			if err != context.Canceled {
				log.Errorf("Retention cleaner error: %v", err)
			}
		}
	}()

	// Start server in goroutine (since it blocks)
	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("logsift starting - listening on %s, state in %s", cfg.Listen, store.Dir())
		if err := srv.Start(); err != nil {
			serverErrors <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case <-sigCh:
		log.Info("Shutting down...")
	case err := <-serverErrors:
		log.Fatalf("Server failed to start: %v", err)
	}

	// Cancel context to stop background goroutines
	cancel()

	// Shutdown server
	if err := srv.Shutdown(); err != nil {
		log.Errorf("Server shutdown error: %v", err)
	}

	// Give goroutines a moment to finish cleanup
	time.Sleep(100 * time.Millisecond)

	log.Info("Shutdown complete")
}
