package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedsink/app/api"
	"feedsink/app/cfg"
	"feedsink/app/config"
	"feedsink/app/database"
	"feedsink/app/feed"
	"feedsink/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(appCfg.Debug)
	slog.Info("Starting FeedSink server", "version", appCfg.Version)

	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Connected to database")

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied", "version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	entryRepo := database.NewEntryRepository(db)

	httpClient := &http.Client{
		Timeout: time.Duration(appCfg.FetchTimeout) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 5,
		},
	}

	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent, time.Duration(appCfg.FetchTimeout)*time.Second)
	ingester := feed.NewIngester(fetcher, feedRepo, entryRepo)

	registerSeeds(appCfg.SeedsDir, feedRepo)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(ingester, feedRepo)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(feedRepo, entryRepo, ingester)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("FeedSink server started")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	slog.Info("FeedSink server shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// registerSeeds loads seed subscription files and creates the feeds that do
// not exist yet. The first scheduler pass picks them up for ingestion.
func registerSeeds(seedsDir string, feedRepo database.FeedRepository) {
	loader := config.NewLoader(seedsDir)
	seeds, err := loader.LoadAll()
	if err != nil {
		slog.Error("Failed to load seed subscriptions", "error", err)
		os.Exit(1)
	}
	if len(seeds) == 0 {
		return
	}

	ctx := context.Background()
	registered := 0
	for _, seed := range seeds {
		existing, err := feedRepo.GetByUserAndURL(ctx, seed.User, seed.URL)
		if err != nil {
			slog.Warn("Failed to check existing seed", "url", seed.URL, "error", err)
			continue
		}
		if existing != nil {
			continue
		}

		if _, err := feedRepo.Create(ctx, seed.User, seed.URL); err != nil {
			slog.Warn("Failed to register seed", "url", seed.URL, "error", err)
			continue
		}
		registered++
	}

	slog.Info("Seed subscriptions registered", "total", len(seeds), "new", registered)
}
