package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/news-aggregator/app/api"
	"github.com/lysyi3m/news-aggregator/app/cache"
	"github.com/lysyi3m/news-aggregator/app/cfg"
	"github.com/lysyi3m/news-aggregator/app/database"
	"github.com/lysyi3m/news-aggregator/app/feed"
	"github.com/lysyi3m/news-aggregator/app/logging"
	"github.com/lysyi3m/news-aggregator/app/query"
	"github.com/lysyi3m/news-aggregator/app/tasks"
)

const attemptsKeptPerSource = 500

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		if errors.Is(err, cfg.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.ApplyTimezone(appCfg.Timezone); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to apply timezone: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:     appCfg.LogLevel,
		Format:    appCfg.LogFormat,
		File:      appCfg.LogFile,
		AddSource: appCfg.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := run(appCfg); err != nil {
		slog.Error("Server exited with error", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting News Aggregator", "version", appCfg.Version, "timezone", appCfg.Timezone)

	registry, err := feed.LoadRegistry(appCfg.Feeds, appCfg.FeedsDir, feed.Defaults{
		PollInterval: appCfg.PollInterval,
		Timeout:      appCfg.FetchTimeout,
		MaxItems:     appCfg.MaxItems,
	})
	if err != nil {
		return fmt.Errorf("failed to load feed sources: %w", err)
	}
	slog.Info("Loaded feed sources", "count", registry.Count())
	for _, src := range registry.List() {
		slog.Debug("Registered feed", "feed", src.ID, "name", src.Name, "url", src.URL, "poll_interval", src.PollInterval)
	}

	store := cache.NewStore()

	fetcher := feed.NewFetcher(feed.FetcherOptions{
		UserAgent: appCfg.UserAgent,
		Retries:   appCfg.FetchRetries,
	})

	schedulerOpts := tasks.Options{
		WorkerCount:          appCfg.WorkerCount,
		Interval:             appCfg.SchedulerInterval,
		MaxBackoffMultiplier: appCfg.MaxBackoffMultiplier,
	}

	// attemptHistory stays a nil interface when the attempt log is disabled.
	var attemptHistory api.AttemptHistory
	if appCfg.DBPath != "" {
		db, err := database.NewConnection(appCfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open attempt log: %w", err)
		}
		defer db.Close()

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			return fmt.Errorf("failed to migrate attempt log: %w", err)
		}
		slog.Info("Attempt log ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

		repo := database.NewAttemptRepository(db)
		attemptLog := database.NewAttemptLog(repo, database.AttemptLogOptions{KeepPerSource: attemptsKeptPerSource})
		attemptLog.Start()
		defer attemptLog.Stop()

		schedulerOpts.Recorder = attemptLog
		attemptHistory = repo
	} else {
		slog.Info("Attempt log disabled (DB_PATH empty)")
	}

	scheduler := tasks.NewScheduler(registry, store, fetcher, feed.NewParser(), feed.NewFilterer(), schedulerOpts)
	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler.Start()
	// Runs before attemptLog.Stop so in-flight results are still recorded.
	defer scheduler.Stop()

	handler := api.NewHandler(query.NewService(registry, store), registry, store, scheduler,
		feed.NewGenerator(appCfg.Version), attemptHistory, api.Options{
			BaseURL: appCfg.BaseUrl,
			Port:    appCfg.Port,
			Version: appCfg.Version,
		})

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}
