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

	"github.com/semerproje/haberwire/app/api"
	"github.com/semerproje/haberwire/app/cache"
	"github.com/semerproje/haberwire/app/cfg"
	"github.com/semerproje/haberwire/app/database"
	"github.com/semerproje/haberwire/app/enrich"
	"github.com/semerproje/haberwire/app/ingest"
	"github.com/semerproje/haberwire/app/pipeline"
	"github.com/semerproje/haberwire/app/tasks"
)

const dedupSeedBatchSize = 5000

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

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Haberwire server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	sources := ingest.NewSourceCache(appCfg.SourcesDir)
	if err := sources.Run(); err != nil {
		slog.Error("Failed to load source definitions", "error", err)
		os.Exit(1)
	}
	slog.Info("Source definitions loaded", "count", sources.GetSourceCount())

	newsRepo := database.NewNewsRepo(db)
	scheduleRepo := database.NewScheduleRepo(db)
	statsRepo := database.NewStatsRepo(db)

	index, err := seedDedupIndex(newsRepo)
	if err != nil {
		slog.Error("Failed to seed duplicate index", "error", err)
		os.Exit(1)
	}

	var responseCache *cache.Cache
	if appCfg.RedisAddr != "" {
		responseCache, err = cache.NewCache(appCfg.RedisAddr)
		if err != nil {
			// The cache is an optimization; the server runs without it.
			slog.Warn("Redis unavailable, running without response cache", "error", err)
			responseCache = nil
		} else {
			defer responseCache.Close()
		}
	}

	aaClient := ingest.NewAAClient(appCfg.AABaseURL, appCfg.AAUsername, appCfg.AAPassword,
		appCfg.UserAgent, 30*time.Second)
	rssFetcher := ingest.NewRSSFetcher(appCfg.UserAgent)

	var aiClient *enrich.AIClient
	if appCfg.LLMURL != "" {
		aiClient = enrich.NewAIClient(appCfg.LLMURL, appCfg.LLMModel, appCfg.LLMAPIKey)
	} else {
		slog.Info("AI enrichment disabled (LLM_URL not set)")
	}

	var completer enrich.TextCompleter
	if aiClient != nil {
		completer = aiClient
	}
	enricher := enrich.NewEnricher(aaClient, aaClient, completer)

	persister := pipeline.NewPersister(newsRepo, index)
	runner := pipeline.NewRunner(sources, aaClient, rssFetcher, enricher, persister, index)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(scheduleRepo, statsRepo, runner)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(newsRepo, scheduleRepo, statsRepo, sources, scheduler, responseCache)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

// seedDedupIndex rebuilds the in-memory duplicate index from persisted
// items so restarts do not re-accept previously stored news.
func seedDedupIndex(newsRepo database.NewsRepository) (*ingest.DedupIndex, error) {
	index := ingest.NewDedupIndex()

	start := time.Now()
	err := newsRepo.ScanIdentifiers(dedupSeedBatchSize, func(ident database.Identifier) error {
		sourceID := ""
		if ident.SourceID != nil {
			sourceID = *ident.SourceID
		}
		index.Add(ident.Source, sourceID, ident.TitleHash)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids, hashes := index.Size()
	slog.Info("Duplicate index seeded", "source_ids", ids, "title_hashes", hashes, "duration", time.Since(start))

	return index, nil
}
