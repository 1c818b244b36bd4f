// Package main provides the HTTP server for the reverie memory engine.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reverie-ai/reverie/internal/characters"
	"github.com/reverie-ai/reverie/internal/config"
	"github.com/reverie-ai/reverie/internal/embedding"
	"github.com/reverie-ai/reverie/internal/llm"
	"github.com/reverie-ai/reverie/internal/metrics"
	"github.com/reverie-ai/reverie/internal/server"
	"github.com/reverie-ai/reverie/internal/service"
	"github.com/reverie-ai/reverie/internal/store"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("reverie-server starting",
		"version", version,
		"addr", cfg.Addr,
		"embed_provider", cfg.EmbedProvider,
		"store", cfg.StoreBackend,
		"characters_dir", cfg.CharactersDir,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	embedder, err := embedding.New(ctx, embedding.Config{
		Provider:          embedding.ProviderType(cfg.EmbedProvider),
		Model:             cfg.EmbedModel,
		ExpectedDimension: cfg.EmbedDimension,
		OpenAIAPIKey:      cfg.OpenAIAPIKey,
		VoyageAPIKey:      cfg.VoyageAPIKey,
		OllamaHost:        cfg.OllamaHost,
		AWSRegion:         cfg.AWSRegion,
	})
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	logger.Info("embedder initialized", "model", embedder.Model(), "dimension", embedder.Dimension())

	st, err := store.Open(ctx, store.Config{
		Backend:          store.BackendType(cfg.StoreBackend),
		Dimension:        embedder.Dimension(),
		SurrealURL:       cfg.SurrealURL,
		SurrealNamespace: cfg.SurrealNamespace,
		SurrealDatabase:  cfg.SurrealDatabase,
		SurrealUsername:  cfg.SurrealUser,
		SurrealPassword:  cfg.SurrealPass,
		PostgresDSN:      cfg.PostgresDSN,
		ChromemPath:      cfg.ChromemPath,
	})
	if err != nil {
		logger.Error("failed to open memory store", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing memory store")
		_ = st.Close(context.Background())
	}()

	model, err := llm.New(llm.Config{
		Provider:        llm.ProviderType(cfg.LLMProvider),
		Model:           cfg.LLMModel,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OllamaHost:      cfg.OllamaHost,
	})
	if err != nil {
		logger.Error("failed to create generation model", "error", err)
		os.Exit(1)
	}

	source := characters.NewDirSource(cfg.CharactersDir)
	locks := service.NewCharacterLocks()
	collector := metrics.NewCollector()
	retrying := embedding.WithRetry(embedder)

	ingest := service.NewIngestService(source, retrying, st, model, locks, collector, cfg.Concurrency)
	retrieval := service.NewRetrievalService(source, retrying, st, locks, collector, service.RetrievalOptions{
		MinSimilarity:   cfg.MinSimilarity,
		MaxResults:      cfg.MaxResults,
		MemoryCap:       cfg.MemoryCap,
		RecencyHalflife: cfg.RecencyHalflife,
		WeightEmotional: true,
		BoostRecent:     true,
	})

	srv := server.New(ingest, retrieval, source, service.NewJobManager(), collector, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server ready", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
