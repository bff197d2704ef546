// Command server wires the LLM pool, splitters, embedding strategies,
// ingestion orchestrator, hybrid search engine, and persistence adapter
// into the thin HTTP transport of section 6. Transport, JSON wire
// formats, and auth are deliberately out of the core's scope (section 1);
// this binary is the external collaborator that supplies them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ragcore/ragcore"
	"github.com/ragcore/ragcore/embedstrategy"
	"github.com/ragcore/ragcore/ingest"
	"github.com/ragcore/ragcore/parser"
	"github.com/ragcore/ragcore/pool"
	"github.com/ragcore/ragcore/search"
	"github.com/ragcore/ragcore/splitter"
	"github.com/ragcore/ragcore/store"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := ragcore.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}
	applyEnvOverrides(&cfg)

	apiKey := os.Getenv("RAGCORE_API_KEY")
	corsOrigins := os.Getenv("RAGCORE_CORS_ORIGINS")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embeddingDim := 0
	for _, p := range cfg.Providers {
		if p.Enabled && p.EmbeddingDim > 0 {
			embeddingDim = p.EmbeddingDim
			break
		}
	}
	if embeddingDim == 0 {
		embeddingDim = 1536
	}

	st, err := store.Open(ctx, cfg.StoreDSN, embeddingDim)
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	llmPool, err := buildPool(cfg)
	if err != nil {
		slog.Error("building llm pool", "error", err)
		os.Exit(1)
	}

	router := splitter.NewRouter(nil, cfg.Chunk)
	queryStrategy := embedstrategy.NewQueryStrategy(llmPool)
	chapterStrategy := embedstrategy.NewChapterStrategy(llmPool, cfg.Chunk.ChapterSplitThresholdTokens)
	qaStrategy := embedstrategy.NewQAStrategy(llmPool, llmPool, nil)
	summaryStrategy := embedstrategy.NewSummaryStrategy(llmPool, llmPool)

	orchestrator := ingest.New(st, router, chapterStrategy, qaStrategy, summaryStrategy, cfg.Ingestion.Workers, cfg.Chunk.SummaryThresholdTokens)
	orchestrator.Start(ctx)
	defer orchestrator.Stop()

	searchEngine := search.New(st, st, queryStrategy)
	parserRegistry := parser.NewRegistry()

	h := newHandler(st, orchestrator, searchEngine, parserRegistry, cfg)
	mux := http.NewServeMux()
	h.routes(mux)

	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

// buildPool constructs the LLM service pool from cfg.Providers, skipping
// disabled entries, per section 9's "one immutable record per provider,
// constructed once from configuration, never re-parsed at call time."
func buildPool(cfg ragcore.Config) (*pool.Pool, error) {
	var records []pool.ProviderRecord
	for _, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		records = append(records, pool.NewProviderRecord(
			p.Name, p.APIURL, p.APIKey, p.Models, p.EmbeddingModel,
			p.EmbeddingDim, p.EmbeddingContext, cfg.Pool.TimeoutSeconds,
		))
	}
	return pool.NewPool(cfg.Pool.Strategy, records)
}

// applyEnvOverrides layers RAGCORE_* environment variables over cfg,
// the second of the two-layer precedence (file, then env) named in
// SPEC_FULL.md's ambient-stack section.
func applyEnvOverrides(cfg *ragcore.Config) {
	if v := os.Getenv("RAGCORE_STORE_DSN"); v != "" {
		cfg.StoreDSN = v
	}
	if v := os.Getenv("RAGCORE_DEFAULT_EMBEDDING_MODEL"); v != "" {
		cfg.DefaultEmbeddingModel = v
	}
	if v := os.Getenv("RAGCORE_DEFAULT_COMPLETION_MODEL"); v != "" {
		cfg.DefaultCompletionModel = v
	}
	if v := os.Getenv("RAGCORE_POOL_STRATEGY"); v != "" {
		cfg.Pool.Strategy = v
	}
	if v := os.Getenv("RAGCORE_INGESTION_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.Workers = n
		}
	}
}
