package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vocabtable/vocabtable/internal/ai"
	"github.com/vocabtable/vocabtable/internal/api"
	"github.com/vocabtable/vocabtable/internal/config"
	"github.com/vocabtable/vocabtable/internal/core"
	"github.com/vocabtable/vocabtable/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := context.Background()

	store, err := db.Open(ctx, cfg.StoreOptions())
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	table := core.NewTable(store, core.Options{
		Logger:         logger,
		PersistDeletes: cfg.PersistDeletes,
	})
	if err := table.Initialize(ctx); err != nil {
		slog.Error("failed to load vocabulary", "error", err)
		os.Exit(1)
	}

	handler := &api.Handler{Table: table, Log: logger}

	if cfg.AnthropicAPIKey != "" {
		aiClient, err := ai.NewClaudeClient(cfg.AnthropicAPIKey)
		if err != nil {
			slog.Error("failed to initialize AI client", "error", err)
			os.Exit(1)
		}
		handler.Importer = core.NewImporter(table, aiClient, cfg.Language)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, document import disabled")
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      api.NewRouter(handler, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting",
			"addr", srv.Addr,
			"store", cfg.Store,
			"key", cfg.StorageKey,
			"rows", table.Len(),
			"persist_deletes", cfg.PersistDeletes,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}
