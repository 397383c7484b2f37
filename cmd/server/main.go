package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twbtools/twbdiff/internal/api"
	"github.com/twbtools/twbdiff/internal/compare"
	"github.com/twbtools/twbdiff/internal/config"
	"github.com/twbtools/twbdiff/internal/runner"
	"github.com/twbtools/twbdiff/internal/vocab"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Classifier vocabulary: defaults, optionally overridden from YAML.
	v := vocab.Default()
	if cfg.VocabPath != "" {
		loaded, err := vocab.Load(cfg.VocabPath)
		if err != nil {
			log.Error("failed to load vocabulary overrides", "path", cfg.VocabPath, "error", err)
			os.Exit(1)
		}
		v = loaded
		log.Info("loaded vocabulary overrides", "path", cfg.VocabPath)
	}

	// Initialize the comparison pool.
	orch := runner.NewOrchestrator(cfg, compare.New(v, log), log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting twbdiff", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
