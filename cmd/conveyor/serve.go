package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/conveyor-ci/conveyor/internal/api"
	"github.com/conveyor-ci/conveyor/internal/artifact"
	"github.com/conveyor-ci/conveyor/internal/engine"
	"github.com/conveyor-ci/conveyor/internal/events"
	"github.com/conveyor-ci/conveyor/internal/executor"
	"github.com/conveyor-ci/conveyor/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Host the trigger ingestion and run query API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load .env if present before the config reads the environment.
	_ = godotenv.Load()

	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := loadPipelines(root, cfg)
	if err != nil {
		return err
	}
	for _, msg := range collapseWarnings(data.warnings) {
		log.Printf("warning: %s", msg)
	}

	artifacts, err := artifact.NewStore(resolvePath(root, cfg.ArtifactRoot))
	if err != nil {
		return err
	}

	dbPath := resolvePath(root, cfg.DatabasePath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	broker := events.NewBroker()

	exec := executor.New(artifacts, executor.Options{
		Root:           root,
		DefaultTimeout: cfg.DefaultTimeout,
	})

	coord, err := engine.NewCoordinator(data.pipelines, exec, artifacts, engine.Options{
		Store:  st,
		Broker: broker,
		Dedupe: cfg.Dedupe,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	server := api.NewServer(ctx, coord, st, artifacts, broker, log.Default())
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("conveyor listening on %s (%d pipelines)", httpServer.Addr, len(data.pipelines))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// In-flight runs observe cancellation at their next step boundary;
	// give the HTTP layer a bounded window to drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("conveyor stopped")
	return nil
}
