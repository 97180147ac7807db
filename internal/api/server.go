package api

import (
	"context"
	"log"
	"net/http"

	"github.com/conveyor-ci/conveyor/internal/artifact"
	"github.com/conveyor-ci/conveyor/internal/engine"
	"github.com/conveyor-ci/conveyor/internal/events"
	"github.com/conveyor-ci/conveyor/internal/store"
)

// Server exposes the engine over HTTP: trigger ingestion, run queries,
// artifact downloads, and the status event stream.
type Server struct {
	coord     *engine.Coordinator
	store     *store.Store
	artifacts *artifact.Store
	broker    *events.Broker
	logger    *log.Logger

	// execCtx is the parent context of run executions started by trigger
	// ingestion; cancelling it cancels in-flight runs cooperatively.
	execCtx context.Context
}

// NewServer wires the engine collaborators into an HTTP server.
func NewServer(execCtx context.Context, coord *engine.Coordinator, st *store.Store, artifacts *artifact.Store, broker *events.Broker, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		coord:     coord,
		store:     st,
		artifacts: artifacts,
		broker:    broker,
		logger:    logger,
		execCtx:   execCtx,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/triggers", s.handleTrigger)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/manifest", s.handleManifest)
	mux.HandleFunc("GET /api/runs/{id}/artifacts/{name}", s.handleArtifact)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/pipelines", s.handleListPipelines)
	return mux
}
