// Package mcp provides an MCP (Model Context Protocol) server that drives a
// single diffusion model over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/ratelimit"
	"github.com/nvandessel/gasprops/internal/store"
)

// Server wraps the MCP SDK server. Every tool call takes mu, so the model
// only ever sees one caller at a time.
type Server struct {
	server       *sdk.Server
	mu           sync.Mutex
	model        *diffusion.Model
	timeStep     float64
	seed         uint64
	runs         store.RunStore
	runID        int64
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "gasprops")
	Version string // Server version

	Model    diffusion.Options
	TimeStep float64 // default step length in ps

	// Runs, when non-nil, records every gas_step call as a sample of one run.
	Runs store.RunStore

	// AuditDir is where audit.jsonl is written. Empty disables auditing.
	AuditDir string

	Logger *slog.Logger
}

// NewServer creates the model and registers the tools and resources.
func NewServer(cfg *Config) (*Server, error) {
	if !(cfg.TimeStep > 0) {
		return nil, fmt.Errorf("%w: %g", diffusion.ErrInvalidTimeStep, cfg.TimeStep)
	}
	model, err := diffusion.New(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	model.SetLogger(logger)
	model.CollisionCounter().SetRunning(true)

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		model:        model,
		timeStep:     cfg.TimeStep,
		seed:         cfg.Model.Seed,
		runs:         cfg.Runs,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logger,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Model returns the driven model. Callers outside tool handlers must not
// use it while the server is running.
func (s *Server) Model() *diffusion.Model { return s.model }

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close finishes the recorded run, if any, and closes the audit log.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.runs != nil && s.runID != 0 {
		if err := s.runs.FinishRun(context.Background(), s.runID, store.StatusCompleted, s.model.Steps(), nil); err != nil {
			firstErr = err
		}
		s.runID = 0
	}
	if err := s.auditLogger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.auditLogger = nil
	return firstErr
}
