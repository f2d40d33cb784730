package main

import (
	"fmt"

	"github.com/nvandessel/gasprops/internal/config"
	"github.com/nvandessel/gasprops/internal/logging"
	"github.com/nvandessel/gasprops/internal/mcp"
	"github.com/nvandessel/gasprops/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an MCP server over stdio that drives one model",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Clients can step the model, read observables, change experiment
parameters, toggle the divider and render the scene. Tool calls are
audited to ~/.gasprops/audit.jsonl and, unless --no-store is given,
every reset cycle is recorded as a run in the history database.

Configure it in an MCP client, e.g.:
  {"command": "gasprops", "args": ["serve"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			noStore, _ := cmd.Flags().GetBool("no-store")
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			applyRunFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			// stdout carries the protocol, so logs go to stderr.
			logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())

			dir, err := config.Dir()
			if err != nil {
				return err
			}

			serverCfg := &mcp.Config{
				Name:     "gasprops",
				Version:  version,
				Model:    cfg.ModelOptions(),
				TimeStep: cfg.Simulation.TimeStep,
				AuditDir: dir,
				Logger:   logger,
			}
			if cfg.Store.Enabled && !noStore {
				path, err := cfg.StorePath()
				if err != nil {
					return err
				}
				runs, err := store.NewSQLiteRunStore(ctx, path)
				if err != nil {
					return fmt.Errorf("failed to open history: %w", err)
				}
				defer runs.Close()
				serverCfg.Runs = runs
			}

			server, err := mcp.NewServer(serverCfg)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			el := logging.NewEventLogger(dir, cfg.Logging.Level)
			defer el.Close()
			defer el.Attach(server.Model().Events())()

			logger.Info("MCP server starting", "time_step", cfg.Simulation.TimeStep, "seed", cfg.Simulation.Seed)
			if err := server.Run(ctx); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Float64("dt", 0, "Default time step in ps (default: simulation.time_step)")
	cmd.Flags().Uint64("seed", 0, "Random seed (default: simulation.seed)")
	cmd.Flags().Int("n1", 0, "Number of species 1 particles")
	cmd.Flags().Int("n2", 0, "Number of species 2 particles")
	cmd.Flags().Bool("no-store", false, "Do not record runs in the history database")

	return cmd
}
