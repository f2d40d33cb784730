package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/nvandessel/gasprops/internal/config"
	"github.com/nvandessel/gasprops/internal/diffusion"
	"github.com/nvandessel/gasprops/internal/visualization"
	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the container, regions and particles",
		Long: `Render a snapshot of the model as SVG, JSON or HTML.

The model is built from the configuration and optionally stepped first.
With --serve a local server steps the model live in the browser.

Examples:
  gasprops render > box.svg
  gasprops render --steps 500 --regions --format html -o box.html
  gasprops render --serve --n1 40 --n2 40`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatFlag, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			regions, _ := cmd.Flags().GetBool("regions")
			noOpen, _ := cmd.Flags().GetBool("no-open")
			serve, _ := cmd.Flags().GetBool("serve")
			stepsPerFrame, _ := cmd.Flags().GetInt("steps-per-frame")

			// --serve implies HTML
			if serve {
				formatFlag = string(visualization.FormatHTML)
			}
			format, err := visualization.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			applyRunFlags(cmd, cfg)
			if !cmd.Flags().Changed("steps") {
				cfg.Simulation.Steps = 0
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			m, err := diffusion.New(cfg.ModelOptions())
			if err != nil {
				return fmt.Errorf("failed to create model: %w", err)
			}
			if err := m.Run(cmd.Context(), cfg.Simulation.TimeStep, cfg.Simulation.Steps, nil); err != nil {
				return fmt.Errorf("step %d: %w", m.Steps()+1, err)
			}

			opts := visualization.Options{Regions: regions}
			if serve {
				return runRenderServer(cmd, m, cfg.Simulation.TimeStep, stepsPerFrame, opts, noOpen)
			}

			scene := visualization.Snapshot(m)
			var data []byte
			switch format {
			case visualization.FormatSVG:
				data = []byte(visualization.RenderSVG(scene, opts))
			case visualization.FormatJSON:
				data, err = visualization.RenderJSON(scene)
			case visualization.FormatHTML:
				data, err = visualization.RenderHTML(scene, opts, false)
			}
			if err != nil {
				return fmt.Errorf("render %s: %w", format, err)
			}

			if output == "" && format != visualization.FormatHTML {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			return writeRendering(cmd, data, format, output, noOpen)
		},
	}

	cmd.Flags().String("format", "svg", "Output format: svg, json, or html")
	cmd.Flags().StringP("output", "o", "", "Output file path (html defaults to a temp file)")
	cmd.Flags().Bool("regions", false, "Draw the collision region grid")
	cmd.Flags().Bool("no-open", false, "Don't open browser after generating HTML")
	cmd.Flags().Bool("serve", false, "Start a local server that steps the model live")
	cmd.Flags().Int("steps-per-frame", 10, "Steps per animation frame with --serve")
	cmd.Flags().Int("steps", 0, "Steps to run before rendering")
	cmd.Flags().Float64("dt", 0, "Time step in ps (default: simulation.time_step)")
	cmd.Flags().Uint64("seed", 0, "Random seed (default: simulation.seed)")
	cmd.Flags().Int("n1", 0, "Number of species 1 particles")
	cmd.Flags().Int("n2", 0, "Number of species 2 particles")

	return cmd
}

// writeRendering writes data to output and opens HTML in the browser.
func writeRendering(cmd *cobra.Command, data []byte, format visualization.Format, output string, noOpen bool) error {
	outPath := output
	if outPath == "" {
		outPath = filepath.Join(os.TempDir(), "gasprops-scene.html")
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s file: %w", format, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scene written to %s\n", outPath)

	if format == visualization.FormatHTML && !noOpen {
		if err := visualization.OpenBrowser(outPath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, outPath)
		}
	}
	return nil
}

// runRenderServer serves the live view and blocks until Ctrl-C.
func runRenderServer(cmd *cobra.Command, m *diffusion.Model, dt float64, stepsPerFrame int, opts visualization.Options, noOpen bool) error {
	srv := visualization.NewServer(m, dt, stepsPerFrame, opts)

	srvCtx, srvCancel := context.WithCancel(cmd.Context())
	defer srvCancel()

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			srvCancel()
		case <-srvCtx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(srvCtx) }()

	// Wait for server to start
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Addr() != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	addr := srv.Addr()
	if addr == "" {
		return fmt.Errorf("server failed to start")
	}

	url := "http://" + addr
	fmt.Fprintf(cmd.OutOrStdout(), "Simulation server running at %s\n", url)
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

	if !noOpen {
		if err := visualization.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
		}
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
