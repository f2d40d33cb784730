package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nvandessel/gasprops/internal/backup"
	"github.com/nvandessel/gasprops/internal/config"
	"github.com/nvandessel/gasprops/internal/constants"
	"github.com/nvandessel/gasprops/internal/pathutil"
	"github.com/nvandessel/gasprops/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
		Long: `List and show runs recorded by "gasprops run" and the MCP server.

Only run metadata and sampled observables are stored; particle positions
are never recorded.`,
	}
	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryExportCmd(),
		newHistoryImportCmd(),
	)
	return cmd
}

// openHistory opens the configured history database.
func openHistory(ctx context.Context) (*store.SQLiteRunStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	runs, err := store.NewSQLiteRunStore(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return runs, nil
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			runs, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer runs.Close()

			list, err := runs.ListRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if jsonOut {
				if list == nil {
					list = []store.Run{}
				}
				json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":  list,
					"count": len(list),
				})
				return nil
			}

			if len(list) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			fmt.Fprintf(out, "%-6s %-20s %-10s %8s %10s %6s %6s\n", "ID", "STARTED", "STATUS", "STEPS", "DT (ps)", "N1", "N2")
			for _, r := range list {
				fmt.Fprintf(out, "%-6d %-20s %-10s %8d %10g %6d %6d\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Steps, r.TimeStep,
					r.Experiment.Species1.NumberOfParticles, r.Experiment.Species2.NumberOfParticles)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its sampled observables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			withSamples, _ := cmd.Flags().GetBool("samples")
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			runs, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer runs.Close()

			run, err := runs.GetRun(ctx, id)
			if errors.Is(err, store.ErrRunNotFound) {
				if jsonOut {
					json.NewEncoder(out).Encode(map[string]interface{}{
						"error":  "run not found",
						"run_id": id,
					})
				} else {
					fmt.Fprintf(out, "Run not found: %d\n", id)
				}
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load run: %w", err)
			}
			samples, err := runs.Samples(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load samples: %w", err)
			}

			if jsonOut {
				result := map[string]interface{}{
					"run":          run,
					"sample_count": len(samples),
				}
				if withSamples {
					result["samples"] = samples
				}
				json.NewEncoder(out).Encode(result)
				return nil
			}

			fmt.Fprintf(out, "Run #%d (%s)\n", run.ID, run.Status)
			fmt.Fprintf(out, "  Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
			if run.FinishedAt != nil {
				fmt.Fprintf(out, "  Finished:  %s\n", run.FinishedAt.Local().Format(time.DateTime))
			}
			if run.Error != "" {
				fmt.Fprintf(out, "  Error:     %s\n", run.Error)
			}
			fmt.Fprintf(out, "  Seed:      %d\n", run.Seed)
			fmt.Fprintf(out, "  Time step: %g ps\n", run.TimeStep)
			fmt.Fprintf(out, "  Steps:     %d\n", run.Steps)
			fmt.Fprintf(out, "  Divider:   %v\n", run.Divider)
			for _, sp := range constants.AllSpecies {
				e := run.Experiment.For(sp)
				fmt.Fprintf(out, "  Species %d: n=%d mass=%g AMU radius=%g pm T0=%g K\n",
					sp, e.NumberOfParticles, e.Mass, e.Radius, e.InitialTemperature)
			}
			fmt.Fprintf(out, "  Samples:   %d\n", len(samples))

			if withSamples && len(samples) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintf(out, "%8s %10s %6s %6s %6s %6s %10s %10s %8s %8s\n",
					"STEP", "TIME", "L1", "R1", "L2", "R2", "T LEFT", "T RIGHT", "FLOW1", "FLOW2")
				for _, s := range samples {
					fmt.Fprintf(out, "%8d %10.3f %6d %6d %6d %6d %10s %10s %8s %8s\n",
						s.Step, s.Time, s.Left1, s.Right1, s.Left2, s.Right2,
						formatValue(s.LeftTemperature), formatValue(s.RightTemperature),
						formatValue(s.FlowRate1), formatValue(s.FlowRate2))
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("samples", false, "Include the sampled observables")
	return cmd
}

func newHistoryExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write a run and its samples to an archive file",
		Long: `Export a recorded run to a checksummed, compressed archive.

Archives are written to ~/.gasprops/exports/ unless --output names a
path in that directory or below the working directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")
			keep, _ := cmd.Flags().GetInt("keep")
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			dir, err := backup.DefaultDir()
			if err != nil {
				return err
			}
			if output == "" {
				output = backup.GeneratePath(dir, id)
			}
			allowed, err := pathutil.ExportDirs()
			if err != nil {
				return err
			}
			if err := pathutil.ValidatePath(output, allowed); err != nil {
				return err
			}

			runs, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer runs.Close()

			a, err := backup.Export(ctx, runs, id, output)
			if err != nil {
				return err
			}

			var rotated []string
			if keep > 0 {
				rotated, err = backup.Rotate(dir, keep)
				if err != nil {
					return err
				}
			}

			if jsonOut {
				json.NewEncoder(out).Encode(map[string]interface{}{
					"path":    output,
					"run_id":  a.Run.ID,
					"samples": len(a.Samples),
					"rotated": len(rotated),
				})
			} else {
				fmt.Fprintf(out, "Exported run #%d (%d samples) to %s\n", a.Run.ID, len(a.Samples), output)
				if len(rotated) > 0 {
					fmt.Fprintf(out, "Removed %d old archive(s)\n", len(rotated))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Archive path (default: ~/.gasprops/exports/gasprops-run-<id>-<time>.gpr)")
	cmd.Flags().Int("keep", 0, "Keep only the N newest archives in ~/.gasprops/exports (0 keeps all)")
	return cmd
}

func newHistoryImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Record the run in an archive file as a new run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			allowed, err := pathutil.ExportDirs()
			if err != nil {
				return err
			}
			if err := pathutil.ValidatePath(args[0], allowed); err != nil {
				return err
			}

			runs, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer runs.Close()

			res, err := backup.Import(ctx, runs, args[0])
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", pathutil.RedactPath(args[0]), err)
			}

			if jsonOut {
				json.NewEncoder(out).Encode(res)
			} else {
				fmt.Fprintf(out, "Imported run #%d as run #%d (%d samples)\n", res.SourceRunID, res.RunID, res.Samples)
			}
			return nil
		},
	}
}
