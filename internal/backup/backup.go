// Package backup exports recorded runs to portable archive files and
// imports them into another history database.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/nvandessel/gasprops/internal/store"
)

// Archive is one run with all of its samples.
type Archive struct {
	CreatedAt time.Time      `json:"created_at"`
	Run       store.Run      `json:"run"`
	Samples   []store.Sample `json:"samples"`
}

// ImportResult describes an imported archive.
type ImportResult struct {
	RunID       int64 `json:"run_id"`    // ID in the target store
	SourceRunID int64 `json:"source_id"` // ID in the archive
	Samples     int   `json:"samples"`
}

// DefaultDir returns the default export directory (~/.gasprops/exports/).
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".gasprops", "exports"), nil
}

// Export writes run runID and its samples from runs to outputPath.
func Export(ctx context.Context, runs store.RunStore, runID int64, outputPath string) (*Archive, error) {
	run, err := runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", runID, err)
	}
	samples, err := runs.Samples(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get samples of run %d: %w", runID, err)
	}
	a := &Archive{
		CreatedAt: time.Now().UTC(),
		Run:       *run,
		Samples:   samples,
	}
	if err := Write(outputPath, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Import reads the archive at inputPath and records it as a new run. The
// run keeps its timestamps and status but gets a new ID.
func Import(ctx context.Context, runs store.RunStore, inputPath string) (*ImportResult, error) {
	a, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	id, err := runs.CreateRun(ctx, a.Run)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	if len(a.Samples) > 0 {
		if err := runs.AddSamples(ctx, id, a.Samples); err != nil {
			return nil, fmt.Errorf("failed to add samples: %w", err)
		}
	}
	if a.Run.Status != store.StatusRunning {
		var runErr error
		if a.Run.Error != "" {
			runErr = errors.New(a.Run.Error)
		}
		if err := runs.FinishRun(ctx, id, a.Run.Status, a.Run.Steps, runErr); err != nil {
			return nil, fmt.Errorf("failed to finish run: %w", err)
		}
	}
	return &ImportResult{RunID: id, SourceRunID: a.Run.ID, Samples: len(a.Samples)}, nil
}

// GeneratePath creates a timestamped archive filename for runID in dir.
func GeneratePath(dir string, runID int64) string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("gasprops-run-%d-%s.gpr", runID, ts))
}

// Rotate keeps only the keepN most recently modified archives in dir.
func Rotate(dir string, keepN int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read export directory: %w", err)
	}

	type archiveFile struct {
		name    string
		modTime time.Time
	}
	var files []archiveFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".gpr") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, archiveFile{e.Name(), info.ModTime()})
	}
	if len(files) <= keepN {
		return nil, nil
	}

	// Newest first; ties broken by name, which embeds the timestamp.
	slices.SortFunc(files, func(a, b archiveFile) int {
		if c := b.modTime.Compare(a.modTime); c != 0 {
			return c
		}
		return strings.Compare(b.name, a.name)
	})

	var deleted []string
	for _, f := range files[keepN:] {
		path := filepath.Join(dir, f.name)
		if err := os.Remove(path); err != nil {
			return deleted, fmt.Errorf("failed to remove old archive %s: %w", f.name, err)
		}
		deleted = append(deleted, path)
	}
	return deleted, nil
}
