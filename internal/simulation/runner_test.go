package simulation

import (
	"context"
	"testing"

	"github.com/nvandessel/gasprops/internal/store"
)

func TestRunner_RecordsSamples(t *testing.T) {
	r := NewRunner(t)
	opts := smallOptions()
	result := r.Run(Scenario{
		Name:            "samples",
		Options:         opts,
		TimeStep:        0.25,
		Steps:           40,
		RemoveDividerAt: 10,
		InsertDividerAt: Never,
		SampleEvery:     10,
	})

	if result.Err != nil {
		t.Fatalf("run failed: %v", result.Err)
	}
	if len(result.Frames) != 41 {
		t.Errorf("got %d frames, want 41", len(result.Frames))
	}
	if len(result.Samples) != 4 {
		t.Fatalf("got %d samples, want 4", len(result.Samples))
	}
	for i, s := range result.Samples {
		if s.Step != (i+1)*10 {
			t.Errorf("sample %d at step %d, want %d", i, s.Step, (i+1)*10)
		}
	}
	if got := result.Samples[3].Time; got != 10 {
		t.Errorf("last sample time = %v, want 10", got)
	}

	run, err := r.Store().GetRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != store.StatusCompleted || run.Steps != 40 {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestFrame_Count(t *testing.T) {
	r := NewRunner(t)
	result := r.Run(Scenario{
		Name:            "count",
		Options:         smallOptions(),
		TimeStep:        0.5,
		Steps:           1,
		RemoveDividerAt: Never,
		InsertDividerAt: Never,
	})
	if got := result.Last().Count(1); got != 3 {
		t.Errorf("Count(1) = %d, want 3", got)
	}
	if got := result.Last().Count(2); got != 5 {
		t.Errorf("Count(2) = %d, want 5", got)
	}
}
