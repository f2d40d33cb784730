// Package logging provides leveled logging and an event trace for gasprops.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An EventLogger writing model events as JSONL (~/.gasprops/events.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/gasprops/internal/events"
)

// LevelTrace is a custom slog level below Debug. At this level every
// simulation step is logged with its collision counts.
const LevelTrace = slog.LevelDebug - 4

// EventsFile is the name of the JSONL event trace inside the log directory.
const EventsFile = "events.jsonl"

// Levels lists the level names accepted in configuration, most severe first.
var Levels = []string{"error", "warn", "info", "debug", "trace"}

// ParseLevel maps a string level name to a slog.Level.
// Supported values are Levels plus the "warning" alias (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w. format selects the
// handler: "json" for JSON lines, anything else for text.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EventLogger appends model events to a JSONL file, one object per line.
// It is safe for concurrent use. A nil EventLogger is safe to use;
// all methods are no-ops on nil receiver.
type EventLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewEventLogger opens dir/events.jsonl for append. Below debug level it
// returns nil and creates nothing, as it does when the file cannot be
// opened.
func NewEventLogger(dir string, level string) *EventLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, EventsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &EventLogger{file: f}
}

// Log writes fields as one JSONL line with a wall-clock "time" added.
// The caller's map is not mutated.
func (el *EventLogger) Log(fields map[string]any) {
	if el == nil {
		return
	}
	entry := make(map[string]any, len(fields)+1)
	maps.Copy(entry, fields)
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file == nil {
		return
	}
	_, _ = el.file.Write(data)
}

// Attach subscribes the logger to bus and returns the unsubscribe function.
// Attaching a nil logger subscribes nothing.
func (el *EventLogger) Attach(bus *events.Bus) func() {
	if el == nil || bus == nil {
		return func() {}
	}
	return bus.Subscribe(func(e events.Event) { el.Log(e.Fields()) })
}

// Close closes the underlying file.
func (el *EventLogger) Close() {
	if el == nil {
		return
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file != nil {
		el.file.Close()
		el.file = nil
	}
}
