// Package logging builds the structured loggers used across suiterun.
package logging

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// LevelForVerbosity maps the CLI -v count to a log level.
// 0 is info, 1 is debug, 2 and above is trace. quiet wins over verbosity.
func LevelForVerbosity(verbosity int, quiet bool) slog.Level {
	switch {
	case quiet:
		return log.LevelError
	case verbosity >= 2:
		return log.LevelTrace
	case verbosity == 1:
		return log.LevelDebug
	default:
		return log.LevelInfo
	}
}

// New returns a logger writing to w, as JSON lines or terminal text.
func New(w io.Writer, level slog.Level, jsonFormat, useColor bool) log.Logger {
	if jsonFormat {
		return log.NewLogger(log.JSONHandlerWithLevel(w, level))
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(w, level, useColor))
}

// Discard returns a logger that drops everything
func Discard() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

// Record is one captured log line
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Recorder is a slog.Handler that keeps every record in memory.
// It is safe for concurrent use.
type Recorder struct {
	mu      *sync.Mutex
	records *[]Record
	attrs   []slog.Attr
}

func NewRecorder() *Recorder {
	return &Recorder{
		mu:      &sync.Mutex{},
		records: &[]Record{},
	}
}

// Logger wraps the recorder in a log.Logger
func (r *Recorder) Logger() log.Logger {
	return log.NewLogger(r)
}

func (r *Recorder) Enabled(context.Context, slog.Level) bool {
	return true
}

func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(r.attrs))
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	*r.records = append(*r.records, Record{Level: rec.Level, Message: rec.Message, Attrs: attrs})
	return nil
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(r.attrs)+len(attrs))
	merged = append(merged, r.attrs...)
	merged = append(merged, attrs...)
	return &Recorder{mu: r.mu, records: r.records, attrs: merged}
}

func (r *Recorder) WithGroup(string) slog.Handler {
	return r
}

// Records returns a copy of everything captured so far
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(*r.records))
	copy(out, *r.records)
	return out
}

// AtLevel returns the records logged at exactly level
func (r *Recorder) AtLevel(level slog.Level) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Level == level {
			out = append(out, rec)
		}
	}
	return out
}
