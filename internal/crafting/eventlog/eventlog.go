// Package eventlog delivers craft events to the places that record them.
package eventlog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rsned/craftqueue/internal/crafting/db"
	"github.com/rsned/craftqueue/pkg/crafting"
)

// Sink receives craft events.
type Sink interface {
	Publish(ctx context.Context, ev crafting.CompletionEvent) error
}

// Multi fans an event out to every sink. All sinks are tried.
type Multi []Sink

// Publish sends ev to each sink and joins their errors.
func (m Multi) Publish(ctx context.Context, ev crafting.CompletionEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes one log line per event.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Publish logs ev. Completions log at Info, drops at Warn.
func (s *LogSink) Publish(ctx context.Context, ev crafting.CompletionEvent) error {
	level := slog.LevelInfo
	if ev.Kind == crafting.EventDropped {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "craft "+string(ev.Kind),
		"actor", ev.ActorID,
		"task_id", ev.TaskID,
		"recipe", ev.RecipeName,
		"tick", ev.Tick,
		"outputs", ev.Outputs,
		"reason", ev.Reason,
	)
	return nil
}

// StoreSink records events in the database.
type StoreSink struct {
	store *db.EventStore
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(store *db.EventStore) *StoreSink {
	return &StoreSink{store: store}
}

// Publish inserts ev.
func (s *StoreSink) Publish(ctx context.Context, ev crafting.CompletionEvent) error {
	return s.store.InsertEvent(ctx, ev)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, ev crafting.CompletionEvent) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, ev crafting.CompletionEvent) error {
	return f(ctx, ev)
}
