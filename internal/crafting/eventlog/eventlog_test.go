package eventlog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rsned/craftqueue/internal/crafting/db"
	"github.com/rsned/craftqueue/pkg/crafting"
)

func sampleEvent(task uint64) crafting.CompletionEvent {
	return crafting.CompletionEvent{
		RunID:      "run-1",
		ActorID:    "player",
		TaskID:     task,
		RecipeName: "mine_copper",
		Kind:       crafting.EventCompleted,
		Outputs:    []crafting.ResourceAmount{{Kind: crafting.CopperOre, Amount: 1}},
		Tick:       21,
		At:         time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestMultiTriesEverySink(t *testing.T) {
	var calls int
	boom := errors.New("boom")
	m := Multi{
		SinkFunc(func(context.Context, crafting.CompletionEvent) error { calls++; return boom }),
		SinkFunc(func(context.Context, crafting.CompletionEvent) error { calls++; return nil }),
	}
	err := m.Publish(context.Background(), sampleEvent(1))
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both sinks called, got %d", calls)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := s.Publish(context.Background(), sampleEvent(7)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, "craft completed") || !strings.Contains(line, "task_id=7") {
		t.Fatalf("unexpected log line: %s", line)
	}
}

func TestStoreSink(t *testing.T) {
	ctx := context.Background()
	database, err := db.OpenAndInit(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = database.Close() }()

	store := db.NewEventStore(database)
	if err := NewStoreSink(store).Publish(ctx, sampleEvent(3)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	n, _ := store.CountEvents(ctx, "player", crafting.EventCompleted)
	if n != 1 {
		t.Fatalf("expected 1 stored event, got %d", n)
	}
}

func TestJSONLZstdWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	hour := time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)
	w.now = func() time.Time { return hour }

	ctx := context.Background()
	for i := uint64(1); i <= 3; i++ {
		if err := w.Publish(ctx, sampleEvent(i)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	// Next hour rotates to a new file.
	w.now = func() time.Time { return hour.Add(time.Hour) }
	if err := w.Publish(ctx, sampleEvent(4)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	first, err := ReadEvents(w.PathForHour("2025-01-01-10"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(first) != 3 || first[2].TaskID != 3 {
		t.Fatalf("unexpected events: %+v", first)
	}
	second, err := ReadEvents(w.PathForHour("2025-01-01-11"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(second) != 1 || second[0].TaskID != 4 {
		t.Fatalf("unexpected events: %+v", second)
	}
}
