package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rsned/craftqueue/pkg/crafting"
)

// EventStore records craft events.
type EventStore struct {
	db *DB
}

// NewEventStore creates a new EventStore.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// InsertEvent appends one event.
func (s *EventStore) InsertEvent(ctx context.Context, ev crafting.CompletionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO craft_events (run_id, actor_id, task_id, recipe_id, kind, tick, at, reason, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.RunID, ev.ActorID, int64(ev.TaskID), ev.RecipeName, string(ev.Kind),
		int64(ev.Tick), ev.At.UTC().Format(time.RFC3339Nano), ev.Reason, string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting craft event: %w", err)
	}

	return nil
}

// ListEvents returns the most recent events for an actor, newest first.
// An empty actorID lists events for every actor.
func (s *EventStore) ListEvents(ctx context.Context, actorID string, limit int) ([]crafting.CompletionEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM craft_events
		WHERE (? = '' OR actor_id = ?)
		ORDER BY id DESC
		LIMIT ?
	`, actorID, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing craft events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []crafting.CompletionEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning craft event: %w", err)
		}
		var ev crafting.CompletionEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decoding craft event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// CountEvents returns how many events of a kind were recorded for an actor.
// An empty actorID counts across every actor.
func (s *EventStore) CountEvents(ctx context.Context, actorID string, kind crafting.EventKind) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM craft_events WHERE (? = '' OR actor_id = ?) AND kind = ?
	`, actorID, actorID, string(kind)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting craft events: %w", err)
	}
	return count, nil
}
