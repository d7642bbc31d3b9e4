package engine

import (
	"context"

	"github.com/rsned/craftqueue/pkg/crafting"
)

const (
	defaultHistoryLimit = 20
	// MaxHistoryLimit caps how many events one craft_history call returns.
	MaxHistoryLimit = 500
)

// CraftHistory executes the craft_history tool logic.
func (e *Engine) CraftHistory(ctx context.Context, req crafting.CraftHistoryRequest) (*crafting.CraftHistoryResponse, error) {
	if e.events == nil {
		return nil, ErrNoHistory
	}
	if req.ActorID != "" {
		if _, err := e.actor(req.ActorID); err != nil {
			return nil, err
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	events, err := e.events.ListEvents(ctx, req.ActorID, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []crafting.CompletionEvent{}
	}

	resp := &crafting.CraftHistoryResponse{
		ActorID: req.ActorID,
		Events:  events,
	}
	for _, c := range []struct {
		kind crafting.EventKind
		dst  *int
	}{
		{crafting.EventCompleted, &resp.Completed},
		{crafting.EventDropped, &resp.Dropped},
		{crafting.EventBlocked, &resp.Blocked},
	} {
		n, err := e.events.CountEvents(ctx, req.ActorID, c.kind)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	return resp, nil
}
