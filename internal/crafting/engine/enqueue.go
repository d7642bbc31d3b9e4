package engine

import (
	"context"
	"fmt"

	"github.com/rsned/craftqueue/pkg/crafting"
)

// MaxEnqueueCount caps how many tasks one enqueue_craft call may add.
const MaxEnqueueCount = 1000

// EnqueueCraft executes the enqueue_craft tool logic.
func (e *Engine) EnqueueCraft(ctx context.Context, req crafting.EnqueueRequest) (*crafting.EnqueueResponse, error) {
	count := req.Count
	if count == 0 {
		count = 1
	}
	if count < 0 || count > MaxEnqueueCount {
		return nil, fmt.Errorf("count must be between 1 and %d, got %d", MaxEnqueueCount, req.Count)
	}

	h, _, err := e.recipes.LookupByName(req.RecipeName)
	if err != nil {
		return nil, err
	}

	resp := &crafting.EnqueueResponse{
		ActorID: req.ActorID,
		TaskIDs: make([]uint64, 0, count),
	}
	for i := 0; i < count; i++ {
		id, err := e.EnqueueHandle(req.ActorID, h)
		if err != nil {
			return nil, err
		}
		resp.TaskIDs = append(resp.TaskIDs, id)
	}

	a, err := e.actor(req.ActorID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	resp.Queued = a.queue.Len()
	a.mu.Unlock()

	e.logger.Debug("tasks enqueued", "actor", req.ActorID, "recipe", req.RecipeName, "count", count)
	return resp, nil
}
