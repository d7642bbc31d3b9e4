package engine

import (
	"context"

	"github.com/rsned/craftqueue/pkg/crafting"
)

// QueueStatus executes the queue_status tool logic.
// It walks the queue in order and estimates when each task finishes,
// assuming every future tick grants one interval of budget.
func (e *Engine) QueueStatus(ctx context.Context, req crafting.QueueStatusRequest) (*crafting.QueueStatusResponse, error) {
	a, err := e.actor(req.ActorID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	tasks := a.queue.Tasks()
	a.mu.Unlock()

	resp := &crafting.QueueStatusResponse{
		ActorID:        req.ActorID,
		Tasks:          make([]crafting.QueuedTask, 0, len(tasks)),
		TickIntervalMs: e.interval.Milliseconds(),
	}

	var cumulative int64
	for i, task := range tasks {
		qt := crafting.QueuedTask{
			Position:    i,
			TaskID:      task.ID,
			State:       task.State,
			TimeSpentMs: task.TimeSpent.Milliseconds(),
		}

		def, err := e.recipes.Lookup(task.Recipe)
		if err != nil {
			// Dropped on the next tick; it will never finish.
			qt.State = crafting.TaskDropped
			resp.Tasks = append(resp.Tasks, qt)
			continue
		}

		remaining := def.Duration - task.TimeSpent
		if remaining < 0 {
			remaining = 0
		}
		cumulative += remaining.Milliseconds()

		qt.RecipeName = def.Name
		qt.DurationMs = def.Duration.Milliseconds()
		qt.RemainingMs = remaining.Milliseconds()
		qt.FinishesInMs = cumulative
		qt.TicksToFinish = ticksFor(cumulative, resp.TickIntervalMs)
		resp.Tasks = append(resp.Tasks, qt)
	}
	resp.TotalRemainMs = cumulative

	return resp, nil
}

// ticksFor returns how many whole ticks cover ms of craft time.
func ticksFor(ms, intervalMs int64) int {
	if ms <= 0 || intervalMs <= 0 {
		return 0
	}
	return int((ms + intervalMs - 1) / intervalMs)
}

// LedgerBalance executes the ledger_balance tool logic.
func (e *Engine) LedgerBalance(ctx context.Context, req crafting.LedgerBalanceRequest) (*crafting.LedgerBalanceResponse, error) {
	a, err := e.actor(req.ActorID)
	if err != nil {
		return nil, err
	}

	resp := &crafting.LedgerBalanceResponse{ActorID: req.ActorID}

	a.mu.Lock()
	defer a.mu.Unlock()

	if req.Kind != "" {
		kind, err := crafting.ParseResourceKind(req.Kind)
		if err != nil {
			return nil, err
		}
		resp.Balances = []crafting.ResourceAmount{{Kind: kind, Amount: a.ledger.Balance(kind)}}
		return resp, nil
	}

	resp.Balances = a.ledger.Amounts()
	return resp, nil
}
