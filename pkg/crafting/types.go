// Package crafting contains the core types for the crafting queue simulator.
package crafting

import (
	"fmt"
	"time"
)

// ============================================
// RESOURCE TYPES
// ============================================

// ResourceKind identifies a resource an actor can own.
type ResourceKind string

const (
	CopperOre   ResourceKind = "CopperOre"
	IronOre     ResourceKind = "IronOre"
	Coal        ResourceKind = "Coal"
	Stone       ResourceKind = "Stone"
	CopperIngot ResourceKind = "CopperIngot"
	IronIngot   ResourceKind = "IronIngot"
	CopperWire  ResourceKind = "CopperWire"
	IronPlate   ResourceKind = "IronPlate"
)

// ResourceKinds returns every known resource kind.
func ResourceKinds() []ResourceKind {
	return []ResourceKind{
		CopperOre,
		IronOre,
		Coal,
		Stone,
		CopperIngot,
		IronIngot,
		CopperWire,
		IronPlate,
	}
}

// IsValid checks if the kind is one of the known resource kinds.
func (k ResourceKind) IsValid() bool {
	for _, valid := range ResourceKinds() {
		if k == valid {
			return true
		}
	}
	return false
}

// ParseResourceKind converts a name into a ResourceKind.
func ParseResourceKind(name string) (ResourceKind, error) {
	k := ResourceKind(name)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown resource kind %q", name)
	}
	return k, nil
}

// ResourceAmount pairs a resource kind with a quantity.
type ResourceAmount struct {
	Kind   ResourceKind `json:"kind"`
	Amount int64        `json:"amount"`
}

// ============================================
// RECIPE TYPES
// ============================================

// RecipeHandle is the stable identifier assigned to a recipe at registration.
// Zero is never a valid handle.
type RecipeHandle uint64

// RecipeDefinition describes what a recipe consumes, produces and how long it takes.
type RecipeDefinition struct {
	Name     string           `json:"name"`
	Inputs   []ResourceAmount `json:"inputs"`
	Outputs  []ResourceAmount `json:"outputs"`
	Duration time.Duration    `json:"duration"`
}

// Clone returns a deep copy of the definition.
func (d RecipeDefinition) Clone() RecipeDefinition {
	out := d
	out.Inputs = append([]ResourceAmount(nil), d.Inputs...)
	out.Outputs = append([]ResourceAmount(nil), d.Outputs...)
	return out
}

// ============================================
// TASK TYPES
// ============================================

// TaskState is the lifecycle state of a craft task.
type TaskState string

const (
	TaskPending    TaskState = "PENDING"
	TaskInProgress TaskState = "IN_PROGRESS"
	TaskBlocked    TaskState = "BLOCKED"
	TaskCompleted  TaskState = "COMPLETED"
	TaskDropped    TaskState = "DROPPED"
)

// CraftTask is one queued attempt to produce a recipe's outputs.
type CraftTask struct {
	ID        uint64        `json:"id"`
	Recipe    RecipeHandle  `json:"recipe"`
	TimeSpent time.Duration `json:"time_spent"`
	State     TaskState     `json:"state"`
}

// ============================================
// EVENT TYPES
// ============================================

// EventKind says what happened to a task.
type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventDropped   EventKind = "dropped"
	EventBlocked   EventKind = "blocked"
)

// CompletionEvent is emitted whenever a task leaves the head of a queue
// or becomes blocked there.
type CompletionEvent struct {
	RunID      string           `json:"run_id,omitempty"`
	ActorID    string           `json:"actor_id"`
	TaskID     uint64           `json:"task_id"`
	Recipe     RecipeHandle     `json:"recipe"`
	RecipeName string           `json:"recipe_name,omitempty"`
	Kind       EventKind        `json:"kind"`
	Inputs     []ResourceAmount `json:"inputs,omitempty"`
	Outputs    []ResourceAmount `json:"outputs,omitempty"`
	Tick       uint64           `json:"tick"`
	At         time.Time        `json:"at"`
	Reason     string           `json:"reason,omitempty"`
}

// ============================================
// TOOL REQUEST/RESPONSE TYPES
// ============================================

// EnqueueRequest is the input for the enqueue_craft tool.
type EnqueueRequest struct {
	ActorID    string `json:"actor_id"`
	RecipeName string `json:"recipe_name"`
	Count      int    `json:"count"`
}

// EnqueueResponse is the output for the enqueue_craft tool.
type EnqueueResponse struct {
	ActorID string   `json:"actor_id"`
	TaskIDs []uint64 `json:"task_ids"`
	Queued  int      `json:"queued"`
}

// QueueStatusRequest is the input for the queue_status tool.
type QueueStatusRequest struct {
	ActorID string `json:"actor_id"`
}

// QueueStatusResponse is the output for the queue_status tool.
type QueueStatusResponse struct {
	ActorID        string       `json:"actor_id"`
	Tasks          []QueuedTask `json:"tasks"`
	TotalRemainMs  int64        `json:"total_remaining_ms"`
	TickIntervalMs int64        `json:"tick_interval_ms"`
}

// QueuedTask is a task as seen from outside, with its estimated finish.
type QueuedTask struct {
	Position      int       `json:"position"`
	TaskID        uint64    `json:"task_id"`
	RecipeName    string    `json:"recipe_name"`
	State         TaskState `json:"state"`
	TimeSpentMs   int64     `json:"time_spent_ms"`
	DurationMs    int64     `json:"duration_ms"`
	RemainingMs   int64     `json:"remaining_ms"`
	FinishesInMs  int64     `json:"finishes_in_ms"`
	TicksToFinish int       `json:"ticks_to_finish"`
}

// LedgerBalanceRequest is the input for the ledger_balance tool.
type LedgerBalanceRequest struct {
	ActorID string `json:"actor_id"`
	Kind    string `json:"kind,omitempty"`
}

// LedgerBalanceResponse is the output for the ledger_balance tool.
type LedgerBalanceResponse struct {
	ActorID  string           `json:"actor_id"`
	Balances []ResourceAmount `json:"balances"`
}

// RecipeLookupRequest is the input for the recipe_lookup tool.
type RecipeLookupRequest struct {
	RecipeName string `json:"recipe_name,omitempty"`
	Search     string `json:"search,omitempty"`
}

// RecipeLookupResponse is the output for the recipe_lookup tool.
type RecipeLookupResponse struct {
	Handle        RecipeHandle      `json:"handle,omitempty"`
	Recipe        *RecipeDefinition `json:"recipe,omitempty"`
	UsedInRecipes []string          `json:"used_in_recipes,omitempty"`
	SearchResults []RecipeSearchHit `json:"search_results,omitempty"`
}

// RecipeSearchHit is a lightweight recipe match for search results.
type RecipeSearchHit struct {
	Handle     RecipeHandle `json:"handle"`
	Name       string       `json:"name"`
	DurationMs int64        `json:"duration_ms"`
}

// ResourceUsesRequest is the input for the resource_uses tool.
type ResourceUsesRequest struct {
	Kind string `json:"kind"`
}

// ResourceUsesResponse is the output for the resource_uses tool.
type ResourceUsesResponse struct {
	Kind       ResourceKind  `json:"kind"`
	ConsumedBy []ResourceUse `json:"consumed_by"`
	ProducedBy []ResourceUse `json:"produced_by"`
}

// ResourceUse describes how one recipe consumes or produces a resource.
type ResourceUse struct {
	RecipeName       string `json:"recipe_name"`
	QuantityPerCraft int64  `json:"quantity_per_craft"`
	DurationMs       int64  `json:"duration_ms"`
}

// CraftHistoryRequest is the input for the craft_history tool.
type CraftHistoryRequest struct {
	ActorID string `json:"actor_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// CraftHistoryResponse is the output for the craft_history tool.
type CraftHistoryResponse struct {
	ActorID   string            `json:"actor_id,omitempty"`
	Events    []CompletionEvent `json:"events"`
	Completed int               `json:"completed"`
	Dropped   int               `json:"dropped"`
	Blocked   int               `json:"blocked"`
}
