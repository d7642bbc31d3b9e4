package mcp

import (
	"context"
	"encoding/json"

	"github.com/rsned/craftqueue/internal/crafting/engine"
	"github.com/rsned/craftqueue/pkg/crafting"
)

// ToolDefinition describes an MCP tool.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema JSONSchema `json:"inputSchema"`
}

// JSONSchema is a simplified JSON Schema representation.
type JSONSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a schema property.
type Property struct {
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}

// GetToolDefinitions returns all tool definitions.
func GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		enqueueCraftTool(),
		queueStatusTool(),
		ledgerBalanceTool(),
		recipeLookupTool(),
		resourceUsesTool(),
		craftHistoryTool(),
	}
}

func resourceKindNames() []string {
	kinds := crafting.ResourceKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

func enqueueCraftTool() ToolDefinition {
	minCount := 1.0
	maxCount := 1000.0

	return ToolDefinition{
		Name:        "enqueue_craft",
		Description: "Append one or more craft tasks for a recipe to the end of an actor's queue. Tasks run strictly in order, one at a time.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"actor_id": {
					Type:        "string",
					Description: "Actor whose queue receives the tasks",
				},
				"recipe_name": {
					Type:        "string",
					Description: "Registered recipe name",
				},
				"count": {
					Type:        "integer",
					Description: "Number of tasks to enqueue",
					Default:     1,
					Minimum:     &minCount,
					Maximum:     &maxCount,
				},
			},
			Required: []string{"actor_id", "recipe_name"},
		},
	}
}

func queueStatusTool() ToolDefinition {
	return ToolDefinition{
		Name:        "queue_status",
		Description: "Show an actor's craft queue in order with progress, remaining time and estimated ticks until each task finishes.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"actor_id": {
					Type:        "string",
					Description: "Actor to inspect",
				},
			},
			Required: []string{"actor_id"},
		},
	}
}

func ledgerBalanceTool() ToolDefinition {
	return ToolDefinition{
		Name:        "ledger_balance",
		Description: "Show an actor's resource balances. Omit kind to list every non-zero balance.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"actor_id": {
					Type:        "string",
					Description: "Actor to inspect",
				},
				"kind": {
					Type:        "string",
					Description: "Single resource kind to report",
					Enum:        resourceKindNames(),
				},
			},
			Required: []string{"actor_id"},
		},
	}
}

func recipeLookupTool() ToolDefinition {
	return ToolDefinition{
		Name:        "recipe_lookup",
		Description: "Get recipe details by name, or search recipes by partial name.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"recipe_name": {
					Type:        "string",
					Description: "Exact recipe name",
				},
				"search": {
					Type:        "string",
					Description: "Case-insensitive substring search on recipe names",
				},
			},
		},
	}
}

func resourceUsesTool() ToolDefinition {
	return ToolDefinition{
		Name:        "resource_uses",
		Description: "List the recipes that consume or produce a resource kind.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"kind": {
					Type:        "string",
					Description: "Resource kind",
					Enum:        resourceKindNames(),
				},
			},
			Required: []string{"kind"},
		},
	}
}

func craftHistoryTool() ToolDefinition {
	minLimit := 1.0
	maxLimit := float64(engine.MaxHistoryLimit)

	return ToolDefinition{
		Name:        "craft_history",
		Description: "List recorded completion, drop and block events, newest first, with totals per kind. Omit actor_id to cover every actor.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"actor_id": {
					Type:        "string",
					Description: "Actor to inspect",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of events to return",
					Default:     20,
					Minimum:     &minLimit,
					Maximum:     &maxLimit,
				},
			},
		},
	}
}

// Tool handlers

func (s *Server) toolEnqueueCraft(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.EnqueueRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, err
	}
	return s.engine.EnqueueCraft(ctx, req)
}

func (s *Server) toolQueueStatus(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.QueueStatusRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, err
	}
	return s.engine.QueueStatus(ctx, req)
}

func (s *Server) toolLedgerBalance(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.LedgerBalanceRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, err
	}
	return s.engine.LedgerBalance(ctx, req)
}

func (s *Server) toolRecipeLookup(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.RecipeLookupRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, err
	}
	return s.engine.RecipeLookup(ctx, req)
}

func (s *Server) toolResourceUses(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.ResourceUsesRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, err
	}
	return s.engine.ResourceUses(ctx, req)
}

func (s *Server) toolCraftHistory(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.CraftHistoryRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, err
	}
	return s.engine.CraftHistory(ctx, req)
}
