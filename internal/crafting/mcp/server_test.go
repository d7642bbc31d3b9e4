package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rsned/craftqueue/internal/crafting/db"
	"github.com/rsned/craftqueue/internal/crafting/engine"
	"github.com/rsned/craftqueue/internal/crafting/eventlog"
	"github.com/rsned/craftqueue/internal/crafting/registry"
	"github.com/rsned/craftqueue/pkg/crafting"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.New()
	defs := []crafting.RecipeDefinition{
		{
			Name:     "mine_copper",
			Duration: 20833 * time.Millisecond,
			Outputs:  []crafting.ResourceAmount{{Kind: crafting.CopperOre, Amount: 1}},
		},
		{
			Name:     "smelt_copper",
			Duration: 3200 * time.Millisecond,
			Inputs: []crafting.ResourceAmount{
				{Kind: crafting.CopperOre, Amount: 1},
				{Kind: crafting.Coal, Amount: 1},
			},
			Outputs: []crafting.ResourceAmount{{Kind: crafting.CopperIngot, Amount: 1}},
		},
	}
	for _, def := range defs {
		if _, err := reg.Register(def); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	eng := engine.New(reg, engine.Options{Interval: time.Second, Logger: logger})
	if err := eng.AddActor("player"); err != nil {
		t.Fatalf("add actor: %v", err)
	}
	return NewServer(eng, logger)
}

func call(t *testing.T, s *Server, line string) *Response {
	t.Helper()
	resp := s.handleRequest(context.Background(), []byte(line))
	if resp == nil {
		t.Fatalf("no response for %s", line)
	}
	return resp
}

// toolText round-trips a tools/call result through JSON and returns its text block.
func toolText(t *testing.T, resp *Response) (string, bool) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var res ToolCallResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	return res.Content[0].Text, res.IsError
}

func TestInitialize(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	res, ok := resp.Result.(InitializeResult)
	if !ok || res.ServerInfo.Name != "craftqueue" {
		t.Fatalf("unexpected result %+v", resp.Result)
	}
}

func TestToolsList(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	res, ok := resp.Result.(ToolsListResult)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}

	want := map[string]bool{
		"enqueue_craft":  true,
		"queue_status":   true,
		"ledger_balance": true,
		"recipe_lookup":  true,
		"resource_uses":  true,
		"craft_history":  true,
	}
	if len(res.Tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(res.Tools))
	}
	for _, tool := range res.Tools {
		if !want[tool.Name] {
			t.Fatalf("unexpected tool %s", tool.Name)
		}
		if tool.InputSchema.Type != "object" {
			t.Fatalf("%s: schema type %q", tool.Name, tool.InputSchema.Type)
		}
	}
}

func TestProtocolErrors(t *testing.T) {
	s := newTestServer(t)

	resp := call(t, s, `{not json`)
	if resp.Error == nil || resp.Error.Code != ErrCodeParse {
		t.Fatalf("expected parse error, got %+v", resp)
	}

	resp = call(t, s, `{"jsonrpc":"2.0","id":2,"method":"nope"}`)
	if resp.Error == nil || resp.Error.Code != ErrCodeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp)
	}

	if got := s.handleRequest(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); got != nil {
		t.Fatalf("notifications must not get a response, got %+v", got)
	}
}

func TestEnqueueThenQueueStatus(t *testing.T) {
	s := newTestServer(t)

	text, isErr := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"enqueue_craft","arguments":{"actor_id":"player","recipe_name":"mine_copper","count":2}}}`))
	if isErr {
		t.Fatalf("enqueue failed: %s", text)
	}
	var enq crafting.EnqueueResponse
	if err := json.Unmarshal([]byte(text), &enq); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if enq.Queued != 2 || len(enq.TaskIDs) != 2 {
		t.Fatalf("unexpected enqueue response %+v", enq)
	}

	text, isErr = toolText(t, call(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"queue_status","arguments":{"actor_id":"player"}}}`))
	if isErr {
		t.Fatalf("status failed: %s", text)
	}
	var status crafting.QueueStatusResponse
	if err := json.Unmarshal([]byte(text), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(status.Tasks) != 2 || status.TotalRemainMs != 2*20833 || status.Tasks[1].TicksToFinish != 42 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestToolFailureIsReportedInResult(t *testing.T) {
	s := newTestServer(t)

	tests := []string{
		`{"name":"enqueue_craft","arguments":{"actor_id":"nobody","recipe_name":"mine_copper"}}`,
		`{"name":"enqueue_craft","arguments":{"actor_id":"player","recipe_name":"mine_gold"}}`,
		`{"name":"resource_uses","arguments":{"kind":"Gold"}}`,
		`{"name":"no_such_tool","arguments":{}}`,
	}
	for _, params := range tests {
		resp := call(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":`+params+`}`)
		text, isErr := toolText(t, resp)
		if !isErr || text == "" {
			t.Fatalf("expected tool error for %s, got %q", params, text)
		}
	}
}

func TestRecipeLookupWithoutArguments(t *testing.T) {
	s := newTestServer(t)
	text, isErr := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"recipe_lookup"}}`))
	if isErr {
		t.Fatalf("lookup failed: %s", text)
	}
}

func TestServeReadsLines(t *testing.T) {
	s := newTestServer(t)

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"ledger_balance","arguments":{"actor_id":"player"}}}`,
	}, "\n"))
	var out bytes.Buffer

	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("serve: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d: %q", len(lines), out.String())
	}
	var last Response
	if err := json.Unmarshal([]byte(lines[1]), &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last.Error != nil {
		t.Fatalf("unexpected error %+v", last.Error)
	}
	if id, ok := last.ID.(float64); !ok || id != 2 {
		t.Fatalf("unexpected id %v", last.ID)
	}
}

func TestCraftHistoryFromStore(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	database, err := db.OpenAndInit(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	events := db.NewEventStore(database)

	reg := registry.New()
	if _, err := reg.Register(crafting.RecipeDefinition{
		Name:     "mine_copper",
		Duration: 20833 * time.Millisecond,
		Outputs:  []crafting.ResourceAmount{{Kind: crafting.CopperOre, Amount: 1}},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	eng := engine.New(reg, engine.Options{
		Interval: time.Second,
		Events:   events,
		Sink:     eventlog.NewStoreSink(events),
		Logger:   logger,
	})
	if err := eng.AddActor("player"); err != nil {
		t.Fatalf("add actor: %v", err)
	}
	s := NewServer(eng, logger)

	toolText(t, call(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"enqueue_craft","arguments":{"actor_id":"player","recipe_name":"mine_copper","count":2}}}`))
	if _, err := eng.AdvanceActor(ctx, "player", 1, 21*time.Second); err != nil {
		t.Fatalf("advance: %v", err)
	}

	text, isErr := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"craft_history","arguments":{"actor_id":"player"}}}`))
	if isErr {
		t.Fatalf("history failed: %s", text)
	}
	var hist crafting.CraftHistoryResponse
	if err := json.Unmarshal([]byte(text), &hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hist.Completed != 1 || len(hist.Events) != 1 {
		t.Fatalf("unexpected history %+v", hist)
	}
	if ev := hist.Events[0]; ev.RecipeName != "mine_copper" || ev.Kind != crafting.EventCompleted || ev.Tick != 1 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestCraftHistoryWithoutStoreIsToolError(t *testing.T) {
	s := newTestServer(t)
	text, isErr := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"craft_history"}}`))
	if !isErr || !strings.Contains(text, "no event store") {
		t.Fatalf("expected no event store error, got %q", text)
	}
}
