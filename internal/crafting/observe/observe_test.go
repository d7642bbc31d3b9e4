package observe

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rsned/craftqueue/pkg/crafting"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	all := dial(t, srv, "")
	onlyOther := dial(t, srv, "?actor=other")
	waitClients(t, h, 2)

	ev := crafting.CompletionEvent{ActorID: "player", TaskID: 9, Kind: crafting.EventCompleted, RecipeName: "mine_copper"}
	if err := h.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = all.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := all.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got crafting.CompletionEvent
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TaskID != 9 || got.ActorID != "player" {
		t.Fatalf("unexpected event: %+v", got)
	}

	// The filtered client should see nothing for this actor.
	_ = onlyOther.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := onlyOther.ReadMessage(); err == nil {
		t.Fatalf("filtered client received another actor's event")
	}
}

func TestHubRemovesClosedClients(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn := dial(t, srv, "")
	waitClients(t, h, 1)
	_ = conn.Close()
	waitClients(t, h, 0)
}

func TestIsLoopbackRemote(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.2:1234":  false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
