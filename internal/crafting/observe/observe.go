// Package observe streams craft events to websocket subscribers.
package observe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rsned/craftqueue/pkg/crafting"
)

const (
	writeWait   = 5 * time.Second
	clientQueue = 256
)

type client struct {
	id      string
	actorID string
	out     chan []byte
}

// Hub broadcasts events to connected websocket clients.
// Slow clients lose events rather than stall the tick.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	clients map[string]*client
	dropped atomic.Uint64
}

// NewHub creates a Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return isLoopbackRemote(r.RemoteAddr) },
		},
		clients: make(map[string]*client),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Publish implements eventlog.Sink.
func (h *Hub) Publish(_ context.Context, ev crafting.CompletionEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		if c.actorID != "" && c.actorID != ev.ActorID {
			continue
		}
		select {
		case c.out <- b:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Handler upgrades GET /events requests. The optional actor query
// parameter limits the stream to one actor.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := &client{
			id:      fmt.Sprintf("O%d", h.nextID.Add(1)),
			actorID: r.URL.Query().Get("actor"),
			out:     make(chan []byte, clientQueue),
		}
		h.add(c)
		defer h.remove(c.id)

		h.logger.Debug("observer connected", "id", c.id, "actor", c.actorID)

		// Reads only detect the peer going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				h.logger.Debug("observer disconnected", "id", c.id)
				return
			case <-r.Context().Done():
				return
			case msg := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
