// Package serve hosts generated reports over HTTP with live reload:
// a static file server, an SSE channel pushing reload events, and a
// filesystem watcher that fires them when reports are rebuilt.
package serve

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ReloadEvent is pushed to connected browsers when served content changes.
type ReloadEvent struct {
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub manages Server-Sent Events connections for live reload.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

// client buffers outbound frames; only the connection's ServeHTTP
// goroutine touches the ResponseWriter.
type client struct {
	send chan []byte
	done chan struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// ClientCount returns the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every connected client. A client whose
// buffer is full drops the frame rather than blocking the caller.
func (h *Hub) Broadcast(ev ReloadEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case <-c.done:
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.done)
	}
}

// ServeHTTP handles one SSE connection; it blocks until the client
// disconnects or the request context ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := &client{send: make(chan []byte, 8), done: make(chan struct{})}
	h.register(c)
	defer h.unregister(c)

	fmt.Fprintf(w, "data: %s\n\n", `{"type":"connected"}`)
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
