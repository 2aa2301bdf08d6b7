package devserver

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// Message kinds sent to browsers.
const (
	KindReload = "reload"
	KindInject = "inject"
)

// Message is one live reload notification.
type Message struct {
	ID    uint64   `json:"id"`
	Kind  string   `json:"kind"`
	Stage string   `json:"stage,omitempty"`
	Paths []string `json:"paths,omitempty"` // URL paths of swapped assets for inject
}

// Hub manages SSE clients and fans out reload notifications.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	seq       uint64
	clients   map[int]*lrClient
	closed    bool
	recorder  metrics.Recorder
	heartbeat time.Duration
}

type lrClient struct {
	ch   chan []byte
	done chan struct{}
}

// NewHub returns a hub reporting its client count to rec.
func NewHub(rec metrics.Recorder) *Hub {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Hub{clients: map[int]*lrClient{}, recorder: rec, heartbeat: 30 * time.Second}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &lrClient{ch: make(chan []byte, 8), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	id := h.nextID
	h.nextID++
	h.clients[id] = client
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetLiveReloadClients(n)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			slog.Debug("livereload write", "error", err)
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send(": connected\n\n") {
		h.removeClient(id)
		return
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.removeClient(id)
			return
		case <-client.done:
			return
		case <-hb.C:
			send(": ping\n\n")
		case payload := <-client.ch:
			if !send("data: " + string(payload) + "\n\n") {
				h.removeClient(id)
				return
			}
		}
	}
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetLiveReloadClients(n)
	}
}

// Broadcast sends msg to every client. Clients whose buffers are full are dropped.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.seq++
	msg.ID = h.seq
	snapshot := make(map[int]*lrClient, len(h.clients))
	for id, c := range h.clients {
		snapshot[id] = c
	}
	h.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("livereload encode", "error", err)
		return
	}

	dropped := 0
	for id, c := range snapshot {
		select {
		case c.ch <- payload:
		default:
			dropped++
			h.removeClient(id)
		}
	}
	h.recorder.IncLiveReloadBroadcast(msg.Kind)
	slog.Debug("livereload broadcast", "kind", msg.Kind, "stage", msg.Stage, "clients", len(snapshot), "dropped", dropped)
}

// Shutdown disconnects all clients and ignores future broadcasts.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}
