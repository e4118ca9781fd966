package sse

import "sync"

// Hub fans events out to every client subscribed to a resource. The search
// service uses it to let secondary watchers observe a turn's progress while
// the primary stream is being written.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool // resource -> clients
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]bool)}
}

// Register adds a client under its resource.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Resource] == nil {
		h.clients[client.Resource] = make(map[*Client]bool)
	}
	h.clients[client.Resource][client] = true
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.Resource]
	if !ok {
		return
	}
	if _, exists := clients[client]; exists {
		delete(clients, client)
		close(client.Channel)
		if len(clients) == 0 {
			delete(h.clients, client.Resource)
		}
	}
}

// Broadcast delivers an event to every client of a resource. Clients whose
// buffer is full are skipped rather than blocked on.
func (h *Hub) Broadcast(resource string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[resource] {
		select {
		case client.Channel <- event:
		default:
		}
	}
}

// Subscribers reports the number of clients watching a resource.
func (h *Hub) Subscribers(resource string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[resource])
}
