// Package relay maintains the live websocket connections of the clinic
// backend. Each connection is registered under its owning user's identity as
// soon as that identity is established, so targeted pushes reach every device
// a user currently has open. The registry is process-local; delivery across
// instances goes through the dispatcher's pub/sub channel.
package relay

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Event is the outbound wire shape pushed to connected clients.
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Hub tracks which connections belong to which user. A user may hold zero or
// several simultaneous connections; all operations are safe for concurrent
// use.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]map[*Client]struct{}
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewHub(logger *logger.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]map[*Client]struct{}),
		logger:      logger,
		metrics:     m,
	}
}

// Register adds a client under its user identity.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[client.UserID] == nil {
		h.connections[client.UserID] = make(map[*Client]struct{})
	}
	h.connections[client.UserID][client] = struct{}{}
	h.metrics.RelayConnections.Inc()

	h.logger.Debug("relay client registered",
		"user_id", client.UserID.String(),
		"connections", len(h.connections[client.UserID]))
}

// Unregister removes a client and closes its send channel. Safe to call more
// than once for the same client.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.connections[client.UserID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}

	delete(conns, client)
	if len(conns) == 0 {
		delete(h.connections, client.UserID)
	}
	close(client.send)
	h.metrics.RelayConnections.Dec()

	h.logger.Debug("relay client unregistered", "user_id", client.UserID.String())
}

// Send pushes an event to every connection registered under userID and
// returns how many connections accepted it. No connection for the recipient
// is not an error: the push is dropped and the durable rows compensate.
func (h *Hub) Send(userID uuid.UUID, event Event) int {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error(err, "failed to marshal relay event", "event", event.Event)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.connections[userID]
	if !ok {
		h.metrics.RelayPushesDropped.Inc()
		return 0
	}

	delivered := 0
	for client := range conns {
		select {
		case client.send <- data:
			delivered++
			h.metrics.RelayPushes.WithLabelValues(event.Event).Inc()
		default:
			// Buffer full; skip rather than block the whole hub.
			h.metrics.RelayPushesDropped.Inc()
		}
	}
	return delivered
}

// ConnectionCount returns the total number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

// UserConnectionCount returns how many connections a user currently holds.
func (h *Hub) UserConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}
