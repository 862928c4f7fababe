package websocket

import (
	"errors"
	"sync"

	"github.com/dafibh/brokewise/brokewise-backend/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned when attempting to send to a closed client
var ErrClientClosed = errors.New("client is closed")

// ClientInterface defines the interface that clients must implement
type ClientInterface interface {
	ID() string
	GroupID() string
	Send(data []byte) error
	Close() error
}

// finalSender is implemented by clients that can flush a last frame before closing
type finalSender interface {
	SendFinal(data []byte) error
}

// Hub manages WebSocket connections organized by expense group.
// It is safe for concurrent use.
type Hub struct {
	// groups maps group ID to a map of client ID to client
	groups  map[string]map[string]ClientInterface
	total   int
	mu      sync.RWMutex
	metrics *metrics.Metrics
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		groups: make(map[string]map[string]ClientInterface),
	}
}

// SetMetrics sets the metrics sink for the connected client gauge
func (h *Hub) SetMetrics(m *metrics.Metrics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = m
}

// Register adds a client to the hub under its group
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	groupID := client.GroupID()
	clientID := client.ID()

	if h.groups[groupID] == nil {
		h.groups[groupID] = make(map[string]ClientInterface)
	}
	if _, exists := h.groups[groupID][clientID]; !exists {
		h.total++
	}
	h.groups[groupID][clientID] = client
	h.metrics.SetWebSocketClients(h.total)

	log.Debug().
		Str("group_id", groupID).
		Str("client_id", clientID).
		Msg("WebSocket client registered")
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	groupID := client.GroupID()
	clientID := client.ID()

	clients, ok := h.groups[groupID]
	if !ok {
		return
	}
	if _, exists := clients[clientID]; !exists {
		return
	}

	delete(clients, clientID)
	if len(clients) == 0 {
		delete(h.groups, groupID)
	}
	h.total--
	h.metrics.SetWebSocketClients(h.total)

	log.Debug().
		Str("group_id", groupID).
		Str("client_id", clientID).
		Msg("WebSocket client unregistered")
}

// Broadcast sends an event to all clients watching a group.
// An event that ends the group (group.deleted) also drops its subscribers
// from the hub and closes each connection after delivery.
func (h *Hub) Broadcast(groupID string, event Event) {
	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Str("group_id", groupID).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	final := event.EndsGroup()
	var targets []ClientInterface
	if final {
		targets = h.detachGroup(groupID)
	} else {
		targets = h.snapshot(groupID)
	}
	if len(targets) == 0 {
		return
	}

	for _, client := range targets {
		go func(c ClientInterface) {
			if err := deliver(c, data, final); err != nil {
				log.Warn().
					Err(err).
					Str("group_id", groupID).
					Str("client_id", c.ID()).
					Msg("Failed to send to client")
			}
		}(client)
	}

	log.Debug().
		Str("group_id", groupID).
		Str("event_type", event.Type).
		Int("client_count", len(targets)).
		Msg("Broadcast event")
}

func deliver(c ClientInterface, data []byte, final bool) error {
	if !final {
		return c.Send(data)
	}
	if fs, ok := c.(finalSender); ok {
		return fs.SendFinal(data)
	}
	err := c.Send(data)
	c.Close()
	return err
}

// snapshot copies a group's clients so sends happen without the lock
func (h *Hub) snapshot(groupID string) []ClientInterface {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.groups[groupID]
	out := make([]ClientInterface, 0, len(clients))
	for _, client := range clients {
		out = append(out, client)
	}
	return out
}

// detachGroup removes every client of a group and returns them
func (h *Hub) detachGroup(groupID string) []ClientInterface {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.groups[groupID]
	out := make([]ClientInterface, 0, len(clients))
	for _, client := range clients {
		out = append(out, client)
	}
	if len(out) > 0 {
		delete(h.groups, groupID)
		h.total -= len(out)
		h.metrics.SetWebSocketClients(h.total)
	}
	return out
}

// ClientCount returns the number of clients watching a group
func (h *Hub) ClientCount(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.groups[groupID]; ok {
		return len(clients)
	}
	return 0
}

// TotalClientCount returns the total number of connected clients across all groups
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}
