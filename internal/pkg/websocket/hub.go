package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/pkg/metrics"
	"github.com/rs/zerolog"
)

// Event is the frame pushed to clients.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type delivery struct {
	userID int64
	event  *Event
}

// Hub maintains the set of active clients and pushes events to the clients of
// one user. Only the Run goroutine touches the clients map.
type Hub struct {
	// Registered clients organized by user ID
	clients map[int64]map[*Client]bool

	publish    chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// count mirrors len(clients) per user for readers outside Run.
	mu    sync.RWMutex
	count map[int64]int

	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		publish:    make(chan delivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		count:      make(map[int64]int),
		logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run serves registrations and deliveries until ctx is cancelled, then closes
// every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case d := <-h.publish:
			h.deliver(d)
		}
	}
}

func (h *Hub) setCount(userID int64) {
	h.mu.Lock()
	if n := len(h.clients[userID]); n > 0 {
		h.count[userID] = n
	} else {
		delete(h.count, userID)
	}
	h.mu.Unlock()
}

func (h *Hub) registerClient(client *Client) {
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	h.setCount(client.userID)
	metrics.WebsocketClients.Inc()

	h.logger.Info().
		Int64("userID", client.userID).
		Str("addr", client.remoteAddr()).
		Msg("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.clients[client.userID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}
	h.setCount(client.userID)
	metrics.WebsocketClients.Dec()

	h.logger.Info().
		Int64("userID", client.userID).
		Str("addr", client.remoteAddr()).
		Msg("Client unregistered")
}

func (h *Hub) deliver(d delivery) {
	clients, ok := h.clients[d.userID]
	if !ok {
		return
	}

	data, err := json.Marshal(d.event)
	if err != nil {
		h.logger.Error().Err(err).Int64("userID", d.userID).Msg("Failed to marshal event")
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop it rather than block every other user.
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) closeAll() {
	for _, clients := range h.clients {
		for client := range clients {
			h.unregisterClient(client)
		}
	}
}

// PublishNotification pushes n to every open connection of its recipient.
// It never blocks the caller for long: when the hub is saturated or stopped
// the event is dropped, since the notification is already persisted.
func (h *Hub) PublishNotification(n *models.Notification) {
	d := delivery{userID: n.UserID, event: &Event{Type: "notification", Data: n, Timestamp: time.Now()}}
	select {
	case h.publish <- d:
	case <-h.done:
	default:
		h.logger.Warn().Int64("userID", n.UserID).Msg("Hub saturated, dropping notification push")
	}
}

// ClientCount returns the number of open connections for a user.
func (h *Hub) ClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count[userID]
}
