package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imuhira/backend/internal/cache"
	"github.com/imuhira/backend/internal/logger"
	"github.com/imuhira/backend/internal/models"
)

// Hub maintains the set of live feed clients and fans debate events out to them
type Hub struct {
	// Connected clients
	clients map[uuid.UUID]*Client

	// Encoded events waiting to be fanned out
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Source of events published by every API instance. Nil keeps the hub local.
	redis *cache.RedisClient

	log *logger.Logger
	mu  sync.RWMutex
}

// NewHub creates a new Hub
func NewHub(redis *cache.RedisClient, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		redis:      redis,
		log:        log.With("component", "hub"),
	}
}

// Run serves registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.redis != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Live feed client registered", "client_id", client.id, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Live feed client unregistered", "client_id", client.id, "clients", count,
				"connected_for", time.Since(client.connectedAt))

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// fanOut delivers message to every client. A client whose buffer is full is
// dropped rather than allowed to stall the feed.
func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, id)
			h.log.Warn("Dropped slow live feed client", "client_id", id)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

// subscribeToRedis relays events from the debates channel into the hub
func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.redis.SubscribeToDebateEvents(ctx)
	defer pubsub.Close()

	events := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			select {
			case h.broadcast <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ErrHubStopped is returned by Broadcast once Run has exited
var ErrHubStopped = errors.New("websocket hub stopped")

// Broadcast sends an event to the clients connected to this instance only
func (h *Hub) Broadcast(message models.WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
