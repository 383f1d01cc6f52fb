package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/grabngo/loaner/internal/model"
	"github.com/redis/go-redis/v9"
)

const redisChannel = "loaner:events"

// Hub fans raised events out to connected operators.
// Notices go through Redis Pub/Sub so every instance delivers every event.
type Hub struct {
	// Map of user email -> set of client connections
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	rdb *redis.Client
}

// NewHub creates a new WebSocket Hub
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
	}
}

// Run starts the Hub's main event loop
func (h *Hub) Run(ctx context.Context) {
	go h.subscribeRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.Email]; !ok {
		h.clients[client.Email] = make(map[*Client]bool)
	}
	h.clients[client.Email][client] = true
	log.Printf("✅ Feed client connected: %s (total connections: %d)", client.Email, len(h.clients[client.Email]))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.Email]; ok {
		if _, live := clients[client]; live {
			delete(clients, client)
			close(client.send)
		}
		if len(clients) == 0 {
			delete(h.clients, client.Email)
		}
	}
	log.Printf("❌ Feed client disconnected: %s", client.Email)
}

// Publish sends a notice to every instance's connected clients
func (h *Hub) Publish(ctx context.Context, n model.EventNotice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, redisChannel, data).Err()
}

// deliver writes a notice to the local clients that want it
func (h *Hub) deliver(n model.EventNotice, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			if !client.Wants(n.Event) {
				continue
			}
			select {
			case client.send <- data:
			default:
				// Client's send buffer is full, close connection
				close(client.send)
				delete(clients, client)
			}
		}
	}
}

// ConnectedCount returns the number of live connections on this instance
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// subscribeRedis delivers notices published by any instance to local clients
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	log.Println("📡 Redis Pub/Sub subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var n model.EventNotice
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				log.Printf("Error unmarshaling Redis message: %v", err)
				continue
			}
			h.deliver(n, []byte(msg.Payload))
		}
	}
}
