package services

import (
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
)

// AlertHub relays alert lifecycle events from NATS to connected dashboard
// WebSocket clients. It holds no alert state of its own; the store remains
// the source of truth and the hub is purely a live view.
type AlertHub struct {
	natsConn *nats.Conn
	sub      *nats.Subscription

	clients   map[*AlertClient]bool
	clientsMu sync.RWMutex

	register   chan *AlertClient
	unregister chan *AlertClient
}

// AlertClient represents a dashboard WebSocket connection
type AlertClient struct {
	hub        *AlertHub
	conn       *websocket.Conn
	send       chan []byte
	userID     string
	remoteAddr string
}

// NewAlertHub creates an alert hub over the given NATS connection.
func NewAlertHub(natsConn *nats.Conn) *AlertHub {
	return &AlertHub{
		natsConn:   natsConn,
		clients:    make(map[*AlertClient]bool),
		register:   make(chan *AlertClient),
		unregister: make(chan *AlertClient),
	}
}

// Register adds a client to the hub
func (h *AlertHub) Register(client *AlertClient) {
	h.register <- client
}

// Run subscribes to alert events and processes client connect/disconnect.
// Call it in its own goroutine.
func (h *AlertHub) Run() error {
	sub, err := h.natsConn.Subscribe("alerts.>", func(msg *nats.Msg) {
		h.broadcast(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to alert events: %w", err)
	}
	h.sub = sub
	log.Println("📺 Alert hub started")

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			log.Printf("📺 Dashboard client connected: %s", client.remoteAddr)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			log.Printf("📺 Dashboard client disconnected: %s", client.remoteAddr)
		}
	}
}

// broadcast fans an alert event out to every connected client. Slow clients
// drop events rather than blocking the hub.
func (h *AlertHub) broadcast(event []byte) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			// Client buffer full, skip event
		}
	}
}

// HubStats holds hub statistics
type HubStats struct {
	Clients int `json:"clients"`
}

func (h *AlertHub) Stats() HubStats {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return HubStats{Clients: len(h.clients)}
}
