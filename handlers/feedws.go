package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/plateguard/backend/natsserver"
	"github.com/plateguard/backend/services"
)

// busMonitor is the read-only view of the embedded event bus exposed on the
// stats endpoint. Satisfied by natsserver.EmbeddedNATS.
type busMonitor interface {
	Address() string
	GetStats() natsserver.Stats
}

var (
	alertHub        *services.AlertHub
	alertBusMonitor busMonitor
	upgrader        = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins for now
		},
	}
)

// SetAlertHub sets the alert hub for the handlers
func SetAlertHub(hub *services.AlertHub) {
	alertHub = hub
}

// SetAlertBusMonitor sets the event bus exposed on the stats endpoint
func SetAlertBusMonitor(m busMonitor) {
	alertBusMonitor = m
}

// HandleAlertWebSocket handles WebSocket connections for the live alert feed
func HandleAlertWebSocket(c *gin.Context) {
	if alertHub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Alert hub not initialized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	// Get user ID from context (if authenticated)
	userID := c.GetString("userID")
	if userID == "" {
		userID = "anonymous"
	}

	client := services.NewAlertClient(alertHub, conn, userID, c.ClientIP())

	alertHub.Register(client)

	// Start goroutines for reading and writing
	go client.WritePump()
	go client.ReadPump()
}

// GetAlertHubStats returns alert hub statistics
func GetAlertHubStats(c *gin.Context) {
	if alertHub == nil {
		c.JSON(http.StatusOK, gin.H{
			"enabled": false,
		})
		return
	}

	stats := alertHub.Stats()
	resp := gin.H{
		"enabled": true,
		"clients": stats.Clients,
	}
	if alertBusMonitor != nil {
		resp["busAddress"] = alertBusMonitor.Address()
		resp["bus"] = alertBusMonitor.GetStats()
	}
	c.JSON(http.StatusOK, resp)
}
