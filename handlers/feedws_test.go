package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/plateguard/backend/natsserver"
	"github.com/plateguard/backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBusMonitor struct {
	stats natsserver.Stats
}

func (s stubBusMonitor) Address() string            { return "nats://localhost:4222" }
func (s stubBusMonitor) GetStats() natsserver.Stats { return s.stats }

func TestGetAlertHubStatsDisabled(t *testing.T) {
	SetAlertHub(nil)
	SetAlertBusMonitor(nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/alerts/feed/stats", GetAlertHubStats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/alerts/feed/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["enabled"])
}

func TestGetAlertHubStatsReportsBus(t *testing.T) {
	SetAlertHub(services.NewAlertHub(nil))
	SetAlertBusMonitor(stubBusMonitor{stats: natsserver.Stats{EventsPublished: 7}})
	t.Cleanup(func() {
		SetAlertHub(nil)
		SetAlertBusMonitor(nil)
	})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/alerts/feed/stats", GetAlertHubStats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/alerts/feed/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Enabled    bool             `json:"enabled"`
		Clients    int              `json:"clients"`
		BusAddress string           `json:"busAddress"`
		Bus        natsserver.Stats `json:"bus"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Enabled)
	assert.Zero(t, resp.Clients)
	assert.Equal(t, "nats://localhost:4222", resp.BusAddress)
	assert.EqualValues(t, 7, resp.Bus.EventsPublished)
}
