package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/plateguard/backend/stations"
)

var stationDirectory *stations.Directory

// SetStationDirectory sets the loaded station directory for the handlers
func SetStationDirectory(dir *stations.Directory) {
	stationDirectory = dir
}

// GetStations handles GET /api/stations - List the configured stations
func GetStations(c *gin.Context) {
	if stationDirectory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Station directory not initialized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stations": stationDirectory.All(),
		"total":    stationDirectory.Len(),
	})
}
