package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plateguard/backend/geo"
	"github.com/plateguard/backend/services"
	"github.com/plateguard/backend/sightings"
)

var engine *services.Engine

// SetEngine sets the matching engine used by the ingest handler
func SetEngine(e *services.Engine) {
	engine = e
}

// PostSightings handles POST /api/sightings - Ingest a sighting batch from an
// external ANPR feed. The batch goes through the same matching path as the
// scheduled synthetic feed.
func PostSightings(c *gin.Context) {
	if engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Matching engine not initialized"})
		return
	}

	var req struct {
		Sightings []struct {
			Plate     string  `json:"plate" binding:"required"`
			Lat       float64 `json:"lat"`
			Lng       float64 `json:"lng"`
			Heading   string  `json:"heading" binding:"required"`
			Timestamp *string `json:"timestamp"`
		} `json:"sightings" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Sightings) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty sighting batch"})
		return
	}

	batch := make([]sightings.Sighting, 0, len(req.Sightings))
	for _, s := range req.Sightings {
		sightedAt := time.Now()
		if s.Timestamp != nil {
			if parsed, err := time.Parse(time.RFC3339, *s.Timestamp); err == nil {
				sightedAt = parsed
			}
		}
		batch = append(batch, sightings.Sighting{
			Plate:     s.Plate,
			Lat:       s.Lat,
			Lng:       s.Lng,
			Heading:   geo.Heading(s.Heading),
			SightedAt: sightedAt,
		})
	}

	created := engine.ProcessBatch(c.Request.Context(), batch)

	alertIDs := make([]int64, 0, len(created))
	for _, alert := range created {
		alertIDs = append(alertIDs, alert.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"received": len(batch),
		"matched":  len(created),
		"alertIds": alertIDs,
	})
}
