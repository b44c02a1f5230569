package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plateguard/backend/database"
	"github.com/plateguard/backend/models"
	"github.com/plateguard/backend/services"
	"gorm.io/gorm"
)

// GetDetections handles GET /api/detections - List detection records
func GetDetections(c *gin.Context) {
	query := database.DB.Model(&models.Detection{})

	if plate := c.Query("plateNumber"); plate != "" {
		query = query.Where("plate_number = ?", services.NormalizePlate(plate))
	}
	if station := c.Query("station"); station != "" {
		query = query.Where("station_name = ?", station)
	}
	if reportID := c.Query("reportId"); reportID != "" {
		if parsed, err := strconv.ParseInt(reportID, 10, 64); err == nil {
			query = query.Where("report_id = ?", parsed)
		}
	}
	if startTime := c.Query("startTime"); startTime != "" {
		if parsed, err := time.Parse(time.RFC3339, startTime); err == nil {
			query = query.Where("sighted_at >= ?", parsed)
		}
	}
	if endTime := c.Query("endTime"); endTime != "" {
		if parsed, err := time.Parse(time.RFC3339, endTime); err == nil {
			query = query.Where("sighted_at <= ?", parsed)
		}
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var total int64
	query.Count(&total)

	var detections []models.Detection
	if err := query.Order("sighted_at DESC").Limit(limit).Offset(offset).Find(&detections).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch detections"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"detections": detections,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// GetDetection handles GET /api/detections/:id
func GetDetection(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid detection ID"})
		return
	}

	var detection models.Detection
	if err := database.DB.Preload("Report").First(&detection, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Detection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch detection"})
		return
	}

	c.JSON(http.StatusOK, detection)
}

// GetDetectionStats handles GET /api/detections/stats
func GetDetectionStats(c *gin.Context) {
	var stats struct {
		Total     int64            `json:"total"`
		Today     int64            `json:"today"`
		ByStation map[string]int64 `json:"byStation"`
		ByPlate   map[string]int64 `json:"byPlate"`
	}
	stats.ByStation = make(map[string]int64)
	stats.ByPlate = make(map[string]int64)

	database.DB.Model(&models.Detection{}).Count(&stats.Total)

	today := startOfDay(time.Now())
	database.DB.Model(&models.Detection{}).Where("sighted_at >= ?", today).Count(&stats.Today)

	var stationCounts []struct {
		StationName string
		Count       int64
	}
	database.DB.Model(&models.Detection{}).
		Select("station_name, COUNT(*) as count").
		Group("station_name").
		Scan(&stationCounts)
	for _, sc := range stationCounts {
		stats.ByStation[sc.StationName] = sc.Count
	}

	var plateCounts []struct {
		PlateNumber string
		Count       int64
	}
	database.DB.Model(&models.Detection{}).
		Select("plate_number, COUNT(*) as count").
		Group("plate_number").
		Order("count DESC").
		Limit(10).
		Scan(&plateCounts)
	for _, pc := range plateCounts {
		stats.ByPlate[pc.PlateNumber] = pc.Count
	}

	c.JSON(http.StatusOK, stats)
}
