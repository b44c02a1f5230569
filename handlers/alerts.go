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

var alertBus services.Publisher

// SetAlertBus sets the event bus used to publish alert status changes
func SetAlertBus(bus services.Publisher) {
	alertBus = bus
}

// GetAlerts handles GET /api/alerts - List alerts
func GetAlerts(c *gin.Context) {
	query := database.DB.Model(&models.Alert{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if plate := c.Query("plateNumber"); plate != "" {
		query = query.Where("plate_number = ?", services.NormalizePlate(plate))
	}
	if station := c.Query("station"); station != "" {
		query = query.Where("station_name = ?", station)
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

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
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

	var alerts []models.Alert
	if err := query.Preload("Report").Order("created_at DESC").Limit(limit).Offset(offset).Find(&alerts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetAlert handles GET /api/alerts/:id
func GetAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	var alert models.Alert
	if err := database.DB.Preload("Detection").Preload("Report").First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alert"})
		return
	}

	c.JSON(http.StatusOK, alert)
}

// AcknowledgeAlert handles PATCH /api/alerts/:id/acknowledge - Station takes ownership
func AcknowledgeAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	var req struct {
		AcknowledgedBy string `json:"acknowledgedBy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var alert models.Alert
	if err := database.DB.First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alert"})
		return
	}

	if alert.Status != models.AlertPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Alert is not pending"})
		return
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":          models.AlertAcknowledged,
		"acknowledged_by": req.AcknowledgedBy,
		"acknowledged_at": now,
	}
	if err := database.DB.Model(&alert).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}

	alert.Status = models.AlertAcknowledged
	alert.AcknowledgedBy = &req.AcknowledgedBy
	alert.AcknowledgedAt = &now
	services.PublishAlertEvent(alertBus, services.SubjectAlertAcknowledged, "acknowledged", alert)

	c.JSON(http.StatusOK, alert)
}

// ResolveAlert handles PATCH /api/alerts/:id/resolve - Close out the alert
func ResolveAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	var req struct {
		ResolvedBy     string  `json:"resolvedBy" binding:"required"`
		ResolutionNote *string `json:"resolutionNote"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var alert models.Alert
	if err := database.DB.First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alert"})
		return
	}

	if alert.Status == models.AlertResolved {
		c.JSON(http.StatusConflict, gin.H{"error": "Alert is already resolved"})
		return
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      models.AlertResolved,
		"resolved_by": req.ResolvedBy,
		"resolved_at": now,
	}
	if req.ResolutionNote != nil {
		updates["resolution_note"] = *req.ResolutionNote
	}
	if err := database.DB.Model(&alert).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}

	alert.Status = models.AlertResolved
	alert.ResolvedBy = &req.ResolvedBy
	alert.ResolvedAt = &now
	alert.ResolutionNote = req.ResolutionNote
	services.PublishAlertEvent(alertBus, services.SubjectAlertResolved, "resolved", alert)

	c.JSON(http.StatusOK, alert)
}

// GetAlertStats handles GET /api/alerts/stats
func GetAlertStats(c *gin.Context) {
	var stats struct {
		Total     int64            `json:"total"`
		Pending   int64            `json:"pending"`
		Today     int64            `json:"today"`
		ByStatus  map[string]int64 `json:"byStatus"`
		ByStation map[string]int64 `json:"byStation"`
	}
	stats.ByStatus = make(map[string]int64)
	stats.ByStation = make(map[string]int64)

	database.DB.Model(&models.Alert{}).Count(&stats.Total)
	database.DB.Model(&models.Alert{}).Where("status = ?", models.AlertPending).Count(&stats.Pending)

	today := startOfDay(time.Now())
	database.DB.Model(&models.Alert{}).Where("created_at >= ?", today).Count(&stats.Today)

	var statusCounts []struct {
		Status string
		Count  int64
	}
	database.DB.Model(&models.Alert{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&statusCounts)
	for _, sc := range statusCounts {
		stats.ByStatus[sc.Status] = sc.Count
	}

	var stationCounts []struct {
		StationName string
		Count       int64
	}
	database.DB.Model(&models.Alert{}).
		Select("station_name, COUNT(*) as count").
		Group("station_name").
		Scan(&stationCounts)
	for _, sc := range stationCounts {
		stats.ByStation[sc.StationName] = sc.Count
	}

	c.JSON(http.StatusOK, stats)
}

// startOfDay returns midnight of t's day in t's own location. Truncating to
// 24h buckets would roll the day over on UTC boundaries, which is the middle
// of the afternoon for the service region.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
