package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/plateguard/backend/database"
	"github.com/plateguard/backend/models"
	"github.com/plateguard/backend/services"
	"gorm.io/gorm"
)

var uploadDir = "./uploads"

// SetUploadDir sets where report documents are stored on disk
func SetUploadDir(dir string) {
	uploadDir = dir
}

// PostReport handles POST /api/reports - Register a stolen vehicle
func PostReport(c *gin.Context) {
	var req struct {
		PlateNumber  string       `json:"plateNumber" binding:"required"`
		OwnerName    string       `json:"ownerName" binding:"required"`
		Description  string       `json:"description" binding:"required"`
		Model        *string      `json:"model"`
		Color        *string      `json:"color"`
		LastKnownLat *float64     `json:"lastKnownLat"`
		LastKnownLng *float64     `json:"lastKnownLng"`
		Metadata     models.JSONB `json:"metadata"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	plate := services.NormalizePlate(req.PlateNumber)
	if plate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plate number is required"})
		return
	}

	// One active report per plate
	var existing int64
	database.DB.Model(&models.VehicleReport{}).
		Where("plate_number = ? AND is_active = ?", plate, true).
		Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Vehicle %s already reported", plate)})
		return
	}

	report := models.VehicleReport{
		PlateNumber:  plate,
		OwnerName:    req.OwnerName,
		Description:  req.Description,
		Model:        req.Model,
		Color:        req.Color,
		LastKnownLat: req.LastKnownLat,
		LastKnownLng: req.LastKnownLng,
		ReportedAt:   time.Now(),
		IsActive:     true,
		Metadata:     req.Metadata,
	}

	if userID, ok := userIDFromContext(c); ok {
		report.UserID = &userID
	}

	if err := database.DB.Create(&report).Error; err != nil {
		// The partial unique index on active plate numbers catches the
		// race two concurrent registrations can win past the count check.
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Vehicle %s already reported", plate)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create report"})
		return
	}

	c.JSON(http.StatusCreated, report)
}

// GetReports handles GET /api/reports - List vehicle reports
func GetReports(c *gin.Context) {
	query := database.DB.Model(&models.VehicleReport{})

	if plate := c.Query("plateNumber"); plate != "" {
		query = query.Where("plate_number ILIKE ?", "%"+services.NormalizePlate(plate)+"%")
	}
	if owner := c.Query("owner"); owner != "" {
		query = query.Where("owner_name ILIKE ?", "%"+owner+"%")
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
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

	var reports []models.VehicleReport
	if err := query.Preload("Documents").Order("reported_at DESC").Limit(limit).Offset(offset).Find(&reports).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetReport handles GET /api/reports/:id - Single report with its detections and alerts
func GetReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	var report models.VehicleReport
	if err := database.DB.Preload("Documents").
		Preload("Detections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sighted_at DESC").Limit(100)
		}).
		Preload("Alerts", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Limit(100)
		}).
		First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// CloseReport handles PATCH /api/reports/:id/close - Mark a report recovered/inactive
func CloseReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	result := database.DB.Model(&models.VehicleReport{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close report"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Active report not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteReport handles DELETE /api/reports/:id - Remove a closed report and
// its documents. Active reports must be closed first.
func DeleteReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	var report models.VehicleReport
	if err := database.DB.First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch report"})
		return
	}

	if report.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Close the report before deleting it"})
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", report.ID).Delete(&models.ReportDocument{}).Error; err != nil {
			return err
		}
		return tx.Delete(&report).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UploadReportDocument handles POST /api/reports/:id/documents - Attach a supporting document
func UploadReportDocument(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	var report models.VehicleReport
	if err := database.DB.First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch report"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file upload"})
		return
	}

	docID := uuid.NewString()
	storagePath := filepath.Join(uploadDir, fmt.Sprintf("%d", report.ID), docID+filepath.Ext(file.Filename))
	if err := os.MkdirAll(filepath.Dir(storagePath), 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store document"})
		return
	}
	if err := c.SaveUploadedFile(file, storagePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store document"})
		return
	}

	doc := models.ReportDocument{
		ID:          docID,
		ReportID:    report.ID,
		FileName:    filepath.Base(file.Filename),
		ContentType: file.Header.Get("Content-Type"),
		SizeBytes:   file.Size,
		StoragePath: storagePath,
		UploadedAt:  time.Now(),
	}

	if err := database.DB.Create(&doc).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record document"})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// GetReportDocuments handles GET /api/reports/:id/documents
func GetReportDocuments(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	var docs []models.ReportDocument
	if err := database.DB.Where("report_id = ?", id).Order("uploaded_at DESC").Find(&docs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch documents"})
		return
	}

	c.JSON(http.StatusOK, docs)
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	v, ok := c.Get("userID")
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
