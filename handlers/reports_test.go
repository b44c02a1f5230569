package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plateguard/backend/database"
	"github.com/plateguard/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var handlerDBSeq atomic.Int64

func setupTestDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", handlerDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	database.DB = db
}

func reportRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/reports", PostReport)
	r.GET("/api/reports/:id", GetReport)
	r.PATCH("/api/reports/:id/close", CloseReport)
	r.DELETE("/api/reports/:id", DeleteReport)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPostReportNormalizesAndCreates(t *testing.T) {
	setupTestDB(t)
	r := reportRouter()

	w := postJSON(t, r, "/api/reports", gin.H{
		"plateNumber": "pb65 xy 1234",
		"ownerName":   "Harpreet Singh",
		"description": "Stolen from parking lot",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.VehicleReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "PB65XY1234", created.PlateNumber)
	assert.True(t, created.IsActive)
}

func TestPostReportRejectsDuplicateActivePlate(t *testing.T) {
	setupTestDB(t)
	r := reportRouter()

	body := gin.H{
		"plateNumber": "PB65XY1234",
		"ownerName":   "Harpreet Singh",
		"description": "Stolen from parking lot",
	}
	require.Equal(t, http.StatusCreated, postJSON(t, r, "/api/reports", body).Code)

	w := postJSON(t, r, "/api/reports", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostReportValidatesBody(t *testing.T) {
	setupTestDB(t)
	r := reportRouter()

	w := postJSON(t, r, "/api/reports", gin.H{"plateNumber": "PB65XY1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, r, "/api/reports", gin.H{
		"plateNumber": "   ",
		"ownerName":   "Harpreet Singh",
		"description": "Stolen",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCloseReportThenReRegister(t *testing.T) {
	setupTestDB(t)
	r := reportRouter()

	body := gin.H{
		"plateNumber": "PB65XY1234",
		"ownerName":   "Harpreet Singh",
		"description": "Stolen from parking lot",
	}
	w := postJSON(t, r, "/api/reports", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.VehicleReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/reports/%d/close", created.ID), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Closing twice: no active report left
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/reports/%d/close", created.ID), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A recovered vehicle can be reported stolen again
	w = postJSON(t, r, "/api/reports", body)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestDeleteReportRequiresClosure(t *testing.T) {
	setupTestDB(t)
	r := reportRouter()

	w := postJSON(t, r, "/api/reports", gin.H{
		"plateNumber": "PB65XY1234",
		"ownerName":   "Harpreet Singh",
		"description": "Stolen from parking lot",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.VehicleReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := fmt.Sprintf("/api/reports/%d", created.ID)

	// Still active: deletion refused
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, path+"/close", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivePlateUniqueAtDatabaseLevel(t *testing.T) {
	setupTestDB(t)

	newReport := func() models.VehicleReport {
		return models.VehicleReport{
			PlateNumber: "PB65XY1234",
			OwnerName:   "Harpreet Singh",
			Description: "Stolen from parking lot",
			ReportedAt:  time.Now(),
			IsActive:    true,
		}
	}

	first := newReport()
	require.NoError(t, database.DB.Create(&first).Error)

	// A second active report for the same plate is rejected by the store
	// itself, even when it bypasses the handler's pre-check
	second := newReport()
	err := database.DB.Create(&second).Error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")

	// Closed reports do not count toward the constraint
	require.NoError(t, database.DB.Model(&first).Update("is_active", false).Error)
	third := newReport()
	require.NoError(t, database.DB.Create(&third).Error)
}

func TestGetReportNotFound(t *testing.T) {
	setupTestDB(t)
	r := reportRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/reports/9999", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
