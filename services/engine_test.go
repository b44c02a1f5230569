package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plateguard/backend/geo"
	"github.com/plateguard/backend/models"
	"github.com/plateguard/backend/sightings"
	"github.com/plateguard/backend/stations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:engine_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.VehicleReport{},
		&models.ReportDocument{},
		&models.Station{},
		&models.Detection{},
		&models.Alert{},
	))
	return db
}

type recordingDispatcher struct {
	payloads []AlertPayload
	fail     bool
}

func (d *recordingDispatcher) Send(ctx context.Context, payload AlertPayload) error {
	d.payloads = append(d.payloads, payload)
	if d.fail {
		return errors.New("smtp connection refused")
	}
	return nil
}

type recordingBus struct {
	subjects []string
}

func (b *recordingBus) Publish(subject string, data []byte) error {
	b.subjects = append(b.subjects, subject)
	return nil
}

type staticSource struct {
	batch []sightings.Sighting
}

func (s staticSource) Next(ctx context.Context) ([]sightings.Sighting, error) {
	return s.batch, nil
}

func registerReport(t *testing.T, db *gorm.DB, plate, owner string) models.VehicleReport {
	t.Helper()
	model := "Maruti Swift"
	color := "White"
	report := models.VehicleReport{
		PlateNumber: plate,
		OwnerName:   owner,
		Description: "stolen",
		Model:       &model,
		Color:       &color,
		ReportedAt:  time.Now(),
		IsActive:    true,
	}
	require.NoError(t, db.Create(&report).Error)
	return report
}

func amritsarDirectory(t *testing.T) *stations.Directory {
	t.Helper()
	dir, err := stations.NewDirectory([]models.Station{
		{Name: "Amritsar Central", Lat: 31.6340, Lng: 74.8723, ContactAddress: "amritsar.police@example.com"},
	})
	require.NoError(t, err)
	return dir
}

func newTestEngine(t *testing.T, db *gorm.DB, dir *stations.Directory, dispatcher Dispatcher, bus Publisher) *Engine {
	t.Helper()
	return NewEngine(db, NewRegistry(db), dir, staticSource{}, dispatcher, bus, time.Second)
}

func TestMatchedSightingCreatesDetectionAndPendingAlert(t *testing.T) {
	db := openTestDB(t)
	registerReport(t, db, "PB65XY1234", "Harpreet Singh")

	dispatcher := &recordingDispatcher{}
	bus := &recordingBus{}
	engine := newTestEngine(t, db, amritsarDirectory(t), dispatcher, bus)

	sightedAt := time.Now()
	created := engine.ProcessBatch(context.Background(), []sightings.Sighting{{
		Plate:     "PB65XY1234",
		Lat:       31.0,
		Lng:       75.0,
		Heading:   geo.HeadingNorth,
		SightedAt: sightedAt,
	}})
	require.Len(t, created, 1)

	var detections []models.Detection
	require.NoError(t, db.Find(&detections).Error)
	require.Len(t, detections, 1)
	detection := detections[0]
	assert.Equal(t, "PB65XY1234", detection.PlateNumber)
	assert.Equal(t, "Harpreet Singh", detection.OwnerName)
	assert.Equal(t, "Amritsar Central", detection.StationName)
	assert.InDelta(t, 71.5, detection.DistanceKm, 0.5)
	assert.InDelta(t, 31.09, detection.PredictedLat, 1e-9)
	assert.InDelta(t, 75.0, detection.PredictedLng, 1e-9)

	var alerts []models.Alert
	require.NoError(t, db.Find(&alerts).Error)
	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.Equal(t, models.AlertPending, alert.Status)
	assert.Equal(t, detection.ID, alert.DetectionID)
	assert.Equal(t, "Amritsar Central", alert.StationName)

	require.Len(t, dispatcher.payloads, 1)
	payload := dispatcher.payloads[0]
	assert.Equal(t, "PB65XY1234", payload.Plate)
	assert.Equal(t, "amritsar.police@example.com", payload.StationEmail)
	assert.Equal(t, alert.ID, payload.AlertID)

	assert.Equal(t, []string{SubjectAlertCreated}, bus.subjects)
}

func TestUnregisteredPlateDiscarded(t *testing.T) {
	db := openTestDB(t)
	registerReport(t, db, "PB65XY1234", "Harpreet Singh")

	dispatcher := &recordingDispatcher{}
	engine := newTestEngine(t, db, amritsarDirectory(t), dispatcher, nil)

	created := engine.ProcessBatch(context.Background(), []sightings.Sighting{{
		Plate:     "PB01AA0001",
		Lat:       31.2,
		Lng:       75.2,
		Heading:   geo.HeadingEast,
		SightedAt: time.Now(),
	}})
	assert.Empty(t, created)

	var detectionCount, alertCount int64
	db.Model(&models.Detection{}).Count(&detectionCount)
	db.Model(&models.Alert{}).Count(&alertCount)
	assert.Zero(t, detectionCount)
	assert.Zero(t, alertCount)
	assert.Empty(t, dispatcher.payloads, "no notification for unmatched sightings")
}

func TestNotificationFailureKeepsRecords(t *testing.T) {
	db := openTestDB(t)
	registerReport(t, db, "PB65XY1234", "Harpreet Singh")

	dispatcher := &recordingDispatcher{fail: true}
	engine := newTestEngine(t, db, amritsarDirectory(t), dispatcher, nil)

	created := engine.ProcessBatch(context.Background(), []sightings.Sighting{{
		Plate:     "PB65XY1234",
		Lat:       31.0,
		Lng:       75.0,
		Heading:   geo.HeadingWest,
		SightedAt: time.Now(),
	}})
	require.Len(t, created, 1, "delivery failure must not fail the match")

	var detectionCount, alertCount int64
	db.Model(&models.Detection{}).Count(&detectionCount)
	db.Model(&models.Alert{}).Count(&alertCount)
	assert.EqualValues(t, 1, detectionCount)
	assert.EqualValues(t, 1, alertCount)
}

func TestRepeatedSightingsNotDeduplicated(t *testing.T) {
	db := openTestDB(t)
	registerReport(t, db, "PB65XY1234", "Harpreet Singh")

	engine := newTestEngine(t, db, amritsarDirectory(t), &recordingDispatcher{}, nil)

	// Two consecutive ticks spot the same moving vehicle
	for i := 0; i < 2; i++ {
		created := engine.ProcessBatch(context.Background(), []sightings.Sighting{{
			Plate:     "PB65XY1234",
			Lat:       31.0 + float64(i)*0.09,
			Lng:       75.0,
			Heading:   geo.HeadingNorth,
			SightedAt: time.Now(),
		}})
		require.Len(t, created, 1)
	}

	var detectionCount, alertCount int64
	db.Model(&models.Detection{}).Count(&detectionCount)
	db.Model(&models.Alert{}).Count(&alertCount)
	assert.EqualValues(t, 2, detectionCount)
	assert.EqualValues(t, 2, alertCount)
}

func TestMalformedSightingsSkippedRestOfBatchProcessed(t *testing.T) {
	db := openTestDB(t)
	registerReport(t, db, "PB65XY1234", "Harpreet Singh")

	engine := newTestEngine(t, db, amritsarDirectory(t), &recordingDispatcher{}, nil)

	created := engine.ProcessBatch(context.Background(), []sightings.Sighting{
		{Plate: "", Lat: 31.0, Lng: 75.0, Heading: geo.HeadingNorth, SightedAt: time.Now()},
		{Plate: "PB65XY1234", Lat: 31.0, Lng: 75.0, Heading: "Diagonal", SightedAt: time.Now()},
		{Plate: "PB65XY1234", Lat: 31.0, Lng: 75.0, Heading: geo.HeadingNorth},
		{Plate: "PB65XY1234", Lat: 31.0, Lng: 75.0, Heading: geo.HeadingNorth, SightedAt: time.Now()},
	})

	// Only the last, well-formed sighting produces a match
	require.Len(t, created, 1)

	var alertCount int64
	db.Model(&models.Alert{}).Count(&alertCount)
	assert.EqualValues(t, 1, alertCount)
}

func TestLookupNormalizesPlate(t *testing.T) {
	db := openTestDB(t)
	registerReport(t, db, "PB65XY1234", "Harpreet Singh")

	engine := newTestEngine(t, db, amritsarDirectory(t), &recordingDispatcher{}, nil)

	created := engine.ProcessBatch(context.Background(), []sightings.Sighting{{
		Plate:     "pb65 xy 1234",
		Lat:       31.0,
		Lng:       75.0,
		Heading:   geo.HeadingSouth,
		SightedAt: time.Now(),
	}})
	require.Len(t, created, 1)
	assert.Equal(t, "PB65XY1234", created[0].PlateNumber)
}

func TestClosedReportNotMatched(t *testing.T) {
	db := openTestDB(t)
	report := registerReport(t, db, "PB65XY1234", "Harpreet Singh")
	require.NoError(t, db.Model(&report).Update("is_active", false).Error)

	engine := newTestEngine(t, db, amritsarDirectory(t), &recordingDispatcher{}, nil)

	created := engine.ProcessBatch(context.Background(), []sightings.Sighting{{
		Plate:     "PB65XY1234",
		Lat:       31.0,
		Lng:       75.0,
		Heading:   geo.HeadingNorth,
		SightedAt: time.Now(),
	}})
	assert.Empty(t, created)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	db := openTestDB(t)
	engine := NewEngine(db, NewRegistry(db), amritsarDirectory(t), staticSource{}, nil, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
}
