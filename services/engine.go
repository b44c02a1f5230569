package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/plateguard/backend/geo"
	"github.com/plateguard/backend/models"
	"github.com/plateguard/backend/sightings"
	"github.com/plateguard/backend/stations"
	"gorm.io/gorm"
)

// ErrMalformedSighting marks a sighting missing a required field or carrying
// an unrecognized heading. Such sightings are skipped, never fatal to a tick.
var ErrMalformedSighting = errors.New("malformed sighting")

// NATS subjects for alert lifecycle events
const (
	SubjectAlertCreated      = "alerts.created"
	SubjectAlertAcknowledged = "alerts.acknowledged"
	SubjectAlertResolved     = "alerts.resolved"
)

// Publisher is the slice of the event bus the engine and handlers need.
// Satisfied by natsserver.EmbeddedNATS.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// AlertEvent is the JSON message published on the alert subjects.
type AlertEvent struct {
	Type  string       `json:"type"` // created, acknowledged, resolved
	Alert models.Alert `json:"alert"`
}

// PublishAlertEvent publishes an alert lifecycle event to the bus.
// Best-effort: a publish failure is logged and swallowed, the persisted
// records are the source of truth.
func PublishAlertEvent(bus Publisher, subject, eventType string, alert models.Alert) {
	if bus == nil {
		return
	}
	data, err := json.Marshal(AlertEvent{Type: eventType, Alert: alert})
	if err != nil {
		log.Printf("⚠️ Failed to encode alert event: %v", err)
		return
	}
	if err := bus.Publish(subject, data); err != nil {
		log.Printf("⚠️ Failed to publish alert event %s: %v", eventType, err)
	}
}

// Engine is the scheduler-driven matching core. Each tick it pulls a batch of
// sightings, matches plates against the registry, resolves the nearest
// station and predicted next position, persists a detection/alert pair per
// match and dispatches a notification.
type Engine struct {
	db         *gorm.DB
	registry   Registry
	directory  *stations.Directory
	source     sightings.Source
	dispatcher Dispatcher
	bus        Publisher
	interval   time.Duration
}

// NewEngine wires the matching engine. A nil dispatcher disables delivery,
// a nil bus disables event publishing; persistence happens regardless.
func NewEngine(db *gorm.DB, registry Registry, directory *stations.Directory, source sightings.Source, dispatcher Dispatcher, bus Publisher, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Engine{
		db:         db,
		registry:   registry,
		directory:  directory,
		source:     source,
		dispatcher: dispatcher,
		bus:        bus,
		interval:   interval,
	}
}

// Run drives the tick loop until ctx is cancelled. Shutdown is graceful: a
// tick in flight completes before Run returns, so a detection is never left
// without its alert.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("🚓 Matching engine started (interval %s)", e.interval)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("🚓 Matching engine stopped")
			return
		case <-ticker.C:
			e.runTick()
		}
	}
}

// runTick executes one scheduled tick. Nothing inside a tick may kill the
// scheduler; every failure is logged and the loop continues on the next
// interval.
func (e *Engine) runTick() {
	batch, err := e.source.Next(context.Background())
	if err != nil {
		log.Printf("⚠️ Sighting source failed, skipping tick: %v", err)
		return
	}
	e.ProcessBatch(context.Background(), batch)
}

// ProcessBatch matches a batch of sightings in order. Persistence is
// per-match, not per-batch: a failure on one sighting never rolls back
// earlier matches. Returns the alerts created.
func (e *Engine) ProcessBatch(ctx context.Context, batch []sightings.Sighting) []models.Alert {
	created := make([]models.Alert, 0)
	for _, s := range batch {
		alert, err := e.processSighting(ctx, s)
		if err != nil {
			if errors.Is(err, ErrMalformedSighting) {
				log.Printf("⚠️ Skipping malformed sighting (plate=%q heading=%q): %v", s.Plate, s.Heading, err)
			} else {
				log.Printf("⚠️ Failed to process sighting for plate %s at %s: %v", s.Plate, s.SightedAt.Format(time.RFC3339), err)
			}
			continue
		}
		if alert != nil {
			created = append(created, *alert)
		}
	}
	return created
}

// processSighting handles one sighting. Returns (nil, nil) for the common
// case of an unregistered plate.
func (e *Engine) processSighting(ctx context.Context, s sightings.Sighting) (*models.Alert, error) {
	if err := validateSighting(s); err != nil {
		return nil, err
	}

	report, err := e.registry.LookupByPlate(s.Plate)
	if err != nil {
		return nil, err
	}
	if report == nil {
		// Not a registered stolen vehicle; discard with no side effect.
		return nil, nil
	}

	station, distance, err := e.directory.Nearest(s.Lat, s.Lng)
	if err != nil {
		return nil, err
	}
	predictedLat, predictedLng := geo.PredictNext(s.Lat, s.Lng, s.Heading)

	detection := models.Detection{
		ReportID:     report.ID,
		PlateNumber:  report.PlateNumber,
		OwnerName:    report.OwnerName,
		Model:        report.Model,
		Color:        report.Color,
		Lat:          s.Lat,
		Lng:          s.Lng,
		Heading:      s.Heading,
		SightedAt:    s.SightedAt,
		StationName:  station.Name,
		DistanceKm:   distance,
		PredictedLat: predictedLat,
		PredictedLng: predictedLng,
	}
	alert := models.Alert{
		ReportID:     report.ID,
		PlateNumber:  report.PlateNumber,
		StationName:  station.Name,
		Status:       models.AlertPending,
		Lat:          s.Lat,
		Lng:          s.Lng,
		Heading:      s.Heading,
		SightedAt:    s.SightedAt,
		PredictedLat: predictedLat,
		PredictedLng: predictedLng,
	}

	// A detection must never exist without its alert, so both inserts share
	// one transaction.
	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&detection).Error; err != nil {
			return fmt.Errorf("failed to create detection: %w", err)
		}
		alert.DetectionID = detection.ID
		if err := tx.Create(&alert).Error; err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🚨 DETECTION: stolen vehicle %s spotted at (%.4f, %.4f) heading %s, routed to %s (%.2f km)",
		report.PlateNumber, s.Lat, s.Lng, s.Heading, station.Name, distance)

	PublishAlertEvent(e.bus, SubjectAlertCreated, "created", alert)
	e.dispatch(ctx, report, station, alert, distance)

	return &alert, nil
}

// dispatch sends the outbound notification. Delivery is best-effort and
// isolated: the detection/alert pair is already persisted, so a transport
// failure is logged and never propagated.
func (e *Engine) dispatch(ctx context.Context, report *models.VehicleReport, station models.Station, alert models.Alert, distance float64) {
	if e.dispatcher == nil {
		return
	}

	payload := AlertPayload{
		AlertID:      alert.ID,
		DetectionID:  alert.DetectionID,
		Plate:        report.PlateNumber,
		Owner:        report.OwnerName,
		Model:        derefOr(report.Model, "Unknown"),
		Color:        derefOr(report.Color, "Unknown"),
		SightedAt:    alert.SightedAt,
		Lat:          alert.Lat,
		Lng:          alert.Lng,
		Heading:      alert.Heading,
		Station:      station.Name,
		StationEmail: station.ContactAddress,
		DistanceKm:   distance,
		PredictedLat: alert.PredictedLat,
		PredictedLng: alert.PredictedLng,
	}
	for _, doc := range report.Documents {
		payload.DocumentIDs = append(payload.DocumentIDs, doc.ID)
	}

	if err := e.dispatcher.Send(ctx, payload); err != nil {
		log.Printf("⚠️ Alert delivery failed for %s (station %s, alert %d): %v", payload.Plate, station.Name, alert.ID, err)
		return
	}
	log.Printf("📧 Alert %d for %s delivered to %s", alert.ID, payload.Plate, station.Name)
}

func validateSighting(s sightings.Sighting) error {
	if s.Plate == "" {
		return fmt.Errorf("%w: missing plate", ErrMalformedSighting)
	}
	if s.SightedAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrMalformedSighting)
	}
	if !s.Heading.Valid() {
		return fmt.Errorf("%w: unknown heading %q", ErrMalformedSighting, s.Heading)
	}
	return nil
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
