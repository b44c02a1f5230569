package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/plateguard/backend/geo"
)

// AlertStatus enum - open set, the police workflow may add values
type AlertStatus string

const (
	AlertPending      AlertStatus = "PENDING"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertResolved     AlertStatus = "RESOLVED"
)

// JSONB type for GORM - can handle both objects and arrays
type JSONB struct {
	Data interface{} `json:"-"`
}

// NewJSONB creates a new JSONB from any value
func NewJSONB(v interface{}) JSONB {
	return JSONB{Data: v}
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Data)
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j.Data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(j.Data)
}

func (j JSONB) Value() (driver.Value, error) {
	if j.Data == nil {
		return nil, nil
	}
	return json.Marshal(j.Data)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		j.Data = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &j.Data)
}

// VehicleReport model - a registered stolen-vehicle claim.
// Created by the reporting workflow; the matching engine only reads it.
type VehicleReport struct {
	ID          int64   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	PlateNumber string  `gorm:"column:plate_number;index;uniqueIndex:idx_reports_active_plate,where:is_active" json:"plateNumber"` // Normalized uppercase; at most one active report per plate
	OwnerName   string  `gorm:"column:owner_name" json:"ownerName"`
	Description string  `gorm:"column:description" json:"description"`
	Model       *string `gorm:"column:model" json:"model,omitempty"`
	Color       *string `gorm:"column:color" json:"color,omitempty"`

	// Last known position, if the owner supplied one
	LastKnownLat *float64 `gorm:"column:last_known_lat" json:"lastKnownLat,omitempty"`
	LastKnownLng *float64 `gorm:"column:last_known_lng" json:"lastKnownLng,omitempty"`

	ReportedAt time.Time `gorm:"column:reported_at;default:CURRENT_TIMESTAMP;index" json:"reportedAt"`
	IsActive   bool      `gorm:"column:is_active;default:true;index" json:"isActive"`

	UserID *uint `gorm:"column:user_id;index" json:"userId,omitempty"`
	User   *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Metadata JSONB `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Documents  []ReportDocument `gorm:"foreignKey:ReportID" json:"documents,omitempty"`
	Detections []Detection      `gorm:"foreignKey:ReportID" json:"detections,omitempty"`
	Alerts     []Alert          `gorm:"foreignKey:ReportID" json:"alerts,omitempty"`
}

func (VehicleReport) TableName() string {
	return "vehicle_reports"
}

// ReportDocument model - supporting document attached to a report (FIR copy, RC book, photos)
type ReportDocument struct {
	ID       string `gorm:"primaryKey;column:id" json:"id"` // UUID
	ReportID int64  `gorm:"column:report_id;index" json:"reportId"`

	FileName    string `gorm:"column:file_name" json:"fileName"`
	ContentType string `gorm:"column:content_type" json:"contentType"`
	SizeBytes   int64  `gorm:"column:size_bytes" json:"sizeBytes"`
	StoragePath string `gorm:"column:storage_path" json:"-"`

	UploadedAt time.Time `gorm:"column:uploaded_at;default:CURRENT_TIMESTAMP" json:"uploadedAt"`
}

func (ReportDocument) TableName() string {
	return "report_documents"
}

// Station model - a responding police station. Loaded once at startup into
// the station directory; rows never change during a run.
type Station struct {
	ID   int64   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name string  `gorm:"column:name;uniqueIndex" json:"name"`
	Lat  float64 `gorm:"column:lat" json:"lat"`
	Lng  float64 `gorm:"column:lng" json:"lng"`

	// Contact address alerts are delivered to (email)
	ContactAddress string `gorm:"column:contact_address" json:"contactAddress"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (Station) TableName() string {
	return "stations"
}

// Detection model - immutable record of a matched sighting. Append-only:
// created once by the matching engine, never updated or deleted.
type Detection struct {
	ID       int64          `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ReportID int64          `gorm:"column:report_id;index" json:"reportId"`
	Report   *VehicleReport `gorm:"foreignKey:ReportID" json:"report,omitempty"`

	// Vehicle attributes captured at match time
	PlateNumber string  `gorm:"column:plate_number;index" json:"plateNumber"`
	OwnerName   string  `gorm:"column:owner_name" json:"ownerName"`
	Model       *string `gorm:"column:model" json:"model,omitempty"`
	Color       *string `gorm:"column:color" json:"color,omitempty"`

	// Sighting
	Lat       float64     `gorm:"column:lat" json:"lat"`
	Lng       float64     `gorm:"column:lng" json:"lng"`
	Heading   geo.Heading `gorm:"column:heading" json:"heading"`
	SightedAt time.Time   `gorm:"column:sighted_at;index" json:"sightedAt"`

	// Resolved routing
	StationName  string  `gorm:"column:station_name;index" json:"stationName"`
	DistanceKm   float64 `gorm:"column:distance_km" json:"distanceKm"`
	PredictedLat float64 `gorm:"column:predicted_lat" json:"predictedLat"`
	PredictedLng float64 `gorm:"column:predicted_lng" json:"predictedLng"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP;index" json:"createdAt"`
}

func (Detection) TableName() string {
	return "detections"
}

// Alert model - the status-tracked escalation derived 1:1 from a Detection.
// Created PENDING by the matching engine; status transitions belong to the
// police/operator workflow only.
type Alert struct {
	ID          int64          `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	DetectionID int64          `gorm:"column:detection_id;uniqueIndex" json:"detectionId"`
	Detection   *Detection     `gorm:"foreignKey:DetectionID" json:"detection,omitempty"`
	ReportID    int64          `gorm:"column:report_id;index" json:"reportId"`
	Report      *VehicleReport `gorm:"foreignKey:ReportID" json:"report,omitempty"`

	PlateNumber string      `gorm:"column:plate_number;index" json:"plateNumber"`
	StationName string      `gorm:"column:station_name;index" json:"stationName"`
	Status      AlertStatus `gorm:"column:status;default:PENDING;index" json:"status"`

	Lat          float64     `gorm:"column:lat" json:"lat"`
	Lng          float64     `gorm:"column:lng" json:"lng"`
	Heading      geo.Heading `gorm:"column:heading" json:"heading"`
	SightedAt    time.Time   `gorm:"column:sighted_at;index" json:"sightedAt"`
	PredictedLat float64     `gorm:"column:predicted_lat" json:"predictedLat"`
	PredictedLng float64     `gorm:"column:predicted_lng" json:"predictedLng"`

	AcknowledgedBy *string    `gorm:"column:acknowledged_by" json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at" json:"acknowledgedAt,omitempty"`
	ResolvedBy     *string    `gorm:"column:resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
	ResolutionNote *string    `gorm:"column:resolution_note" json:"resolutionNote,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP;index" json:"createdAt"`
}

func (Alert) TableName() string {
	return "alerts"
}
