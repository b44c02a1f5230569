// Package services provides the matching engine, registry access, alert
// notification and live alert streaming.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/plateguard/backend/models"
	"gorm.io/gorm"
)

// Registry is the matching engine's read-only view of registered
// stolen-vehicle reports. The reporting workflow owns all writes.
type Registry interface {
	// LookupByPlate returns the active report for a plate, or nil when the
	// plate is not registered.
	LookupByPlate(plate string) (*models.VehicleReport, error)

	// ListActivePlates enumerates the plates of all active reports.
	ListActivePlates() ([]string, error)
}

// GormRegistry implements Registry over the shared store.
type GormRegistry struct {
	db *gorm.DB
}

// NewRegistry creates a registry over the given database handle.
func NewRegistry(db *gorm.DB) *GormRegistry {
	return &GormRegistry{db: db}
}

func (r *GormRegistry) LookupByPlate(plate string) (*models.VehicleReport, error) {
	normalized := NormalizePlate(plate)

	var report models.VehicleReport
	err := r.db.Preload("Documents").
		Where("plate_number = ? AND is_active = ?", normalized, true).
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up plate %s: %w", normalized, err)
	}
	return &report, nil
}

func (r *GormRegistry) ListActivePlates() ([]string, error) {
	var plates []string
	if err := r.db.Model(&models.VehicleReport{}).
		Where("is_active = ?", true).
		Pluck("plate_number", &plates).Error; err != nil {
		return nil, fmt.Errorf("failed to list active plates: %w", err)
	}
	return plates, nil
}

// NormalizePlate uppercases a plate identifier and strips surrounding and
// embedded whitespace, so lookups and the unique index agree on one form.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.Join(strings.Fields(plate), ""))
}
