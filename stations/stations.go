// Package stations holds the directory of responding police stations and the
// nearest-station resolution used to route alerts.
package stations

import (
	"errors"
	"fmt"
	"log"

	"github.com/plateguard/backend/geo"
	"github.com/plateguard/backend/models"
	"gorm.io/gorm"
)

// ErrNoStations indicates the directory was built with no stations. Running
// without any station to route alerts to is a configuration error, so callers
// must treat this as fatal rather than skipping matches.
var ErrNoStations = errors.New("no stations configured")

// Directory is the immutable, ordered set of stations for the process
// lifetime. Construct it once at startup and inject it; a restart is the
// supported reconfiguration path.
type Directory struct {
	stations []models.Station
}

// NewDirectory builds a directory from the given stations, preserving order.
// Returns ErrNoStations when the slice is empty.
func NewDirectory(list []models.Station) (*Directory, error) {
	if len(list) == 0 {
		return nil, ErrNoStations
	}
	stations := make([]models.Station, len(list))
	copy(stations, list)
	return &Directory{stations: stations}, nil
}

// Nearest returns the station with the minimum haversine distance to the
// query point, and that distance in kilometers. On an exact tie the station
// loaded first wins, so resolution is deterministic for a fixed load order.
func (d *Directory) Nearest(lat, lng float64) (models.Station, float64, error) {
	if len(d.stations) == 0 {
		return models.Station{}, 0, ErrNoStations
	}

	best := d.stations[0]
	minDistance := geo.DistanceKm(lat, lng, best.Lat, best.Lng)
	for _, station := range d.stations[1:] {
		distance := geo.DistanceKm(lat, lng, station.Lat, station.Lng)
		if distance < minDistance {
			minDistance = distance
			best = station
		}
	}
	return best, minDistance, nil
}

// All returns the stations in load order.
func (d *Directory) All() []models.Station {
	out := make([]models.Station, len(d.stations))
	copy(out, d.stations)
	return out
}

// Len returns the number of stations in the directory.
func (d *Directory) Len() int {
	return len(d.stations)
}

// defaultStations seed the directory on first run. Coordinates cover the
// Punjab service region the synthetic feed draws from.
func defaultStations() []models.Station {
	return []models.Station{
		{Name: "Amritsar Central", Lat: 31.6340, Lng: 74.8723, ContactAddress: "amritsar.police@example.com"},
		{Name: "Ludhiana North", Lat: 30.9010, Lng: 75.8573, ContactAddress: "ludhiana.police@example.com"},
		{Name: "Jalandhar West", Lat: 31.3260, Lng: 75.5762, ContactAddress: "jalandhar.police@example.com"},
	}
}

// LoadOrSeed reads all stations ordered by id. An empty table is seeded with
// the defaults first, so a fresh install always starts with a usable
// directory.
func LoadOrSeed(db *gorm.DB) (*Directory, error) {
	var list []models.Station
	if err := db.Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}

	if len(list) == 0 {
		defaults := defaultStations()
		if err := db.Create(&defaults).Error; err != nil {
			return nil, fmt.Errorf("failed to seed default stations: %w", err)
		}
		list = defaults
		log.Printf("🌱 Seeded %d default stations", len(defaults))
	}

	return NewDirectory(list)
}
