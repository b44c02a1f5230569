// Package sightings defines the plate-sighting feed consumed by the matching
// engine. The synthetic source here stands in for a real ANPR camera network;
// any implementation that yields a bounded, ordered batch per call can
// replace it.
package sightings

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/plateguard/backend/geo"
)

// Sighting is one plate observation. Sightings are ephemeral: they either
// produce a detection/alert pair or are discarded, and are never stored on
// their own.
type Sighting struct {
	Plate     string      `json:"plate"`
	Lat       float64     `json:"lat"`
	Lng       float64     `json:"lng"`
	Heading   geo.Heading `json:"heading"`
	SightedAt time.Time   `json:"sightedAt"`
}

// Source produces a finite, ordered batch of sightings per invocation.
type Source interface {
	Next(ctx context.Context) ([]Sighting, error)
}

// PlateLister enumerates the currently registered plates. The synthetic
// source uses it to bias some sightings toward registered vehicles so matches
// occur at a testable rate.
type PlateLister interface {
	ListActivePlates() ([]string, error)
}

// SyntheticConfig controls the synthetic feed.
type SyntheticConfig struct {
	BatchSize int     // Sightings per tick
	MatchBias float64 // Probability a sighting reuses a registered plate

	// Bounding box of the service region
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// DefaultSyntheticConfig covers the Punjab service region.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		BatchSize: 3,
		MatchBias: 0.2,
		MinLat:    30.5,
		MaxLat:    32.0,
		MinLng:    74.5,
		MaxLng:    76.5,
	}
}

var headings = []geo.Heading{geo.HeadingNorth, geo.HeadingSouth, geo.HeadingEast, geo.HeadingWest}

// SyntheticSource generates random sightings inside the configured bounding
// box, reusing a registered plate with probability MatchBias.
type SyntheticSource struct {
	cfg    SyntheticConfig
	plates PlateLister

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticSource creates a synthetic sighting source.
func NewSyntheticSource(cfg SyntheticConfig, plates PlateLister) *SyntheticSource {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &SyntheticSource{
		cfg:    cfg,
		plates: plates,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next generates one batch of sightings.
func (s *SyntheticSource) Next(ctx context.Context) ([]Sighting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var registered []string
	if s.plates != nil {
		var err error
		registered, err = s.plates.ListActivePlates()
		if err != nil {
			return nil, fmt.Errorf("failed to list registered plates: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	batch := make([]Sighting, 0, s.cfg.BatchSize)
	for i := 0; i < s.cfg.BatchSize; i++ {
		plate := s.randomPlate()
		if len(registered) > 0 && s.rng.Float64() < s.cfg.MatchBias {
			plate = registered[s.rng.Intn(len(registered))]
		}

		batch = append(batch, Sighting{
			Plate:     plate,
			Lat:       s.cfg.MinLat + s.rng.Float64()*(s.cfg.MaxLat-s.cfg.MinLat),
			Lng:       s.cfg.MinLng + s.rng.Float64()*(s.cfg.MaxLng-s.cfg.MinLng),
			Heading:   headings[s.rng.Intn(len(headings))],
			SightedAt: now,
		})
	}
	return batch, nil
}

// randomPlate synthesizes an unregistered plate: region code, two digits,
// two letters, four digits (e.g. PB08KX4821).
func (s *SyntheticSource) randomPlate() string {
	return fmt.Sprintf("PB%02d%c%c%d",
		s.rng.Intn(99)+1,
		'A'+rune(s.rng.Intn(26)),
		'A'+rune(s.rng.Intn(26)),
		s.rng.Intn(9000)+1000,
	)
}
