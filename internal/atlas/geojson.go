// Package atlas reads block boundaries and writes the final risk atlas,
// both as GeoJSON FeatureCollections (RFC 7946, lon/lat order).
package atlas

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Geometry is a GeoJSON Polygon. Coordinates hold linear rings; the
// first ring is the exterior boundary.
type Geometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// Properties carries the per-block pipeline outputs. Trend fields are
// pointers because blocks with fewer than two scored years have no
// trend at all.
type Properties struct {
	BlockID         string   `json:"block_id"`
	Block           string   `json:"block"`
	District        string   `json:"district,omitempty"`
	FloodPressure   float64  `json:"flood_pressure"`
	GWStressIndex   float64  `json:"gw_stress_index"`
	NormalizedFlood float64  `json:"normalized_flood"`
	NormalizedGW    float64  `json:"normalized_gw"`
	CompoundRisk    float64  `json:"compound_risk"`
	CompoundClass   string   `json:"compound_class"`
	StressSlope     *float64 `json:"stress_slope,omitempty"`
	TrendIntercept  *float64 `json:"trend_intercept,omitempty"`
	TrendR2         *float64 `json:"trend_r2,omitempty"`
	TrendDirection  string   `json:"trend_direction,omitempty"`
}

// Feature pairs one block's geometry with its risk properties.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// FeatureCollection is the atlas document served to the dashboard.
type FeatureCollection struct {
	Type        string    `json:"type"`
	GeneratedAt time.Time `json:"generated_at"`
	ScoredYear  int       `json:"scored_year"`
	Features    []Feature `json:"features"`
}

// Write marshals the collection to path with trailing newline.
func Write(path string, fc *FeatureCollection) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode atlas: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write atlas: %w", err)
	}
	return nil
}

// Read loads a previously written atlas from path.
func Read(path string) (*FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read atlas: %w", err)
	}
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode atlas: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("unexpected GeoJSON type %q", fc.Type)
	}
	return &fc, nil
}
