package domain

import "time"

// Variable identifies a satellite-derived climate variable.
type Variable string

const (
	VariableRainfall           Variable = "rainfall"
	VariableEvapotranspiration Variable = "evapotranspiration"
	VariableVegetationIndex    Variable = "vegetation_index"
)

// Variables lists every climate variable the pipeline extracts, in the
// order fusion joins them.
var Variables = []Variable{
	VariableRainfall,
	VariableEvapotranspiration,
	VariableVegetationIndex,
}

// Valid reports whether v names a known climate variable.
func (v Variable) Valid() bool {
	switch v {
	case VariableRainfall, VariableEvapotranspiration, VariableVegetationIndex:
		return true
	}
	return false
}

// Block is an administrative spatial unit. The ID is the stable join key
// across every table in the pipeline; Boundary holds GeoJSON polygon rings
// in lon,lat order (EPSG:4326).
type Block struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	District string         `json:"district,omitempty"`
	Boundary [][][2]float64 `json:"boundary"`
}

// Period identifies a block-month, the granularity of every observation
// and feature row.
type Period struct {
	BlockID string
	Year    int
	Month   int
}

// ClimateObservation is one extracted value: the per-block spatial
// reduction of one variable for one calendar month. Append-only; a
// block-period with no valid scenes is simply absent.
type ClimateObservation struct {
	BlockID  string   `json:"block_id"`
	Year     int      `json:"year"`
	Month    int      `json:"month"`
	Variable Variable `json:"variable"`
	Value    float64  `json:"value"`
}

// Key returns the observation's block-period.
func (o ClimateObservation) Key() Period {
	return Period{BlockID: o.BlockID, Year: o.Year, Month: o.Month}
}

// FeatureRow is one fused block-period with derived features. Rainfall is
// the join anchor and always present; pointer fields are nil when the
// quantity is undefined for that row (missing source under the fill
// policy, short rainfall history, zero-rainfall ratio, missing baseline).
// An undefined value is never encoded as 0, NaN, or Inf.
type FeatureRow struct {
	BlockID            string   `json:"block_id"`
	Year               int      `json:"year"`
	Month              int      `json:"month"`
	Rainfall           float64  `json:"rainfall"`
	Evapotranspiration *float64 `json:"evapotranspiration,omitempty"`
	VegetationIndex    *float64 `json:"vegetation_index,omitempty"`
	Rain3M             *float64 `json:"rain_3m,omitempty"`
	RainAnomaly        *float64 `json:"rain_anomaly,omitempty"`
	ETRainRatio        *float64 `json:"et_rain_ratio,omitempty"`
}

// Key returns the row's block-period.
func (r FeatureRow) Key() Period {
	return Period{BlockID: r.BlockID, Year: r.Year, Month: r.Month}
}

// StressIndex holds the two model outputs for one block-year.
type StressIndex struct {
	BlockID       string  `json:"block_id"`
	Year          int     `json:"year"`
	FloodPressure float64 `json:"flood_pressure"`
	GWStress      float64 `json:"gw_stress_index"`
}

// Classification labels a block's position in the compound-score
// distribution.
type Classification string

const (
	ClassificationCritical    Classification = "Critical"
	ClassificationNonCritical Classification = "Non-critical"
)

// CompoundScore is the normalized, weighted combination of the two stress
// indices for one block at the latest scored period.
type CompoundScore struct {
	BlockID         string         `json:"block_id"`
	NormalizedFlood float64        `json:"normalized_flood"`
	NormalizedGW    float64        `json:"normalized_gw"`
	Compound        float64        `json:"compound_risk"`
	Classification  Classification `json:"compound_class"`
	ScoredAt        time.Time      `json:"scored_at"`
}

// TrendDirection summarizes the sign of a block's degradation rate.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "Increasing"
	TrendDecreasing TrendDirection = "Decreasing"
	TrendStable     TrendDirection = "Stable"
)

// TrendResult is the OLS fit of a block's annual stress index against
// year. Blocks with fewer than two distinct years never produce one.
type TrendResult struct {
	BlockID   string         `json:"block_id"`
	Slope     float64        `json:"stress_slope"`
	Intercept float64        `json:"trend_intercept"`
	RSquared  float64        `json:"trend_r2"`
	Direction TrendDirection `json:"trend_direction"`
}

// Float64Ptr returns a pointer to v. Used when populating the nullable
// derived-feature fields.
func Float64Ptr(v float64) *float64 { return &v }
