// Package composite normalizes the two stress indices, combines them into
// the compound risk score, classifies critical blocks, and fits per-block
// degradation trends.
package composite

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

// Weights is the configurable compound weighting. Callers validate that
// the weights sum to 1.
type Weights struct {
	Flood float64
	GW    float64
}

// Normalize min-max scales values into [0,1] across the slice. A
// degenerate distribution (max == min) yields all zeros, never NaN.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}

// LatestYear returns the most recent year present in the indices.
func LatestYear(indices []domain.StressIndex) int {
	latest := 0
	for _, idx := range indices {
		if idx.Year > latest {
			latest = idx.Year
		}
	}
	return latest
}

// ScoreLatest computes compound scores for every block at the latest year:
// each index is independently min-max normalized across blocks, combined
// with the given weights, and blocks at or above the quantile threshold
// are classified Critical. The threshold is the ceil((1-quantile)·N)-th
// largest score, so ties at the boundary are all Critical.
func ScoreLatest(indices []domain.StressIndex, w Weights, quantile float64) ([]domain.CompoundScore, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("score: no stress indices")
	}

	year := LatestYear(indices)
	var latest []domain.StressIndex
	for _, idx := range indices {
		if idx.Year == year {
			latest = append(latest, idx)
		}
	}
	sort.Slice(latest, func(i, j int) bool { return latest[i].BlockID < latest[j].BlockID })

	flood := make([]float64, len(latest))
	gw := make([]float64, len(latest))
	for i, idx := range latest {
		flood[i] = idx.FloodPressure
		gw[i] = idx.GWStress
	}
	normFlood := Normalize(flood)
	normGW := Normalize(gw)

	scores := make([]domain.CompoundScore, len(latest))
	compounds := make([]float64, len(latest))
	now := domain.Timestamp()
	for i, idx := range latest {
		compound := w.Flood*normFlood[i] + w.GW*normGW[i]
		compounds[i] = compound
		scores[i] = domain.CompoundScore{
			BlockID:         idx.BlockID,
			NormalizedFlood: normFlood[i],
			NormalizedGW:    normGW[i],
			Compound:        compound,
			ScoredAt:        now,
		}
	}

	threshold := criticalThreshold(compounds, quantile)
	for i := range scores {
		if scores[i].Compound >= threshold {
			scores[i].Classification = domain.ClassificationCritical
		} else {
			scores[i].Classification = domain.ClassificationNonCritical
		}
	}
	return scores, nil
}

// criticalThreshold returns the k-th largest score, k = ceil((1-q)·N).
func criticalThreshold(scores []float64, quantile float64) float64 {
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	k := int(math.Ceil((1 - quantile) * float64(len(sorted))))
	if k < 1 {
		k = 1
	}
	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[k-1]
}
