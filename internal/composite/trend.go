package composite

import (
	"math"
	"sort"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// TrendOutcome carries the fitted trends plus the count of blocks excluded
// for insufficient history.
type TrendOutcome struct {
	Results []domain.TrendResult
	Skipped int // blocks with fewer than two distinct years
}

// Trends fits ordinary least squares of the annual groundwater stress
// index against year, per block. Blocks with fewer than two distinct
// years are excluded, never defaulted to slope zero. |slope| below
// epsilon classifies as Stable.
func Trends(indices []domain.StressIndex, epsilon float64) TrendOutcome {
	byBlock := make(map[string][]domain.StressIndex)
	for _, idx := range indices {
		byBlock[idx.BlockID] = append(byBlock[idx.BlockID], idx)
	}

	var out TrendOutcome
	for blockID, series := range byBlock {
		years := make(map[int]bool, len(series))
		for _, idx := range series {
			years[idx.Year] = true
		}
		if len(years) < 2 {
			out.Skipped++
			continue
		}

		xs := make([]float64, len(series))
		ys := make([]float64, len(series))
		for i, idx := range series {
			xs[i] = float64(idx.Year)
			ys[i] = idx.GWStress
		}

		intercept, slope := stat.LinearRegression(xs, ys, nil, false)
		out.Results = append(out.Results, domain.TrendResult{
			BlockID:   blockID,
			Slope:     slope,
			Intercept: intercept,
			RSquared:  rSquared(xs, ys, intercept, slope),
			Direction: direction(slope, epsilon),
		})
	}

	sort.Slice(out.Results, func(i, j int) bool {
		return out.Results[i].BlockID < out.Results[j].BlockID
	})
	return out
}

// rSquared computes fit quality directly from residuals. A constant
// series fits its own mean exactly, so it reports 1 rather than the
// 0/0 the textbook formula would produce.
func rSquared(xs, ys []float64, intercept, slope float64) float64 {
	mean := stat.Mean(ys, nil)
	var ssr, sst float64
	for i, x := range xs {
		resid := ys[i] - (intercept + slope*x)
		ssr += resid * resid
		dev := ys[i] - mean
		sst += dev * dev
	}
	if sst == 0 {
		return 1
	}
	return 1 - ssr/sst
}

func direction(slope, epsilon float64) domain.TrendDirection {
	switch {
	case math.Abs(slope) < epsilon:
		return domain.TrendStable
	case slope > 0:
		return domain.TrendIncreasing
	default:
		return domain.TrendDecreasing
	}
}
