// Package fusion joins the per-variable climate tables into one feature
// table and computes the derived quantities the risk models consume.
package fusion

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/hydro-risk-atlas/internal/config"
	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

// Result carries the fused table plus the data-quality counts the caller
// reports as metrics.
type Result struct {
	Rows            []domain.FeatureRow
	JoinMismatches  int // block-periods present in some tables but not all
	UndefinedRatios int // ET/rain ratios flagged undefined (zero rainfall)
}

// Fuse joins the observations on (block_id, year, month) under the given
// policy and derives rain_3m, rain_anomaly, and et_rain_ratio per block in
// chronological order. It fails if any source table is entirely absent;
// per-row gaps follow the policy.
func Fuse(obs []domain.ClimateObservation, baseline Baseline, policy config.JoinPolicy) (*Result, error) {
	tables := pivot(obs)
	for _, v := range domain.Variables {
		if len(tables[v]) == 0 {
			return nil, fmt.Errorf("fuse: %s table is empty", v)
		}
	}

	rain := tables[domain.VariableRainfall]
	et := tables[domain.VariableEvapotranspiration]
	ndvi := tables[domain.VariableVegetationIndex]

	res := &Result{}
	for key, rainfall := range rain {
		etVal, hasET := et[key]
		ndviVal, hasNDVI := ndvi[key]

		if !hasET || !hasNDVI {
			res.JoinMismatches++
			if policy == config.JoinDrop {
				continue
			}
		}

		row := domain.FeatureRow{
			BlockID:  key.BlockID,
			Year:     key.Year,
			Month:    key.Month,
			Rainfall: rainfall,
		}
		if hasET {
			row.Evapotranspiration = domain.Float64Ptr(etVal)
		}
		if hasNDVI {
			row.VegetationIndex = domain.Float64Ptr(ndviVal)
		}

		row.Rain3M = rollingRain(rain, key)
		row.RainAnomaly = anomaly(baseline, key.Month, rainfall)
		if hasET {
			if ratio, ok := etRainRatio(etVal, rainfall); ok {
				row.ETRainRatio = domain.Float64Ptr(ratio)
			} else {
				res.UndefinedRatios++
			}
		}

		res.Rows = append(res.Rows, row)
	}

	// Periods present in a secondary table but missing from rainfall are
	// join mismatches too; under either policy they cannot anchor a row.
	for key := range et {
		if _, ok := rain[key]; !ok {
			res.JoinMismatches++
		}
	}
	for key := range ndvi {
		if _, ok := rain[key]; !ok {
			res.JoinMismatches++
		}
	}

	sort.Slice(res.Rows, func(i, j int) bool {
		a, b := res.Rows[i], res.Rows[j]
		if a.BlockID != b.BlockID {
			return a.BlockID < b.BlockID
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return res, nil
}

// pivot indexes observations per variable by block-period. Duplicate keys
// keep the last value seen; extraction produces at most one row per key.
func pivot(obs []domain.ClimateObservation) map[domain.Variable]map[domain.Period]float64 {
	tables := make(map[domain.Variable]map[domain.Period]float64, len(domain.Variables))
	for _, v := range domain.Variables {
		tables[v] = make(map[domain.Period]float64)
	}
	for _, o := range obs {
		if t, ok := tables[o.Variable]; ok {
			t[o.Key()] = o.Value
		}
	}
	return tables
}

// rollingRain returns the 3-month rainfall sum ending at key's month, or
// nil when either of the two preceding months is missing. A partial sum is
// never emitted.
func rollingRain(rain map[domain.Period]float64, key domain.Period) *float64 {
	sum := rain[key]
	prev := key
	for i := 0; i < 2; i++ {
		prev = prevMonth(prev)
		v, ok := rain[prev]
		if !ok {
			return nil
		}
		sum += v
	}
	return domain.Float64Ptr(sum)
}

// anomaly returns rainfall minus the long-term average for the calendar
// month, or nil when the baseline has no entry for that month.
func anomaly(baseline Baseline, month int, rainfall float64) *float64 {
	lta, ok := baseline[month]
	if !ok {
		return nil
	}
	return domain.Float64Ptr(rainfall - lta)
}

// etRainRatio returns evapotranspiration over rainfall. Zero rainfall
// makes the ratio undefined; it is flagged, never Inf.
func etRainRatio(et, rainfall float64) (float64, bool) {
	if rainfall == 0 {
		return 0, false
	}
	return et / rainfall, true
}

func prevMonth(p domain.Period) domain.Period {
	if p.Month == 1 {
		return domain.Period{BlockID: p.BlockID, Year: p.Year - 1, Month: 12}
	}
	return domain.Period{BlockID: p.BlockID, Year: p.Year, Month: p.Month - 1}
}
