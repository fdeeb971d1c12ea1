package model

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

// Targets maps a block-period to its training target value (flood-extent
// proxy or groundwater proxy).
type Targets map[domain.Period]float64

// LoadTargets reads a proxy target table: CSV columns
// block_id,year,month,value with strict integer keys.
func LoadTargets(path string) (Targets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("targets %s has no data rows", path)
	}
	header := records[0]
	if len(header) != 4 || header[0] != "block_id" || header[1] != "year" || header[2] != "month" || header[3] != "value" {
		return nil, fmt.Errorf("targets %s: unexpected header %v", path, header)
	}

	targets := make(Targets, len(records)-1)
	for i, rec := range records[1:] {
		year, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("targets %s row %d: non-integer year %q", path, i+2, rec[1])
		}
		month, err := strconv.Atoi(rec[2])
		if err != nil || month < 1 || month > 12 {
			return nil, fmt.Errorf("targets %s row %d: invalid month %q", path, i+2, rec[2])
		}
		value, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("targets %s row %d: invalid value %q", path, i+2, rec[3])
		}
		targets[domain.Period{BlockID: rec[0], Year: year, Month: month}] = value
	}
	return targets, nil
}

// featureValue extracts one named feature from a fused row, reporting
// whether it is defined.
func featureValue(row domain.FeatureRow, name string) (float64, bool) {
	switch name {
	case FeatureRainfall:
		return row.Rainfall, true
	case FeatureEvapotranspiration:
		return deref(row.Evapotranspiration)
	case FeatureVegetationIndex:
		return deref(row.VegetationIndex)
	case FeatureRain3M:
		return deref(row.Rain3M)
	case FeatureRainAnomaly:
		return deref(row.RainAnomaly)
	case FeatureETRainRatio:
		return deref(row.ETRainRatio)
	}
	return 0, false
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// BuildDataset pairs fused rows with training targets for one model's
// feature set. Rows with any undefined feature or no matching target are
// excluded; undefined values never reach the regressor.
func BuildDataset(spec Spec, rows []domain.FeatureRow, targets Targets) Dataset {
	ds := Dataset{}
	for _, row := range rows {
		target, ok := targets[row.Key()]
		if !ok {
			continue
		}
		vec, ok := featureVector(spec, row)
		if !ok {
			continue
		}
		ds.Features = append(ds.Features, vec)
		ds.Targets = append(ds.Targets, target)
	}
	return ds
}

func featureVector(spec Spec, row domain.FeatureRow) ([]float64, bool) {
	vec := make([]float64, len(spec.Features))
	for j, name := range spec.Features {
		v, ok := featureValue(row, name)
		if !ok {
			return nil, false
		}
		vec[j] = v
	}
	return vec, true
}

// AnnualIndices scores every fused row both models can evaluate and
// averages per block-year. A block-year appears only when both models
// scored at least one of its rows.
func AnnualIndices(flood, gw *Fitted, rows []domain.FeatureRow) []domain.StressIndex {
	type yearKey struct {
		blockID string
		year    int
	}
	type acc struct {
		sum   float64
		count int
	}
	floodAcc := make(map[yearKey]*acc)
	gwAcc := make(map[yearKey]*acc)

	score := func(f *Fitted, row domain.FeatureRow, m map[yearKey]*acc) {
		vec, ok := featureVector(f.Spec, row)
		if !ok {
			return
		}
		k := yearKey{blockID: row.BlockID, year: row.Year}
		a := m[k]
		if a == nil {
			a = &acc{}
			m[k] = a
		}
		a.sum += f.Predict(vec)
		a.count++
	}

	for _, row := range rows {
		score(flood, row, floodAcc)
		score(gw, row, gwAcc)
	}

	var out []domain.StressIndex
	for k, fa := range floodAcc {
		ga, ok := gwAcc[k]
		if !ok {
			continue
		}
		out = append(out, domain.StressIndex{
			BlockID:       k.blockID,
			Year:          k.year,
			FloodPressure: fa.sum / float64(fa.count),
			GWStress:      ga.sum / float64(ga.count),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockID != out[j].BlockID {
			return out[i].BlockID < out[j].BlockID
		}
		return out[i].Year < out[j].Year
	})
	return out
}
