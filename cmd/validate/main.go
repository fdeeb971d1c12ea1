// Command validate performs integrity checks across a finished run: the
// written atlas against the artifact store. It verifies block coverage,
// score bounds, the critical-count rule, classification consistency, and
// trend presence.
//
// Usage:
//
//	go run ./cmd/validate -atlas data/atlas.geojson -db data/atlas.db -quantile 0.8
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/hydro-risk-atlas/internal/atlas"
	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
	"github.com/couchcryptid/hydro-risk-atlas/internal/store"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	atlasPath := flag.String("atlas", "", "path to the written atlas GeoJSON")
	dbPath := flag.String("db", "", "path to the artifact store")
	quantile := flag.Float64("quantile", 0.8, "critical quantile the run was scored with")
	flag.Parse()

	if *atlasPath == "" || *dbPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	phases, err := validate(*atlasPath, *dbPath, *quantile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate: %v\n", err)
		os.Exit(1)
	}

	failed := false
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			failed = true
		}
		fmt.Printf("[%s] %s\n", status, p.name)
		for _, e := range p.errors {
			fmt.Printf("       %s\n", e)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func validate(atlasPath, dbPath string, quantile float64) ([]*phase, error) {
	fc, err := atlas.Read(atlasPath)
	if err != nil {
		return nil, err
	}

	repo, err := store.NewSQLiteDB(dbPath)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	ctx := context.Background()
	blocks, err := repo.ListBlocks(ctx)
	if err != nil {
		return nil, err
	}
	indices, err := repo.ListStressIndices(ctx)
	if err != nil {
		return nil, err
	}
	features, err := repo.ListFeatures(ctx)
	if err != nil {
		return nil, err
	}

	return []*phase{
		checkCoverage(fc, blocks, indices),
		checkScores(fc, quantile),
		checkTrends(fc, indices),
		checkFeatures(features, blocks),
	}, nil
}

// checkCoverage verifies every atlas feature maps to a stored block and a
// stress index for the scored year, and nothing scored went missing.
func checkCoverage(fc *atlas.FeatureCollection, blocks []domain.Block, indices []domain.StressIndex) *phase {
	p := &phase{name: "atlas coverage"}

	stored := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		stored[b.ID] = true
	}
	indexed := make(map[string]domain.StressIndex)
	for _, idx := range indices {
		if idx.Year == fc.ScoredYear {
			indexed[idx.BlockID] = idx
		}
	}

	seen := make(map[string]bool, len(fc.Features))
	for _, f := range fc.Features {
		id := f.Properties.BlockID
		if seen[id] {
			p.errorf("block %s appears twice in the atlas", id)
		}
		seen[id] = true

		if !stored[id] {
			p.errorf("block %s is in the atlas but not in the store", id)
		}
		idx, ok := indexed[id]
		if !ok {
			p.errorf("block %s has no stored stress index for %d", id, fc.ScoredYear)
			continue
		}
		if f.Properties.FloodPressure != idx.FloodPressure || f.Properties.GWStressIndex != idx.GWStress {
			p.errorf("block %s: atlas indices diverge from store", id)
		}
	}
	for id := range indexed {
		if !seen[id] {
			p.errorf("block %s was scored but is missing from the atlas", id)
		}
	}
	return p
}

// checkScores verifies normalization bounds, the critical-count rule, and
// that every Critical score dominates every Non-critical score.
func checkScores(fc *atlas.FeatureCollection, quantile float64) *phase {
	p := &phase{name: "score bounds and classification"}

	critical := 0
	minCritical := math.Inf(1)
	maxNonCritical := math.Inf(-1)
	for _, f := range fc.Features {
		props := f.Properties
		for name, v := range map[string]float64{
			"normalized_flood": props.NormalizedFlood,
			"normalized_gw":    props.NormalizedGW,
			"compound_risk":    props.CompoundRisk,
		} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
				p.errorf("block %s: %s = %v out of [0,1]", props.BlockID, name, v)
			}
		}

		switch props.CompoundClass {
		case string(domain.ClassificationCritical):
			critical++
			minCritical = math.Min(minCritical, props.CompoundRisk)
		case string(domain.ClassificationNonCritical):
			maxNonCritical = math.Max(maxNonCritical, props.CompoundRisk)
		default:
			p.errorf("block %s: unknown class %q", props.BlockID, props.CompoundClass)
		}
	}

	n := len(fc.Features)
	want := int(math.Ceil((1 - quantile) * float64(n)))
	// Ties at the threshold legitimately push the count above the quota.
	if critical < want {
		p.errorf("critical count %d below ceil(%.2f*%d) = %d", critical, 1-quantile, n, want)
	}
	if critical > 0 && critical < n && minCritical < maxNonCritical {
		p.errorf("critical score %v below non-critical score %v", minCritical, maxNonCritical)
	}
	return p
}

// checkTrends verifies trend fields are present exactly when the store
// holds at least two distinct years for the block.
func checkTrends(fc *atlas.FeatureCollection, indices []domain.StressIndex) *phase {
	p := &phase{name: "trend presence"}

	years := make(map[string]map[int]bool)
	for _, idx := range indices {
		if years[idx.BlockID] == nil {
			years[idx.BlockID] = make(map[int]bool)
		}
		years[idx.BlockID][idx.Year] = true
	}

	for _, f := range fc.Features {
		id := f.Properties.BlockID
		hasTrend := f.Properties.StressSlope != nil
		wantTrend := len(years[id]) >= 2
		if hasTrend && !wantTrend {
			p.errorf("block %s has a trend with %d stored year(s)", id, len(years[id]))
		}
		if !hasTrend && wantTrend {
			p.errorf("block %s has %d stored years but no trend", id, len(years[id]))
		}
		if hasTrend && (f.Properties.TrendIntercept == nil || f.Properties.TrendR2 == nil || f.Properties.TrendDirection == "") {
			p.errorf("block %s has a partial trend record", id)
		}
	}
	return p
}

// checkFeatures verifies stored feature rows reference stored blocks and
// carry no NaN/Inf in defined fields.
func checkFeatures(features []domain.FeatureRow, blocks []domain.Block) *phase {
	p := &phase{name: "feature table integrity"}

	stored := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		stored[b.ID] = true
	}

	for _, row := range features {
		if !stored[row.BlockID] {
			p.errorf("feature row references unknown block %s", row.BlockID)
		}
		for name, v := range map[string]*float64{
			"rainfall":           &row.Rainfall,
			"evapotranspiration": row.Evapotranspiration,
			"vegetation_index":   row.VegetationIndex,
			"rain_3m":            row.Rain3M,
			"rain_anomaly":       row.RainAnomaly,
			"et_rain_ratio":      row.ETRainRatio,
		} {
			if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
				p.errorf("block %s %d-%02d: %s is %v", row.BlockID, row.Year, row.Month, name, *v)
			}
		}
	}
	return p
}
