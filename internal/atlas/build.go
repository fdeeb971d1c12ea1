package atlas

import (
	"fmt"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

// Build assembles the atlas from the latest-year scores, the stress
// indices backing them, and the per-block trends. Every scored block
// must have a boundary; an unknown block ID is a hard error because it
// means the extraction and scoring stages disagree about the universe
// of blocks.
func Build(
	blocks []domain.Block,
	indices []domain.StressIndex,
	scores []domain.CompoundScore,
	trends []domain.TrendResult,
	scoredYear int,
) (*FeatureCollection, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("no scored blocks to export")
	}

	blockByID := make(map[string]domain.Block, len(blocks))
	for _, b := range blocks {
		blockByID[b.ID] = b
	}
	indexByID := make(map[string]domain.StressIndex, len(scores))
	for _, idx := range indices {
		if idx.Year == scoredYear {
			indexByID[idx.BlockID] = idx
		}
	}
	trendByID := make(map[string]domain.TrendResult, len(trends))
	for _, tr := range trends {
		trendByID[tr.BlockID] = tr
	}

	fc := &FeatureCollection{
		Type:        "FeatureCollection",
		GeneratedAt: domain.Timestamp(),
		ScoredYear:  scoredYear,
		Features:    make([]Feature, 0, len(scores)),
	}

	for _, score := range scores {
		block, ok := blockByID[score.BlockID]
		if !ok {
			return nil, fmt.Errorf("scored block %s has no boundary", score.BlockID)
		}
		idx, ok := indexByID[score.BlockID]
		if !ok {
			return nil, fmt.Errorf("scored block %s has no stress index for %d", score.BlockID, scoredYear)
		}

		props := Properties{
			BlockID:         block.ID,
			Block:           block.Name,
			District:        block.District,
			FloodPressure:   idx.FloodPressure,
			GWStressIndex:   idx.GWStress,
			NormalizedFlood: score.NormalizedFlood,
			NormalizedGW:    score.NormalizedGW,
			CompoundRisk:    score.Compound,
			CompoundClass:   string(score.Classification),
		}
		if tr, ok := trendByID[score.BlockID]; ok {
			props.StressSlope = domain.Float64Ptr(tr.Slope)
			props.TrendIntercept = domain.Float64Ptr(tr.Intercept)
			props.TrendR2 = domain.Float64Ptr(tr.RSquared)
			props.TrendDirection = string(tr.Direction)
		}

		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Polygon",
				Coordinates: block.Boundary,
			},
			Properties: props,
		})
	}

	return fc, nil
}
