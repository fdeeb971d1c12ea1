package atlas

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

type boundaryProperties struct {
	BlockID  string `json:"block_id"`
	Block    string `json:"block"`
	District string `json:"district"`
}

type boundaryFeature struct {
	Type       string             `json:"type"`
	Geometry   Geometry           `json:"geometry"`
	Properties boundaryProperties `json:"properties"`
}

type boundaryCollection struct {
	Type     string            `json:"type"`
	Features []boundaryFeature `json:"features"`
}

// LoadBoundaries reads the input block boundaries file. Every feature
// must be a Polygon with a non-empty block_id; duplicate IDs are
// rejected because the ID is the join key for the whole pipeline.
func LoadBoundaries(path string) ([]domain.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}

	var fc boundaryCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode boundaries: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("unexpected GeoJSON type %q", fc.Type)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("boundaries file %s has no features", path)
	}

	seen := make(map[string]bool, len(fc.Features))
	blocks := make([]domain.Block, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Properties.BlockID == "" {
			return nil, fmt.Errorf("feature %d is missing block_id", i)
		}
		if f.Geometry.Type != "Polygon" {
			return nil, fmt.Errorf("block %s: unsupported geometry %q", f.Properties.BlockID, f.Geometry.Type)
		}
		if len(f.Geometry.Coordinates) == 0 || len(f.Geometry.Coordinates[0]) < 4 {
			return nil, fmt.Errorf("block %s: polygon has no valid exterior ring", f.Properties.BlockID)
		}
		if seen[f.Properties.BlockID] {
			return nil, fmt.Errorf("duplicate block_id %s", f.Properties.BlockID)
		}
		seen[f.Properties.BlockID] = true

		blocks = append(blocks, domain.Block{
			ID:       f.Properties.BlockID,
			Name:     f.Properties.Block,
			District: f.Properties.District,
			Boundary: f.Geometry.Coordinates,
		})
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })
	return blocks, nil
}
