// Package api serves the produced risk atlas read-only: the choropleth
// payload, filtered block listings, and per-block detail views.
package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/hydro-risk-atlas/internal/atlas"
	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
	"github.com/couchcryptid/hydro-risk-atlas/internal/store"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

type Handler struct {
	fc   *atlas.FeatureCollection
	byID map[string]atlas.Feature
	repo store.Repository
}

func NewHandler(fc *atlas.FeatureCollection, repo store.Repository) *Handler {
	byID := make(map[string]atlas.Feature, len(fc.Features))
	for _, f := range fc.Features {
		byID[f.Properties.BlockID] = f
	}
	return &Handler{fc: fc, byID: byID, repo: repo}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/atlas", h.getAtlas)
	r.GET("/api/blocks", h.listBlocks)
	r.GET("/api/blocks/:id", h.getBlock)
	r.GET("/api/blocks/:id/trend", h.getBlockTrend)
	r.GET("/api/blocks/:id/export", h.exportBlock)
	r.GET("/healthz", h.health)
}

func (h *Handler) getAtlas(c *gin.Context) {
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, h.fc)
}

// blockSummary is the listing row: everything the choropleth sidebar
// shows without geometry.
type blockSummary struct {
	BlockID        string   `json:"block_id"`
	Block          string   `json:"block"`
	District       string   `json:"district,omitempty"`
	CompoundRisk   float64  `json:"compound_risk"`
	CompoundClass  string   `json:"compound_class"`
	StressSlope    *float64 `json:"stress_slope,omitempty"`
	TrendDirection string   `json:"trend_direction,omitempty"`
}

func (h *Handler) listBlocks(c *gin.Context) {
	limit := defaultLimit
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxLimit {
			limit = lim
		}
	}

	var wantClass string
	if cl := c.Query("classification"); cl != "" {
		switch strings.ToLower(cl) {
		case "critical":
			wantClass = string(domain.ClassificationCritical)
		case "non-critical", "non_critical":
			wantClass = string(domain.ClassificationNonCritical)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown classification %q", cl)})
			return
		}
	}

	var minCompound *float64
	if m := c.Query("min_compound"); m != "" {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_compound must be a number"})
			return
		}
		minCompound = &v
	}

	direction := strings.ToLower(c.Query("direction"))

	summaries := make([]blockSummary, 0, len(h.fc.Features))
	for _, f := range h.fc.Features {
		p := f.Properties
		if wantClass != "" && p.CompoundClass != wantClass {
			continue
		}
		if minCompound != nil && p.CompoundRisk < *minCompound {
			continue
		}
		if direction != "" && strings.ToLower(p.TrendDirection) != direction {
			continue
		}
		summaries = append(summaries, blockSummary{
			BlockID:        p.BlockID,
			Block:          p.Block,
			District:       p.District,
			CompoundRisk:   p.CompoundRisk,
			CompoundClass:  p.CompoundClass,
			StressSlope:    p.StressSlope,
			TrendDirection: p.TrendDirection,
		})
	}

	// Riskiest first, then stable order for equal scores.
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CompoundRisk > summaries[j].CompoundRisk
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}

	c.JSON(http.StatusOK, gin.H{"scored_year": h.fc.ScoredYear, "blocks": summaries})
}

func (h *Handler) getBlock(c *gin.Context) {
	id := c.Param("id")
	f, ok := h.byID[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("block %s not found", id)})
		return
	}

	features, err := h.blockFeatures(c, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load block features"})
		return
	}
	indices, err := h.blockIndices(c, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stress indices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"properties":     f.Properties,
		"stress_indices": indices,
		"features":       features,
	})
}

// getBlockTrend returns the observed annual series alongside the fitted
// line, the dashboard's trend chart data.
func (h *Handler) getBlockTrend(c *gin.Context) {
	id := c.Param("id")
	f, ok := h.byID[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("block %s not found", id)})
		return
	}

	indices, err := h.blockIndices(c, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stress indices"})
		return
	}

	type point struct {
		Year     int      `json:"year"`
		GWStress float64  `json:"gw_stress_index"`
		Fitted   *float64 `json:"fitted,omitempty"`
	}
	series := make([]point, 0, len(indices))
	for _, idx := range indices {
		pt := point{Year: idx.Year, GWStress: idx.GWStress}
		if f.Properties.StressSlope != nil && f.Properties.TrendIntercept != nil {
			pt.Fitted = domain.Float64Ptr(*f.Properties.TrendIntercept + *f.Properties.StressSlope*float64(idx.Year))
		}
		series = append(series, pt)
	}

	c.JSON(http.StatusOK, gin.H{
		"block_id":        id,
		"stress_slope":    f.Properties.StressSlope,
		"trend_r2":        f.Properties.TrendR2,
		"trend_direction": f.Properties.TrendDirection,
		"series":          series,
	})
}

// exportBlock streams the block's fused monthly features as a CSV
// download.
func (h *Handler) exportBlock(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.byID[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("block %s not found", id)})
		return
	}

	features, err := h.blockFeatures(c, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load block features"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", id))

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"block_id", "year", "month", "rainfall", "evapotranspiration", "vegetation_index", "rain_3m", "rain_anomaly", "et_rain_ratio"}) //nolint:errcheck
	for _, row := range features {
		w.Write([]string{ //nolint:errcheck
			row.BlockID,
			strconv.Itoa(row.Year),
			strconv.Itoa(row.Month),
			formatFloat(row.Rainfall),
			formatPtr(row.Evapotranspiration),
			formatPtr(row.VegetationIndex),
			formatPtr(row.Rain3M),
			formatPtr(row.RainAnomaly),
			formatPtr(row.ETRainRatio),
		})
	}
	w.Flush()
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "blocks": len(h.fc.Features)})
}

func (h *Handler) blockFeatures(c *gin.Context, id string) ([]domain.FeatureRow, error) {
	all, err := h.repo.ListFeatures(c.Request.Context())
	if err != nil {
		return nil, err
	}
	var rows []domain.FeatureRow
	for _, r := range all {
		if r.BlockID == id {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (h *Handler) blockIndices(c *gin.Context, id string) ([]domain.StressIndex, error) {
	all, err := h.repo.ListStressIndices(c.Request.Context())
	if err != nil {
		return nil, err
	}
	var out []domain.StressIndex
	for _, idx := range all {
		if idx.BlockID == id {
			out = append(out, idx)
		}
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatPtr renders an undefined value as an empty cell, never 0.
func formatPtr(p *float64) string {
	if p == nil {
		return ""
	}
	return formatFloat(*p)
}
