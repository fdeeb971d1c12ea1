package remote

import (
	"context"
	"fmt"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

// Aggregation selects the temporal reduction applied to a month of scenes.
type Aggregation string

const (
	// AggregationMean averages valid scene values across the month.
	AggregationMean Aggregation = "mean"
	// AggregationSum totals daily values across the calendar month.
	// Rainfall uses this: monthly rainfall is a sum of daily values, not
	// a monthly composite scene.
	AggregationSum Aggregation = "sum"
)

// YearMonth bounds a query's date range (inclusive).
type YearMonth struct {
	Year  int
	Month int
}

// Before reports whether ym precedes other chronologically.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// Query describes one declarative extraction against the remote platform:
// which variable, over which months, at which spatial resolution, with
// which scene filters. Remote execution stays opaque behind Extractor.
type Query struct {
	Variable       domain.Variable
	Start          YearMonth
	End            YearMonth
	ResolutionM    int
	ScaleFactor    float64 // published band scale factor, applied after aggregation
	CloudThreshold float64 // percent; scenes above it are excluded where metadata exists
	Aggregation    Aggregation
}

// Validate checks the query is well-formed before it reaches the platform.
func (q Query) Validate() error {
	if !q.Variable.Valid() {
		return fmt.Errorf("unknown variable: %q", q.Variable)
	}
	if q.End.Before(q.Start) {
		return fmt.Errorf("query range ends (%d-%02d) before it starts (%d-%02d)",
			q.End.Year, q.End.Month, q.Start.Year, q.Start.Month)
	}
	if q.ResolutionM <= 0 {
		return fmt.Errorf("resolution must be positive: %d", q.ResolutionM)
	}
	if q.ScaleFactor == 0 {
		return fmt.Errorf("scale factor must be non-zero")
	}
	return nil
}

// fingerprint produces a stable cache key component for the query.
func (q Query) fingerprint() string {
	return fmt.Sprintf("%s|%d-%02d|%d-%02d|%dm|%g|%g|%s",
		q.Variable, q.Start.Year, q.Start.Month, q.End.Year, q.End.Month,
		q.ResolutionM, q.ScaleFactor, q.CloudThreshold, q.Aggregation)
}

// DefaultQueries returns the standard per-variable extraction queries:
// vegetation index at 10 m (scale 0.0001), evapotranspiration at 500 m
// (scale 0.1), rainfall at 5000 m as a calendar-month sum of daily values.
func DefaultQueries(start, end YearMonth, cloudThreshold float64) []Query {
	return []Query{
		{
			Variable:       domain.VariableRainfall,
			Start:          start,
			End:            end,
			ResolutionM:    5000,
			ScaleFactor:    1,
			CloudThreshold: cloudThreshold,
			Aggregation:    AggregationSum,
		},
		{
			Variable:       domain.VariableEvapotranspiration,
			Start:          start,
			End:            end,
			ResolutionM:    500,
			ScaleFactor:    0.1,
			CloudThreshold: cloudThreshold,
			Aggregation:    AggregationMean,
		},
		{
			Variable:       domain.VariableVegetationIndex,
			Start:          start,
			End:            end,
			ResolutionM:    10,
			ScaleFactor:    0.0001,
			CloudThreshold: cloudThreshold,
			Aggregation:    AggregationMean,
		},
	}
}

// Extractor maps (block set, query) to a per-block-period table. A
// block-period with no valid scenes is absent from the result, never
// interpolated.
type Extractor interface {
	Extract(ctx context.Context, blocks []domain.Block, q Query) ([]domain.ClimateObservation, error)
}
