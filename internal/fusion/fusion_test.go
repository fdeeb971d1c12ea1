package fusion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/hydro-risk-atlas/internal/config"
	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obsRow(block string, year, month int, v domain.Variable, value float64) domain.ClimateObservation {
	return domain.ClimateObservation{BlockID: block, Year: year, Month: month, Variable: v, Value: value}
}

// completeHistory builds aligned rainfall/ET/NDVI observations for one
// block across the given months of 2023.
func completeHistory(block string, months []int, rain []float64) []domain.ClimateObservation {
	var obs []domain.ClimateObservation
	for i, m := range months {
		obs = append(obs,
			obsRow(block, 2023, m, domain.VariableRainfall, rain[i]),
			obsRow(block, 2023, m, domain.VariableEvapotranspiration, 50),
			obsRow(block, 2023, m, domain.VariableVegetationIndex, 0.6),
		)
	}
	return obs
}

func flatBaseline(v float64) Baseline {
	b := make(Baseline, 12)
	for m := 1; m <= 12; m++ {
		b[m] = v
	}
	return b
}

func findRow(t *testing.T, rows []domain.FeatureRow, block string, year, month int) domain.FeatureRow {
	t.Helper()
	for _, r := range rows {
		if r.BlockID == block && r.Year == year && r.Month == month {
			return r
		}
	}
	t.Fatalf("no fused row for %s %d-%02d", block, year, month)
	return domain.FeatureRow{}
}

func TestFuse_RollingRain(t *testing.T) {
	obs := completeHistory("BLK001", []int{1, 2, 3, 4}, []float64{10, 20, 30, 40})

	res, err := Fuse(obs, flatBaseline(25), config.JoinDrop)
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)

	march := findRow(t, res.Rows, "BLK001", 2023, 3)
	require.NotNil(t, march.Rain3M)
	assert.Equal(t, 60.0, *march.Rain3M, "rain_3m(M) = rain(M)+rain(M-1)+rain(M-2)")

	april := findRow(t, res.Rows, "BLK001", 2023, 4)
	require.NotNil(t, april.Rain3M)
	assert.Equal(t, 90.0, *april.Rain3M)

	// Fewer than 2 prior months: undefined, never a partial sum.
	jan := findRow(t, res.Rows, "BLK001", 2023, 1)
	assert.Nil(t, jan.Rain3M)
	feb := findRow(t, res.Rows, "BLK001", 2023, 2)
	assert.Nil(t, feb.Rain3M)
}

func TestFuse_RollingRainAcrossYearBoundary(t *testing.T) {
	obs := []domain.ClimateObservation{
		obsRow("BLK001", 2022, 11, domain.VariableRainfall, 5),
		obsRow("BLK001", 2022, 12, domain.VariableRainfall, 7),
	}
	obs = append(obs, completeHistory("BLK001", []int{1}, []float64{10})...)

	res, err := Fuse(obs, flatBaseline(0), config.JoinDrop)
	require.NoError(t, err)

	jan := findRow(t, res.Rows, "BLK001", 2023, 1)
	require.NotNil(t, jan.Rain3M)
	assert.Equal(t, 22.0, *jan.Rain3M)
}

func TestFuse_RollingRainGapInHistory(t *testing.T) {
	// February missing from the rainfall table: both March (needs Feb,
	// Jan) and April (needs Mar, Feb) lose their rolling sum.
	obs := completeHistory("BLK001", []int{1, 3, 4}, []float64{10, 30, 40})

	res, err := Fuse(obs, flatBaseline(0), config.JoinDrop)
	require.NoError(t, err)

	march := findRow(t, res.Rows, "BLK001", 2023, 3)
	assert.Nil(t, march.Rain3M, "gap at M-1 leaves rolling sum undefined")
	april := findRow(t, res.Rows, "BLK001", 2023, 4)
	assert.Nil(t, april.Rain3M, "gap at M-2 leaves rolling sum undefined")
}

func TestFuse_RainAnomaly(t *testing.T) {
	obs := completeHistory("BLK001", []int{6}, []float64{80})
	baseline := Baseline{6: 65}

	res, err := Fuse(obs, baseline, config.JoinDrop)
	require.NoError(t, err)

	row := findRow(t, res.Rows, "BLK001", 2023, 6)
	require.NotNil(t, row.RainAnomaly)
	assert.Equal(t, 15.0, *row.RainAnomaly)
}

func TestFuse_AnomalyUndefinedWithoutBaselineMonth(t *testing.T) {
	obs := completeHistory("BLK001", []int{6}, []float64{80})

	res, err := Fuse(obs, Baseline{7: 65}, config.JoinDrop)
	require.NoError(t, err)

	row := findRow(t, res.Rows, "BLK001", 2023, 6)
	assert.Nil(t, row.RainAnomaly)
}

func TestFuse_ETRainRatio(t *testing.T) {
	obs := completeHistory("BLK001", []int{6}, []float64{100})

	res, err := Fuse(obs, flatBaseline(0), config.JoinDrop)
	require.NoError(t, err)

	row := findRow(t, res.Rows, "BLK001", 2023, 6)
	require.NotNil(t, row.ETRainRatio)
	assert.Equal(t, 0.5, *row.ETRainRatio)
	assert.Zero(t, res.UndefinedRatios)
}

func TestFuse_ZeroRainfallFlagsRatioUndefined(t *testing.T) {
	obs := completeHistory("BLK001", []int{6}, []float64{0})

	res, err := Fuse(obs, flatBaseline(0), config.JoinDrop)
	require.NoError(t, err)

	row := findRow(t, res.Rows, "BLK001", 2023, 6)
	assert.Nil(t, row.ETRainRatio, "ratio must be flagged undefined, not Inf")
	assert.Equal(t, 1, res.UndefinedRatios)
}

func TestFuse_DropPolicyExcludesMismatches(t *testing.T) {
	obs := completeHistory("BLK001", []int{6}, []float64{100})
	// July has rainfall but no ET/NDVI.
	obs = append(obs, obsRow("BLK001", 2023, 7, domain.VariableRainfall, 50))

	res, err := Fuse(obs, flatBaseline(0), config.JoinDrop)
	require.NoError(t, err)

	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.JoinMismatches)
}

func TestFuse_FillPolicyKeepsRainfallAnchor(t *testing.T) {
	obs := completeHistory("BLK001", []int{6}, []float64{100})
	obs = append(obs, obsRow("BLK001", 2023, 7, domain.VariableRainfall, 50))

	res, err := Fuse(obs, flatBaseline(0), config.JoinFill)
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	july := findRow(t, res.Rows, "BLK001", 2023, 7)
	assert.Nil(t, july.Evapotranspiration)
	assert.Nil(t, july.VegetationIndex)
	assert.Nil(t, july.ETRainRatio, "missing ET leaves the ratio undefined, not zero")
	assert.Equal(t, 1, res.JoinMismatches)
}

func TestFuse_CountsSecondaryOnlyMismatches(t *testing.T) {
	obs := completeHistory("BLK001", []int{6}, []float64{100})
	// August has ET but no rainfall anchor.
	obs = append(obs, obsRow("BLK001", 2023, 8, domain.VariableEvapotranspiration, 55))

	res, err := Fuse(obs, flatBaseline(0), config.JoinDrop)
	require.NoError(t, err)

	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.JoinMismatches)
}

func TestFuse_EmptySourceTableFails(t *testing.T) {
	obs := []domain.ClimateObservation{
		obsRow("BLK001", 2023, 6, domain.VariableRainfall, 100),
		obsRow("BLK001", 2023, 6, domain.VariableVegetationIndex, 0.6),
	}

	_, err := Fuse(obs, flatBaseline(0), config.JoinDrop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evapotranspiration table is empty")
}

func TestFuse_RowsSortedChronologically(t *testing.T) {
	obs := completeHistory("BLK002", []int{2, 1}, []float64{20, 10})
	obs = append(obs, completeHistory("BLK001", []int{1}, []float64{5})...)

	res, err := Fuse(obs, flatBaseline(0), config.JoinDrop)
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, "BLK001", res.Rows[0].BlockID)
	assert.Equal(t, 1, res.Rows[1].Month)
	assert.Equal(t, 2, res.Rows[2].Month)
}

func TestLoadBaseline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lta.csv")
	content := "month,rainfall\n1,12.5\n6,180\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	b, err := LoadBaseline(path)
	require.NoError(t, err)
	assert.Equal(t, 12.5, b[1])
	assert.Equal(t, 180.0, b[6])
}

func TestLoadBaseline_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no rows", "month,rainfall\n"},
		{"bad header", "mon,mm\n1,12\n"},
		{"month out of range", "month,rainfall\n0,12\n"},
		{"duplicate month", "month,rainfall\n3,10\n3,11\n"},
		{"bad value", "month,rainfall\n3,wet\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lta.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadBaseline(path)
			require.Error(t, err)
		})
	}
}
