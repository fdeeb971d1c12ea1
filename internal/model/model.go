// Package model fits the two stress regressors over the fused feature
// table and provides the attribution analysis used to locate non-linear
// risk thresholds.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Feature names, matching the fused table columns.
const (
	FeatureRain3M             = "rain_3m"
	FeatureRainAnomaly        = "rain_anomaly"
	FeatureVegetationIndex    = "vegetation_index"
	FeatureEvapotranspiration = "evapotranspiration"
	FeatureRainfall           = "rainfall"
	FeatureETRainRatio        = "et_rain_ratio"
)

// Model names used in logs, metrics, and diagnostics.
const (
	NameFloodPressure     = "flood_pressure"
	NameGroundwaterStress = "groundwater_stress"
)

// Spec declares a regressor: its name and the feature columns it consumes.
type Spec struct {
	Name     string
	Features []string
}

// FloodSpec is the flood-pressure regressor: short-horizon rainfall load
// and vegetation state against a flood-extent proxy.
func FloodSpec() Spec {
	return Spec{
		Name:     NameFloodPressure,
		Features: []string{FeatureRain3M, FeatureRainAnomaly, FeatureVegetationIndex},
	}
}

// GWSpec is the groundwater-stress regressor: water balance terms against
// a satellite-gravimetry groundwater proxy.
func GWSpec() Spec {
	return Spec{
		Name:     NameGroundwaterStress,
		Features: []string{FeatureEvapotranspiration, FeatureRainfall, FeatureETRainRatio},
	}
}

// Dataset is a design matrix plus targets. Rows correspond one-to-one:
// Features[i] are the predictor values for Targets[i].
type Dataset struct {
	Features [][]float64
	Targets  []float64
}

// Fitted is a trained regressor. Coeffs[0] is the intercept; Coeffs[1:]
// align with Spec.Features.
type Fitted struct {
	Spec     Spec
	Coeffs   []float64
	RSquared float64
}

// Fit trains an ordinary-least-squares regressor on the dataset.
func Fit(spec Spec, ds Dataset) (*Fitted, error) {
	n := len(ds.Targets)
	p := len(spec.Features)
	if n != len(ds.Features) {
		return nil, fmt.Errorf("fit %s: %d feature rows for %d targets", spec.Name, len(ds.Features), n)
	}
	if n < p+2 {
		return nil, fmt.Errorf("fit %s: %d rows is too few for %d features", spec.Name, n, p)
	}

	x := mat.NewDense(n, p+1, nil)
	for i, row := range ds.Features {
		if len(row) != p {
			return nil, fmt.Errorf("fit %s: row %d has %d features, want %d", spec.Name, i, len(row), p)
		}
		x.Set(i, 0, 1)
		for j, v := range row {
			x.Set(i, j+1, v)
		}
	}
	y := mat.NewVecDense(n, ds.Targets)

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return nil, fmt.Errorf("fit %s: solve least squares: %w", spec.Name, err)
	}

	f := &Fitted{Spec: spec, Coeffs: make([]float64, p+1)}
	for j := 0; j <= p; j++ {
		f.Coeffs[j] = beta.AtVec(j)
	}

	mean := stat.Mean(ds.Targets, nil)
	var ssr, sst float64
	for i, row := range ds.Features {
		resid := ds.Targets[i] - f.Predict(row)
		ssr += resid * resid
		dev := ds.Targets[i] - mean
		sst += dev * dev
	}
	if sst == 0 {
		return nil, fmt.Errorf("fit %s: target is constant, fit is meaningless", spec.Name)
	}
	f.RSquared = 1 - ssr/sst
	return f, nil
}

// Predict scores one feature row.
func (f *Fitted) Predict(row []float64) float64 {
	pred := f.Coeffs[0]
	for j, v := range row {
		pred += f.Coeffs[j+1] * v
	}
	return pred
}

// QualityError reports a model whose fit did not reach the acceptance
// bound. Its scores must not flow downstream.
type QualityError struct {
	Model    string
	RSquared float64
	Bound    float64
}

func (e *QualityError) Error() string {
	return fmt.Sprintf("model %s: R-squared %.4f below acceptance bound %.2f; refusing to publish low-confidence scores",
		e.Model, e.RSquared, e.Bound)
}

// CheckQuality returns a QualityError when the fit is below the bound.
func (f *Fitted) CheckQuality(bound float64) error {
	if f.RSquared < bound {
		return &QualityError{Model: f.Spec.Name, RSquared: f.RSquared, Bound: bound}
	}
	return nil
}
