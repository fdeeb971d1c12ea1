package model

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Importance is one feature's contribution to model fit: the increase in
// mean squared error when the feature's column is shuffled.
type Importance struct {
	Feature     string
	MSEIncrease float64
}

// PermutationImportance ranks features globally: each column is shuffled
// in turn (with a seeded source, so runs are reproducible) and the growth
// in MSE over the unshuffled baseline is recorded. Results are sorted
// most important first.
func PermutationImportance(f *Fitted, ds Dataset, seed int64) []Importance {
	rng := rand.New(rand.NewSource(seed))
	baseline := meanSquaredError(f, ds.Features, ds.Targets)

	n := len(ds.Features)
	out := make([]Importance, 0, len(f.Spec.Features))
	for j, name := range f.Spec.Features {
		shuffled := make([][]float64, n)
		for i, row := range ds.Features {
			cp := make([]float64, len(row))
			copy(cp, row)
			shuffled[i] = cp
		}
		perm := rng.Perm(n)
		for i, src := range perm {
			shuffled[i][j] = ds.Features[src][j]
		}
		out = append(out, Importance{
			Feature:     name,
			MSEIncrease: meanSquaredError(f, shuffled, ds.Targets) - baseline,
		})
	}

	sort.Slice(out, func(a, b int) bool { return out[a].MSEIncrease > out[b].MSEIncrease })
	return out
}

// Contribution is one feature's share of a single prediction's deviation
// from the dataset-mean prediction.
type Contribution struct {
	Feature string
	Value   float64
}

// Contributions attributes one prediction to its features: for a linear
// model, feature j contributes coef_j * (x_j - mean_j) relative to the
// prediction at the dataset means. The contributions plus the mean
// prediction sum exactly to Predict(row).
func Contributions(f *Fitted, ds Dataset, row []float64) []Contribution {
	means := make([]float64, len(f.Spec.Features))
	if n := len(ds.Features); n > 0 {
		for j := range means {
			var sum float64
			for _, r := range ds.Features {
				sum += r[j]
			}
			means[j] = sum / float64(n)
		}
	}

	out := make([]Contribution, len(f.Spec.Features))
	for j, name := range f.Spec.Features {
		out[j] = Contribution{
			Feature: name,
			Value:   f.Coeffs[j+1] * (row[j] - means[j]),
		}
	}
	return out
}

func meanSquaredError(f *Fitted, rows [][]float64, targets []float64) float64 {
	var sum float64
	for i, row := range rows {
		resid := targets[i] - f.Predict(row)
		sum += resid * resid
	}
	return sum / float64(len(rows))
}

// TippingPoint locates the value of one feature at which the predicted
// stress, holding the other features at their dataset means, crosses the
// given quantile of the model's own predictions. It reports false when
// the crossing lies outside the feature's observed range.
func TippingPoint(f *Fitted, ds Dataset, feature string, quantile float64) (float64, bool) {
	j := -1
	for idx, name := range f.Spec.Features {
		if name == feature {
			j = idx
			break
		}
	}
	if j < 0 || len(ds.Features) == 0 {
		return 0, false
	}

	coef := f.Coeffs[j+1]
	if coef == 0 {
		return 0, false
	}

	preds := make([]float64, len(ds.Features))
	for i, row := range ds.Features {
		preds[i] = f.Predict(row)
	}
	sort.Float64s(preds)
	threshold := stat.Quantile(quantile, stat.Empirical, preds, nil)

	// Prediction at the means with feature j free:
	//   pred(v) = base + coef*v, base = intercept + sum_k!=j coef_k * mean_k
	base := f.Coeffs[0]
	lo, hi := ds.Features[0][j], ds.Features[0][j]
	for k := range f.Spec.Features {
		if k == j {
			continue
		}
		var sum float64
		for _, row := range ds.Features {
			sum += row[k]
		}
		base += f.Coeffs[k+1] * sum / float64(len(ds.Features))
	}
	for _, row := range ds.Features {
		if row[j] < lo {
			lo = row[j]
		}
		if row[j] > hi {
			hi = row[j]
		}
	}

	crossing := (threshold - base) / coef
	if crossing < lo || crossing > hi {
		return 0, false
	}
	return crossing, true
}
