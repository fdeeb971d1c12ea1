// Package domain models per-block hydro-climatic observations and the
// derived risk records built from them.
//
// # Data Source
//
// Climate observations are spatial reductions of hosted satellite image
// collections, one value per administrative block per calendar month:
//
//	rainfall             5000 m  calendar-month sum of daily precipitation
//	evapotranspiration    500 m  monthly mean, published scale factor 0.1
//	vegetation_index       10 m  monthly mean (250 m fallback sensor),
//	                             published scale factor 0.0001
//
// Scenes with more than the configured cloud-cover fraction are excluded
// where per-scene cloud metadata exists. A block-period with no valid
// scenes is absent from the extracted table, never interpolated.
//
// # Derived features
//
// Fusion joins the three variable tables on (block_id, year, month) and
// derives, per block in chronological order:
//
//	rain_3m        rolling 3-month rainfall sum ending at the month;
//	               undefined when fewer than 2 prior months exist
//	rain_anomaly   rainfall minus the long-term-average baseline for the
//	               calendar month (external reference table)
//	et_rain_ratio  evapotranspiration / rainfall; undefined when the
//	               month's rainfall is zero
//
// Undefined values are nil pointers, never 0, NaN, or Inf. Downstream
// model fitting skips rows with undefined inputs.
//
// # Risk records
//
// Two regressors (flood pressure, groundwater stress) score the fused
// table; annual indices are per-block-year means of the model scores.
// Compound scoring min-max normalizes both indices across blocks, combines
// them with configured weights, and labels the top quantile Critical. The
// degradation rate is the OLS slope of the annual groundwater stress index
// against year; blocks with fewer than two distinct years are excluded
// from trend output.
package domain
