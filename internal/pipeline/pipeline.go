// Package pipeline orchestrates the batch run: extract, fuse, model,
// score, export. Each stage consumes one complete upstream artifact,
// persists its own, and aborts loudly when a required input is entirely
// absent.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/hydro-risk-atlas/internal/adapter/remote"
	"github.com/couchcryptid/hydro-risk-atlas/internal/atlas"
	"github.com/couchcryptid/hydro-risk-atlas/internal/composite"
	"github.com/couchcryptid/hydro-risk-atlas/internal/config"
	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
	"github.com/couchcryptid/hydro-risk-atlas/internal/fusion"
	"github.com/couchcryptid/hydro-risk-atlas/internal/model"
	"github.com/couchcryptid/hydro-risk-atlas/internal/observability"
	"github.com/couchcryptid/hydro-risk-atlas/internal/store"
)

// importanceSeed fixes the permutation shuffles so two runs over the same
// inputs report the same feature ranking.
const importanceSeed = 1

// Publisher emits one event per scored block after export.
type Publisher interface {
	PublishScores(ctx context.Context, scores []domain.CompoundScore, trends []domain.TrendResult) error
}

// Pipeline runs the batch stages in order against a shared artifact store.
type Pipeline struct {
	cfg       *config.Config
	extractor remote.Extractor
	repo      store.Repository
	publisher Publisher // nil when publishing is disabled
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(cfg *config.Config, extractor remote.Extractor, repo store.Repository, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		extractor: extractor,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a full run has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes one complete batch run.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline starting",
		"boundaries", p.cfg.BoundariesPath,
		"join_policy", p.cfg.JoinPolicy,
		"publish", p.cfg.PublishEnabled(),
	)

	var (
		blocks []domain.Block
		obs    []domain.ClimateObservation
		rows   []domain.FeatureRow
		annual []domain.StressIndex
		scores []domain.CompoundScore
		trends composite.TrendOutcome
	)

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"extract", func(ctx context.Context) error {
			var err error
			blocks, obs, err = p.extract(ctx)
			return err
		}},
		{"fuse", func(ctx context.Context) error {
			var err error
			rows, err = p.fuse(ctx, obs)
			return err
		}},
		{"model", func(ctx context.Context) error {
			var err error
			annual, err = p.model(ctx, rows)
			return err
		}},
		{"score", func(ctx context.Context) error {
			var err error
			scores, trends, err = p.score(annual)
			return err
		}},
		{"export", func(ctx context.Context) error {
			return p.export(ctx, blocks, annual, scores, trends)
		}},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := stage.run(ctx); err != nil {
			return fmt.Errorf("%s stage: %w", stage.name, err)
		}
		elapsed := time.Since(start)
		p.metrics.StageDuration.WithLabelValues(stage.name).Observe(elapsed.Seconds())
		p.logger.Info("stage complete", "stage", stage.name, "duration", elapsed)
	}

	p.ready.Store(true)
	p.logger.Info("pipeline complete", "blocks_scored", len(scores))
	return nil
}

// extract resolves the block universe and pulls every variable table over
// the configured window. A block-period with no valid scenes is simply
// absent; an entirely empty run is an error.
func (p *Pipeline) extract(ctx context.Context) ([]domain.Block, []domain.ClimateObservation, error) {
	blocks, err := atlas.LoadBoundaries(p.cfg.BoundariesPath)
	if err != nil {
		return nil, nil, err
	}
	if err := p.repo.SaveBlocks(ctx, blocks); err != nil {
		return nil, nil, fmt.Errorf("save blocks: %w", err)
	}

	start, err := config.ParseYearMonth(p.cfg.ExtractStart)
	if err != nil {
		return nil, nil, fmt.Errorf("extract start: %w", err)
	}
	end, err := config.ParseYearMonth(p.cfg.ExtractEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("extract end: %w", err)
	}

	queries := remote.DefaultQueries(
		remote.YearMonth{Year: start.Year, Month: start.Month},
		remote.YearMonth{Year: end.Year, Month: end.Month},
		p.cfg.CloudThreshold,
	)

	var obs []domain.ClimateObservation
	for _, q := range queries {
		batch, err := p.extractor.Extract(ctx, blocks, q)
		if err != nil {
			return nil, nil, fmt.Errorf("extract %s: %w", q.Variable, err)
		}
		p.metrics.ObservationsExtracted.WithLabelValues(string(q.Variable)).Add(float64(len(batch)))
		p.logger.Info("variable extracted", "variable", q.Variable, "observations", len(batch))
		obs = append(obs, batch...)
	}
	if len(obs) == 0 {
		return nil, nil, errors.New("no observations extracted")
	}

	if err := p.repo.SaveObservations(ctx, obs); err != nil {
		return nil, nil, fmt.Errorf("save observations: %w", err)
	}
	return blocks, obs, nil
}

func (p *Pipeline) fuse(ctx context.Context, obs []domain.ClimateObservation) ([]domain.FeatureRow, error) {
	baseline, err := fusion.LoadBaseline(p.cfg.BaselinePath)
	if err != nil {
		return nil, err
	}

	result, err := fusion.Fuse(obs, baseline, p.cfg.JoinPolicy)
	if err != nil {
		return nil, err
	}
	p.metrics.RowsFused.Add(float64(len(result.Rows)))
	p.metrics.JoinMismatches.Add(float64(result.JoinMismatches))
	p.metrics.UndefinedRatios.Add(float64(result.UndefinedRatios))
	if result.JoinMismatches > 0 {
		p.logger.Warn("fusion dropped or filled mismatched block-periods",
			"mismatches", result.JoinMismatches, "policy", p.cfg.JoinPolicy)
	}

	if err := p.repo.SaveFeatures(ctx, result.Rows); err != nil {
		return nil, fmt.Errorf("save features: %w", err)
	}
	return result.Rows, nil
}

// model fits both regressors, enforces the quality gate, and reduces
// monthly predictions to annual per-block indices.
func (p *Pipeline) model(ctx context.Context, rows []domain.FeatureRow) ([]domain.StressIndex, error) {
	flood, err := p.fitModel(model.FloodSpec(), rows, p.cfg.FloodTargetsPath)
	if err != nil {
		return nil, err
	}
	gw, err := p.fitModel(model.GWSpec(), rows, p.cfg.GWTargetsPath)
	if err != nil {
		return nil, err
	}

	annual := model.AnnualIndices(flood, gw, rows)
	if len(annual) == 0 {
		return nil, errors.New("no block-year has predictions from both models")
	}
	if err := p.repo.SaveStressIndices(ctx, annual); err != nil {
		return nil, fmt.Errorf("save stress indices: %w", err)
	}
	return annual, nil
}

func (p *Pipeline) fitModel(spec model.Spec, rows []domain.FeatureRow, targetsPath string) (*model.Fitted, error) {
	targets, err := model.LoadTargets(targetsPath)
	if err != nil {
		return nil, fmt.Errorf("%s targets: %w", spec.Name, err)
	}

	ds := model.BuildDataset(spec, rows, targets)
	fitted, err := model.Fit(spec, ds)
	if err != nil {
		return nil, err
	}
	p.metrics.ModelRSquared.WithLabelValues(spec.Name).Set(fitted.RSquared)
	if err := fitted.CheckQuality(p.cfg.MinRSquared); err != nil {
		return nil, err
	}

	for _, imp := range model.PermutationImportance(fitted, ds, importanceSeed) {
		p.logger.Info("feature importance",
			"model", spec.Name, "feature", imp.Feature, "mse_increase", imp.MSEIncrease)
	}
	if tip, ok := model.TippingPoint(fitted, ds, spec.Features[0], p.cfg.CriticalQuantile); ok {
		p.logger.Info("tipping point",
			"model", spec.Name, "feature", spec.Features[0], "value", tip)
	}

	p.logger.Info("model fitted", "model", spec.Name, "r_squared", fitted.RSquared, "rows", len(ds.Targets))
	return fitted, nil
}

func (p *Pipeline) score(annual []domain.StressIndex) ([]domain.CompoundScore, composite.TrendOutcome, error) {
	weights := composite.Weights{Flood: p.cfg.FloodWeight, GW: p.cfg.GWWeight}
	scores, err := composite.ScoreLatest(annual, weights, p.cfg.CriticalQuantile)
	if err != nil {
		return nil, composite.TrendOutcome{}, err
	}
	p.metrics.BlocksScored.Add(float64(len(scores)))
	for _, s := range scores {
		label := "non_critical"
		if s.Classification == domain.ClassificationCritical {
			label = "critical"
		}
		p.metrics.Classified.WithLabelValues(label).Inc()
	}

	trends := composite.Trends(annual, p.cfg.TrendEpsilon)
	p.metrics.TrendsComputed.Add(float64(len(trends.Results)))
	p.metrics.TrendsSkipped.Add(float64(trends.Skipped))
	if trends.Skipped > 0 {
		p.logger.Warn("blocks excluded from trend fitting", "skipped", trends.Skipped)
	}
	return scores, trends, nil
}

func (p *Pipeline) export(ctx context.Context, blocks []domain.Block, annual []domain.StressIndex, scores []domain.CompoundScore, trends composite.TrendOutcome) error {
	year := composite.LatestYear(annual)
	fc, err := atlas.Build(blocks, annual, scores, trends.Results, year)
	if err != nil {
		return err
	}
	if err := atlas.Write(p.cfg.AtlasPath, fc); err != nil {
		return err
	}
	p.logger.Info("atlas written", "path", p.cfg.AtlasPath, "features", len(fc.Features), "year", year)

	if p.publisher == nil {
		return nil
	}
	if err := p.publisher.PublishScores(ctx, scores, trends.Results); err != nil {
		return fmt.Errorf("publish scores: %w", err)
	}
	p.metrics.EventsPublished.Add(float64(len(scores)))
	return nil
}
