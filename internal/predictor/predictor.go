// Package predictor turns mission parameters into a success prediction:
// range clamping, payload effects, model inference, payload penalty and the
// final clamp and threshold.
package predictor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/missionctl/orbit/internal/domain"
	"github.com/missionctl/orbit/internal/metrics"
	"github.com/missionctl/orbit/internal/model"
	"github.com/missionctl/orbit/internal/ranges"
)

var tracer = otel.Tracer("github.com/missionctl/orbit/internal/predictor")

// Prediction outcomes as reported to metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeDegraded = "degraded"
)

// Predictor computes success predictions. Safe for concurrent use.
type Predictor struct {
	model   model.Model
	table   *ranges.Table
	cfg     domain.PredictionConfig
	cache   domain.Cache
	metrics *metrics.Manager
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithCache caches non-degraded predictions for cfg.CacheTTL.
func WithCache(c domain.Cache) Option {
	return func(p *Predictor) {
		p.cache = c
	}
}

// WithMetrics records prediction metrics on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Predictor) {
		p.metrics = m
	}
}

// New creates a predictor. A nil model runs in degraded mode.
func New(m model.Model, table *ranges.Table, cfg domain.PredictionConfig, opts ...Option) *Predictor {
	if table == nil {
		table = ranges.New()
	}
	p := &Predictor{
		model: m,
		table: table,
		cfg:   cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ModelLoaded reports whether the model can serve predictions.
func (p *Predictor) ModelLoaded() bool {
	if p.model == nil {
		return false
	}
	if l, ok := p.model.(interface{ Loaded() bool }); ok {
		return l.Loaded()
	}
	return true
}

// Ranges returns the feature range table in use.
func (p *Predictor) Ranges() *ranges.Table {
	return p.table
}

// Config returns the prediction policy in use.
func (p *Predictor) Config() domain.PredictionConfig {
	return p.cfg
}

// Predict never fails. When the model is unavailable or errors the zero
// prediction is returned with an "error" entry in FeaturesUsed.
func (p *Predictor) Predict(ctx context.Context, in domain.MissionInput) domain.Prediction {
	ctx, span := tracer.Start(ctx, "predictor.Predict")
	defer span.End()

	key := fingerprint(in, p.cfg)
	if cached := p.cached(ctx, key); cached != nil {
		span.SetAttributes(attribute.Bool("prediction.cached", true))
		return *cached
	}

	payload := in.PayloadTons
	distance := in.DistanceLY
	duration := in.DurationYears
	science := in.SciencePts
	crew := in.CrewSize
	fuel := in.FuelTons

	if p.cfg.ClampInputs {
		payload = p.clamp(domain.FeaturePayload, payload)
		distance = p.clamp(domain.FeatureDistance, distance)
		duration = p.clamp(domain.FeatureDuration, duration)
		science = p.clamp(domain.FeatureScience, science)
		crew = int(math.Round(p.clamp(domain.FeatureCrew, float64(crew))))
		fuel = p.clamp(domain.FeatureFuel, fuel)
	}

	durAdj, sciAdj, fuelAdj := ApplyPayloadEffects(payload, duration, science, fuel)

	row := model.FeatureRow{
		MissionType:   in.MissionType,
		TargetType:    in.TargetType,
		LaunchVehicle: in.LaunchVehicle,
		DistanceLY:    distance,
		DurationYears: durAdj,
		SciencePts:    sciAdj,
		CrewSize:      crew,
		FuelTons:      fuelAdj,
	}

	if !p.ModelLoaded() {
		return p.degraded(domain.ErrModelUnavailable)
	}

	start := time.Now()
	raw, err := p.model.Predict(ctx, row)
	p.metrics.ObserveModelLatency(time.Since(start))
	if err != nil {
		span.RecordError(err)
		slog.Warn("model evaluation failed", "error", err)
		return p.degraded(err)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		err := fmt.Errorf("model returned non-finite score %v", raw)
		span.RecordError(err)
		slog.Warn("model evaluation failed", "error", err)
		return p.degraded(err)
	}

	penalty := p.cfg.PenaltyRate * payload
	final := clamp(raw-penalty, in.ClampMin, in.ClampMax)

	out := domain.Prediction{
		SuccessRaw:     round4(raw),
		SuccessFinal:   round4(final),
		AppliedPenalty: round4(penalty),
		IsSuccess:      final >= p.cfg.Threshold,
		FeaturesUsed:   featuresUsed(row),
	}

	if out.IsSuccess {
		p.metrics.RecordPrediction(OutcomeSuccess)
	} else {
		p.metrics.RecordPrediction(OutcomeFailure)
	}
	span.SetAttributes(
		attribute.Float64("prediction.success_final", out.SuccessFinal),
		attribute.Bool("prediction.is_success", out.IsSuccess),
	)

	p.store(ctx, key, &out)
	return out
}

func (p *Predictor) clamp(feature string, v float64) float64 {
	r, fallback := p.table.RangeOrDefault(feature)
	if fallback {
		p.metrics.RecordRangeFallback(feature)
	}
	return clamp(v, r.Min, r.Max)
}

func (p *Predictor) degraded(err error) domain.Prediction {
	p.metrics.RecordPrediction(OutcomeDegraded)
	return domain.Prediction{
		FeaturesUsed: map[string]any{"error": err.Error()},
	}
}

func (p *Predictor) cached(ctx context.Context, key string) *domain.Prediction {
	if p.cache == nil || p.cfg.CacheTTL <= 0 {
		return nil
	}
	cached, err := p.cache.GetPrediction(ctx, key)
	if err != nil {
		slog.Debug("prediction cache read failed", "error", err)
		return nil
	}
	if cached != nil {
		p.metrics.RecordPredictionCacheHit()
	}
	return cached
}

func (p *Predictor) store(ctx context.Context, key string, out *domain.Prediction) {
	if p.cache == nil || p.cfg.CacheTTL <= 0 {
		return
	}
	if err := p.cache.SetPrediction(ctx, key, out, p.cfg.CacheTTL); err != nil {
		slog.Debug("prediction cache write failed", "error", err)
	}
}

func featuresUsed(row model.FeatureRow) map[string]any {
	return map[string]any{
		domain.FeatureMissionType:   row.MissionType,
		domain.FeatureTargetType:    row.TargetType,
		domain.FeatureLaunchVehicle: row.LaunchVehicle,
		domain.FeatureDistance:      row.DistanceLY,
		domain.FeatureDuration:      row.DurationYears,
		domain.FeatureScience:       row.SciencePts,
		domain.FeatureCrew:          row.CrewSize,
		domain.FeatureFuel:          row.FuelTons,
	}
}

// fingerprint identifies an input under a prediction policy for caching.
func fingerprint(in domain.MissionInput, cfg domain.PredictionConfig) string {
	b, _ := json.Marshal(struct {
		Input       domain.MissionInput `json:"input"`
		Threshold   float64             `json:"threshold"`
		PenaltyRate float64             `json:"penalty_rate"`
		ClampInputs bool                `json:"clamp_inputs"`
	}{in, cfg.Threshold, cfg.PenaltyRate, cfg.ClampInputs})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// clamp bounds v to [lo, hi], swapping reversed bounds.
func clamp(v, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
