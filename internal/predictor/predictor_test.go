package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/missionctl/orbit/internal/cache"
	"github.com/missionctl/orbit/internal/domain"
	"github.com/missionctl/orbit/internal/metrics"
	"github.com/missionctl/orbit/internal/model"
	"github.com/missionctl/orbit/internal/ranges"
)

func testConfig() domain.PredictionConfig {
	return domain.PredictionConfig{
		Threshold:   80,
		PenaltyRate: 0.4,
		ClampInputs: true,
	}
}

// fixedModel returns raw and records the last row it saw.
func fixedModel(raw float64, seen *model.FeatureRow, calls *atomic.Int64) model.Model {
	return model.Func(func(_ context.Context, row model.FeatureRow) (float64, error) {
		if seen != nil {
			*seen = row
		}
		if calls != nil {
			calls.Add(1)
		}
		return raw, nil
	})
}

func input(payload float64) domain.MissionInput {
	in := domain.DefaultMissionInput()
	in.PayloadTons = payload
	return in
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyPayloadEffects(t *testing.T) {
	dur, sci, fuel := ApplyPayloadEffects(50, 12, 60, 3000)
	if !almostEqual(dur, 17) || !almostEqual(sci, 45) || !almostEqual(fuel, 3100) {
		t.Errorf("expected (17, 45, 3100), got (%v, %v, %v)", dur, sci, fuel)
	}

	t.Run("ScienceFloor", func(t *testing.T) {
		_, sci, _ := ApplyPayloadEffects(80, 10, 5, 1000)
		if sci != 0 {
			t.Errorf("expected science floored at 0, got %v", sci)
		}
	})

	t.Run("ZeroPayload", func(t *testing.T) {
		dur, sci, fuel := ApplyPayloadEffects(0, 12, 60, 3000)
		if dur != 12 || sci != 60 || fuel != 3000 {
			t.Errorf("expected unchanged features, got (%v, %v, %v)", dur, sci, fuel)
		}
	})
}

func TestPredict(t *testing.T) {
	ctx := context.Background()
	table := ranges.New()

	t.Run("PenaltyApplied", func(t *testing.T) {
		p := New(fixedModel(85, nil, nil), table, testConfig())
		out := p.Predict(ctx, input(50))

		if out.AppliedPenalty != 20 {
			t.Errorf("expected penalty 20, got %v", out.AppliedPenalty)
		}
		if out.SuccessRaw != 85 {
			t.Errorf("expected raw 85, got %v", out.SuccessRaw)
		}
		if out.SuccessFinal != 65 {
			t.Errorf("expected final 65, got %v", out.SuccessFinal)
		}
		if out.IsSuccess {
			t.Error("65 should be below the success threshold")
		}
	})

	t.Run("FinalClampedForHugeScores", func(t *testing.T) {
		for _, raw := range []float64{1e9, -1e9} {
			p := New(fixedModel(raw, nil, nil), table, testConfig())
			out := p.Predict(ctx, input(10))
			if out.SuccessFinal < 0 || out.SuccessFinal > 100 {
				t.Errorf("raw %v: final %v escaped [0, 100]", raw, out.SuccessFinal)
			}
		}
	})

	t.Run("ReversedClampBounds", func(t *testing.T) {
		p := New(fixedModel(500, nil, nil), table, testConfig())
		in := input(10)
		in.ClampMin, in.ClampMax = 90, 10
		out := p.Predict(ctx, in)
		if out.SuccessFinal != 90 {
			t.Errorf("expected swapped bounds to cap at 90, got %v", out.SuccessFinal)
		}
	})

	t.Run("ThresholdInclusive", func(t *testing.T) {
		p := New(fixedModel(84, nil, nil), table, testConfig())
		out := p.Predict(ctx, input(10))
		if out.SuccessFinal != 80 || !out.IsSuccess {
			t.Errorf("expected final 80 to be a success, got %+v", out)
		}
	})

	t.Run("InputsClampedBeforeEffects", func(t *testing.T) {
		var seen model.FeatureRow
		p := New(fixedModel(50, &seen, nil), table, testConfig())

		in := input(500)
		in.DistanceLY = 1000
		in.CrewSize = 1
		in.FuelTons = 0
		out := p.Predict(ctx, in)

		if seen.DistanceLY != 200 {
			t.Errorf("expected distance clamped to 200, got %v", seen.DistanceLY)
		}
		if seen.CrewSize != 4 {
			t.Errorf("expected crew clamped to 4, got %d", seen.CrewSize)
		}
		// payload clamped to 80 before the fuel effect
		if !almostEqual(seen.FuelTons, 1000+2*80) {
			t.Errorf("expected fuel 1160, got %v", seen.FuelTons)
		}
		if out.AppliedPenalty != 32 {
			t.Errorf("expected penalty on clamped payload, got %v", out.AppliedPenalty)
		}
		if out.FeaturesUsed[domain.FeatureCrew] != 4 {
			t.Errorf("expected features_used crew 4, got %v", out.FeaturesUsed[domain.FeatureCrew])
		}
		if table.Fallbacks() == 0 {
			t.Error("expected empty table to count fallbacks")
		}
	})

	t.Run("ClampingDisabled", func(t *testing.T) {
		var seen model.FeatureRow
		cfg := testConfig()
		cfg.ClampInputs = false
		p := New(fixedModel(50, &seen, nil), table, cfg)

		in := input(0)
		in.DistanceLY = 1000
		p.Predict(ctx, in)

		if seen.DistanceLY != 1000 {
			t.Errorf("expected raw distance, got %v", seen.DistanceLY)
		}
	})

	t.Run("CategoricalsPassThrough", func(t *testing.T) {
		var seen model.FeatureRow
		p := New(fixedModel(50, &seen, nil), table, testConfig())
		in := input(10)
		in.MissionType, in.TargetType, in.LaunchVehicle = "Mining", "Asteroid", "SLS"
		p.Predict(ctx, in)

		if seen.MissionType != "Mining" || seen.TargetType != "Asteroid" || seen.LaunchVehicle != "SLS" {
			t.Errorf("unexpected categoricals: %+v", seen)
		}
	})

	t.Run("RoundedToFourDecimals", func(t *testing.T) {
		p := New(fixedModel(70.123456789, nil, nil), table, testConfig())
		out := p.Predict(ctx, input(0))
		if out.SuccessRaw != 70.1235 {
			t.Errorf("expected 70.1235, got %v", out.SuccessRaw)
		}
	})
}

func TestPredictDegraded(t *testing.T) {
	ctx := context.Background()

	check := func(t *testing.T, out domain.Prediction) {
		t.Helper()
		if out.SuccessRaw != 0 || out.SuccessFinal != 0 || out.AppliedPenalty != 0 || out.IsSuccess {
			t.Errorf("expected zero prediction, got %+v", out)
		}
		if _, ok := out.FeaturesUsed["error"]; !ok {
			t.Errorf("expected error entry, got %v", out.FeaturesUsed)
		}
	}

	t.Run("NilModel", func(t *testing.T) {
		p := New(nil, nil, testConfig())
		if p.ModelLoaded() {
			t.Error("nil model should not be loaded")
		}
		check(t, p.Predict(ctx, input(10)))
	})

	t.Run("UnloadedCELModel", func(t *testing.T) {
		m, err := model.NewCELModel()
		if err != nil {
			t.Fatal(err)
		}
		p := New(m, nil, testConfig())
		if p.ModelLoaded() {
			t.Error("empty CEL model should not be loaded")
		}
		check(t, p.Predict(ctx, input(10)))
	})

	t.Run("ModelError", func(t *testing.T) {
		var calls atomic.Int64
		failing := model.Func(func(context.Context, model.FeatureRow) (float64, error) {
			calls.Add(1)
			return 0, errors.New("boom")
		})
		cfg := testConfig()
		cfg.CacheTTL = time.Minute
		p := New(failing, nil, cfg, WithCache(cache.NewLRUCache(10)))

		check(t, p.Predict(ctx, input(10)))
		check(t, p.Predict(ctx, input(10)))
		if calls.Load() != 2 {
			t.Errorf("degraded results must not be cached, model called %d times", calls.Load())
		}
	})

	t.Run("NonFiniteScore", func(t *testing.T) {
		for _, raw := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			p := New(fixedModel(raw, nil, nil), ranges.New(), testConfig())
			out := p.Predict(ctx, input(50))
			check(t, out)
			if _, err := json.Marshal(out); err != nil {
				t.Errorf("score %v: prediction must encode, got %v", raw, err)
			}
		}
	})
}

func TestPredictCache(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64

	cfg := testConfig()
	cfg.CacheTTL = time.Minute
	m := metrics.NewManager()
	p := New(fixedModel(85, nil, &calls), nil, cfg, WithCache(cache.NewLRUCache(10)), WithMetrics(m))

	first := p.Predict(ctx, input(50))
	second := p.Predict(ctx, input(50))
	if calls.Load() != 1 {
		t.Errorf("expected one model call, got %d", calls.Load())
	}
	if first.SuccessFinal != second.SuccessFinal || second.AppliedPenalty != 20 {
		t.Errorf("cached prediction differs: %+v vs %+v", first, second)
	}

	p.Predict(ctx, input(51))
	if calls.Load() != 2 {
		t.Errorf("a different input must miss the cache, got %d calls", calls.Load())
	}

	t.Run("DisabledWithZeroTTL", func(t *testing.T) {
		var n atomic.Int64
		cfg := testConfig()
		p := New(fixedModel(85, nil, &n), nil, cfg, WithCache(cache.NewLRUCache(10)))
		p.Predict(ctx, input(50))
		p.Predict(ctx, input(50))
		if n.Load() != 2 {
			t.Errorf("expected caching disabled, got %d calls", n.Load())
		}
	})
}

func TestModelLoaded(t *testing.T) {
	p := New(fixedModel(1, nil, nil), nil, testConfig())
	if !p.ModelLoaded() {
		t.Error("a model without Loaded() is treated as loaded")
	}
}
