package model

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/missionctl/orbit/internal/domain"
)

func baseRow() FeatureRow {
	return FeatureRow{
		MissionType:   "Exploration",
		TargetType:    "Planet",
		LaunchVehicle: "Starship",
		DistanceLY:    45,
		DurationYears: 17,
		SciencePts:    45,
		CrewSize:      10,
		FuelTons:      3100,
	}
}

func TestCELModelCompile(t *testing.T) {
	m, err := NewCELModel()
	if err != nil {
		t.Fatalf("failed to create model: %v", err)
	}
	if m.Loaded() {
		t.Error("new model should not be loaded")
	}

	t.Run("LinearExpression", func(t *testing.T) {
		if err := m.Compile("100.0 - distance_ly + double(crew_size)"); err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		got, err := m.Predict(context.Background(), baseRow())
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if got != 65 {
			t.Errorf("expected 65, got %v", got)
		}
	})

	t.Run("IntExpression", func(t *testing.T) {
		if err := m.Compile("crew_size * 2"); err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		got, _ := m.Predict(context.Background(), baseRow())
		if got != 20 {
			t.Errorf("expected 20, got %v", got)
		}
	})

	t.Run("CategoricalBranches", func(t *testing.T) {
		if err := m.Compile(`target_type == "Moon" ? 90.0 : 10.0`); err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		row := baseRow()
		row.TargetType = "Moon"
		got, _ := m.Predict(context.Background(), row)
		if got != 90 {
			t.Errorf("expected 90, got %v", got)
		}
	})

	t.Run("InvalidSyntax", func(t *testing.T) {
		if err := m.Compile("this is not valid CEL !!!"); err == nil {
			t.Error("expected compile error")
		}
	})

	t.Run("NonNumericOutput", func(t *testing.T) {
		if err := m.Compile("distance_ly > 10.0"); err == nil {
			t.Error("expected error for bool output")
		}
	})

	t.Run("UnknownVariable", func(t *testing.T) {
		if err := m.Compile("payload_tons * 2.0"); err == nil {
			t.Error("expected error for undeclared variable")
		}
	})
}

func TestCELModelNonFiniteScore(t *testing.T) {
	m, _ := NewCELModel()
	if err := m.Compile("science_pts / 0.0"); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, err := m.Predict(context.Background(), baseRow()); err == nil {
		t.Error("expected error for infinite score")
	}
}

func TestLoad(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		m := Load(filepath.Join(t.TempDir(), "missing.cel"))
		if m.Loaded() {
			t.Fatal("expected model not loaded")
		}
		_, err := m.Predict(context.Background(), baseRow())
		if !errors.Is(err, domain.ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("InvalidFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.cel")
		if err := os.WriteFile(path, []byte("1 +"), 0o644); err != nil {
			t.Fatal(err)
		}
		if Load(path).Loaded() {
			t.Error("expected model not loaded")
		}
	})

	t.Run("ShippedModel", func(t *testing.T) {
		path := filepath.Join("..", "..", "models", "success.cel")
		m := Load(path)
		if !m.Loaded() {
			t.Fatal("shipped model should compile")
		}
		if m.Source() != path {
			t.Errorf("expected source %q, got %q", path, m.Source())
		}

		score, err := m.Predict(context.Background(), baseRow())
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if math.IsNaN(score) || score <= 0 || score >= 100 {
			t.Errorf("expected a plausible percentage, got %v", score)
		}

		far := baseRow()
		far.DistanceLY = 200
		farScore, _ := m.Predict(context.Background(), far)
		if farScore >= score {
			t.Errorf("expected distance to lower the score: %v >= %v", farScore, score)
		}
	})
}

func TestFunc(t *testing.T) {
	var m Model = Func(func(_ context.Context, row FeatureRow) (float64, error) {
		return row.DistanceLY, nil
	})
	got, err := m.Predict(context.Background(), baseRow())
	if err != nil || got != 45 {
		t.Errorf("expected 45, got %v (%v)", got, err)
	}
}
