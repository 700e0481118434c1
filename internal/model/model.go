// Package model provides the predictive success-rate model behind a narrow
// interface. The production model is a CEL expression loaded from disk.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/missionctl/orbit/internal/domain"
)

// FeatureRow is one engineered model input.
type FeatureRow struct {
	MissionType   string
	TargetType    string
	LaunchVehicle string
	DistanceLY    float64
	DurationYears float64
	SciencePts    float64
	CrewSize      int
	FuelTons      float64
}

// Model scores a feature row. The score is a raw success percentage.
type Model interface {
	Predict(ctx context.Context, row FeatureRow) (float64, error)
}

// Func adapts a function to Model.
type Func func(ctx context.Context, row FeatureRow) (float64, error)

// Predict calls f.
func (f Func) Predict(ctx context.Context, row FeatureRow) (float64, error) {
	return f(ctx, row)
}

// CELModel evaluates a compiled CEL expression over a feature row.
type CELModel struct {
	mu      sync.RWMutex
	env     *cel.Env
	program cel.Program
	source  string
}

// NewCELModel creates an empty model with the feature variables declared.
func NewCELModel() (*CELModel, error) {
	env, err := cel.NewEnv(
		cel.Variable("mission_type", cel.StringType),
		cel.Variable("target_type", cel.StringType),
		cel.Variable("launch_vehicle", cel.StringType),
		cel.Variable("distance_ly", cel.DoubleType),
		cel.Variable("duration_years", cel.DoubleType),
		cel.Variable("science_pts", cel.DoubleType),
		cel.Variable("crew_size", cel.IntType),
		cel.Variable("fuel_tons", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CELModel{env: env}, nil
}

// Load reads and compiles the model at path. It never fails: on any error a
// warning is logged and the returned model reports Loaded() == false.
func Load(path string) *CELModel {
	m, err := NewCELModel()
	if err != nil {
		slog.Warn("could not create model environment", "error", err)
		return &CELModel{}
	}
	if err := m.LoadFile(path); err != nil {
		slog.Warn("could not load model", "path", path, "error", err)
		return m
	}
	slog.Info("model loaded", "path", path)
	return m
}

// LoadFile compiles the expression stored at path and swaps it in.
func (m *CELModel) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	if err := m.Compile(string(b)); err != nil {
		return err
	}
	m.mu.Lock()
	m.source = path
	m.mu.Unlock()
	return nil
}

// Compile compiles expr and swaps it in. The expression must return a
// double or an int.
func (m *CELModel) Compile(expr string) error {
	if m.env == nil {
		return errors.New("model environment not initialized")
	}

	ast, issues := m.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("failed to compile model: %w", issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.DoubleType && outputType != cel.IntType {
		return fmt.Errorf("model expression must return int or double, got %s", outputType)
	}

	program, err := m.env.Program(ast)
	if err != nil {
		return fmt.Errorf("failed to create model program: %w", err)
	}

	m.mu.Lock()
	m.program = program
	m.mu.Unlock()
	return nil
}

// Loaded reports whether a compiled expression is available.
func (m *CELModel) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.program != nil
}

// Source returns the path the current expression was loaded from.
func (m *CELModel) Source() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.source
}

// Predict evaluates the expression. Returns ErrModelUnavailable when no
// expression is loaded.
func (m *CELModel) Predict(ctx context.Context, row FeatureRow) (float64, error) {
	m.mu.RLock()
	program := m.program
	m.mu.RUnlock()

	if program == nil {
		return 0, domain.ErrModelUnavailable
	}

	activation := map[string]any{
		"mission_type":   row.MissionType,
		"target_type":    row.TargetType,
		"launch_vehicle": row.LaunchVehicle,
		"distance_ly":    row.DistanceLY,
		"duration_years": row.DurationYears,
		"science_pts":    row.SciencePts,
		"crew_size":      int64(row.CrewSize),
		"fuel_tons":      row.FuelTons,
	}

	out, _, err := program.ContextEval(ctx, activation)
	if err != nil {
		return 0, fmt.Errorf("evaluation error: %w", err)
	}

	score, ok := toScore(out)
	if !ok || math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("model returned non-numeric score %v", out)
	}
	return score, nil
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) (float64, bool) {
	switch v := val.(type) {
	case types.Double:
		return float64(v), true
	case types.Int:
		return float64(v), true
	default:
		return 0, false
	}
}
