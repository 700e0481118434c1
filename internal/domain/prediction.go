package domain

import (
	"strings"
)

// Feature names as they appear in the feature-range summary table.
const (
	FeaturePayload  = "Payload Weight (tons)"
	FeatureDistance = "Distance from Earth (light-years)"
	FeatureDuration = "Mission Duration (years)"
	FeatureScience  = "Scientific Yield (points)"
	FeatureCrew     = "Crew Size"
	FeatureFuel     = "Fuel Consumption (tons)"

	FeatureMissionType   = "Mission Type"
	FeatureTargetType    = "Target Type"
	FeatureLaunchVehicle = "Launch Vehicle"
)

// FeatureRange is the (min, max) domain of a numeric model input.
type FeatureRange struct {
	Feature string  `json:"feature"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Span returns Max - Min.
func (r FeatureRange) Span() float64 {
	return r.Max - r.Min
}

// Contains reports whether v lies inside the closed interval.
func (r FeatureRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Difficulty selects a preset band.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every tier from narrowest to widest band.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHard}

// ParseDifficulty maps a client label to a Difficulty. Unknown labels map to
// normal and ok is false.
func ParseDifficulty(s string) (d Difficulty, ok bool) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyEasy:
		return DifficultyEasy, true
	case DifficultyNormal:
		return DifficultyNormal, true
	case DifficultyHard:
		return DifficultyHard, true
	}
	return DifficultyNormal, false
}

// Categorical enumerations used by presets and the model.
var (
	MissionTypes   = []string{"Exploration", "Research", "Mining", "Colonization"}
	TargetTypes    = []string{"Planet", "Moon", "Asteroid", "Exoplanet", "Star"}
	LaunchVehicles = []string{"Starship", "Falcon Heavy", "SLS", "Ariane 6"}
)

// MissionInput is the client-facing parameter set for a success prediction.
type MissionInput struct {
	PayloadTons   float64 `json:"payload_tons"`
	MissionType   string  `json:"mission_type"`
	TargetType    string  `json:"target_type"`
	LaunchVehicle string  `json:"launch_vehicle"`
	DistanceLY    float64 `json:"distance_ly"`
	DurationYears float64 `json:"duration_years"`
	SciencePts    float64 `json:"science_pts"`
	CrewSize      int     `json:"crew_size"`
	FuelTons      float64 `json:"fuel_tons"`
	ClampMin      float64 `json:"clamp_min"`
	ClampMax      float64 `json:"clamp_max"`
}

// DefaultMissionInput returns the values used for omitted request fields.
func DefaultMissionInput() MissionInput {
	return MissionInput{
		MissionType:   "Exploration",
		TargetType:    "Planet",
		LaunchVehicle: "Starship",
		DistanceLY:    45.0,
		DurationYears: 12.0,
		SciencePts:    60.0,
		CrewSize:      10,
		FuelTons:      3000.0,
		ClampMin:      0.0,
		ClampMax:      100.0,
	}
}

// Validate checks the lower bounds a client may not cross.
func (m MissionInput) Validate() error {
	switch {
	case m.PayloadTons < 0:
		return invalid("payload_tons must be >= 0")
	case m.DistanceLY < 0:
		return invalid("distance_ly must be >= 0")
	case m.DurationYears < 0:
		return invalid("duration_years must be >= 0")
	case m.SciencePts < 0:
		return invalid("science_pts must be >= 0")
	case m.CrewSize < 1:
		return invalid("crew_size must be >= 1")
	case m.FuelTons < 0:
		return invalid("fuel_tons must be >= 0")
	}
	return nil
}

// Prediction is the result of a single success prediction.
type Prediction struct {
	SuccessRaw     float64        `json:"success_raw"`
	SuccessFinal   float64        `json:"success_final"`
	AppliedPenalty float64        `json:"applied_penalty"`
	IsSuccess      bool           `json:"is_success"`
	FeaturesUsed   map[string]any `json:"features_used"`
}

// Preset is a generated starting parameter set.
type Preset struct {
	Difficulty    Difficulty `json:"difficulty"`
	Seed          uint64     `json:"seed"`
	PayloadTons   float64    `json:"payload_tons"`
	MissionType   string     `json:"mission_type"`
	TargetType    string     `json:"target_type"`
	LaunchVehicle string     `json:"launch_vehicle"`
	DistanceLY    float64    `json:"distance_ly"`
	DurationYears float64    `json:"duration_years"`
	SciencePts    float64    `json:"science_pts"`
	CrewSize      int        `json:"crew_size"`
	FuelTons      float64    `json:"fuel_tons"`
	ClampMin      float64    `json:"clamp_min"`
	ClampMax      float64    `json:"clamp_max"`
}
