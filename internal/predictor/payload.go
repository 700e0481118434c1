package predictor

import "math"

// Payload effect coefficients per tonne.
const (
	DurationPerTonne = 0.10
	SciencePerTonne  = 0.30
	FuelPerTonne     = 2.0
)

// ApplyPayloadEffects folds payload weight into the features the model sees:
// heavier payloads lengthen the mission, burn more fuel and cost science.
// Science never drops below zero. No range clamping happens here.
func ApplyPayloadEffects(payload, duration, science, fuel float64) (durationAdj, scienceAdj, fuelAdj float64) {
	durationAdj = duration + DurationPerTonne*payload
	scienceAdj = math.Max(0, science-SciencePerTonne*payload)
	fuelAdj = fuel + FuelPerTonne*payload
	return durationAdj, scienceAdj, fuelAdj
}
