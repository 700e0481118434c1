package mission

import (
	"context"
	"math/rand/v2"

	"github.com/missionctl/orbit/internal/domain"
	"github.com/missionctl/orbit/internal/predictor"
)

// OutcomeResolver decides how an elapsed mission ends.
type OutcomeResolver interface {
	Resolve(ctx context.Context, m domain.Mission, um *domain.UserMission) (domain.MissionStatus, error)
}

// ResolverFunc adapts a function to OutcomeResolver.
type ResolverFunc func(ctx context.Context, m domain.Mission, um *domain.UserMission) (domain.MissionStatus, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, m domain.Mission, um *domain.UserMission) (domain.MissionStatus, error) {
	return f(ctx, m, um)
}

// Fixed always resolves to status.
func Fixed(status domain.MissionStatus) OutcomeResolver {
	return ResolverFunc(func(context.Context, domain.Mission, *domain.UserMission) (domain.MissionStatus, error) {
		return status, nil
	})
}

// baselineFuelTons is the fuel burn of a mission with no fuel investment.
// Each unit invested saves fuelPerInvest tonnes.
const (
	baselineFuelTons = 3000.0
	fuelPerInvest    = 10.0
)

// PredictiveResolver rolls each mission against its predicted success rate.
// The roll is seeded by the row, so the same mission always resolves the
// same way.
type PredictiveResolver struct {
	predictor *predictor.Predictor
}

// NewPredictiveResolver creates a resolver backed by p.
func NewPredictiveResolver(p *predictor.Predictor) *PredictiveResolver {
	return &PredictiveResolver{predictor: p}
}

// Input maps a catalog mission and an investment mix to model input.
func Input(m domain.Mission, fuel, crew, research int64) domain.MissionInput {
	in := domain.DefaultMissionInput()
	in.PayloadTons = 0
	in.DistanceLY = float64(m.Distance)
	in.DurationYears = float64(m.Duration)
	in.SciencePts = float64(research)
	in.CrewSize = int(max(1, crew))
	in.FuelTons = max(0, baselineFuelTons-fuelPerInvest*float64(fuel))
	if m.Target == "Moon" {
		in.TargetType = "Moon"
	} else {
		in.TargetType = "Planet"
	}
	return in
}

// Rate returns the success_final a mission with this mix is rolled against.
func (r *PredictiveResolver) Rate(ctx context.Context, m domain.Mission, fuel, crew, research int64) domain.Prediction {
	return r.predictor.Predict(ctx, Input(m, fuel, crew, research))
}

// Resolve returns SUCCESS iff the row's roll·100 < success_final.
func (r *PredictiveResolver) Resolve(ctx context.Context, m domain.Mission, um *domain.UserMission) (domain.MissionStatus, error) {
	p := r.Rate(ctx, m, um.FuelInvest, um.CrewInvest, um.ResearchInvest)
	if roll(um)*100 < p.SuccessFinal {
		return domain.StatusSuccess, nil
	}
	return domain.StatusFailure, nil
}

func roll(um *domain.UserMission) float64 {
	rng := rand.New(rand.NewPCG(uint64(um.ID), uint64(um.StartTime.UnixNano())))
	return rng.Float64()
}
