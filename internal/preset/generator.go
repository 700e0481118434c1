package preset

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/missionctl/orbit/internal/domain"
	"github.com/missionctl/orbit/internal/metrics"
	"github.com/missionctl/orbit/internal/ranges"
)

// maxSeed keeps generated seeds exactly representable as JSON numbers.
const maxSeed = 1<<53 - 1

// Generator draws mission presets inside difficulty bands.
type Generator struct {
	table     *ranges.Table
	fractions Fractions
	metrics   *metrics.Manager
}

// NewGenerator creates a preset generator. m may be nil.
func NewGenerator(table *ranges.Table, cfg domain.PresetConfig, m *metrics.Manager) *Generator {
	if table == nil {
		table = ranges.New()
	}
	return &Generator{
		table:     table,
		fractions: Fractions{Easy: cfg.EasyFraction, Normal: cfg.NormalFraction}.Normalize(),
		metrics:   m,
	}
}

// Fractions returns the normalized band fractions in use.
func (g *Generator) Fractions() Fractions {
	return g.fractions
}

// Generate draws a preset for a difficulty label. The same (difficulty, seed)
// always yields the same preset. When seed is nil a random one is generated
// and returned in the preset so the draw can be replayed.
func (g *Generator) Generate(difficulty string, seed *uint64) (domain.Preset, error) {
	d, ok := domain.ParseDifficulty(difficulty)
	g.metrics.RecordPreset(string(d), !ok)

	var s uint64
	if seed != nil {
		s = *seed
	} else {
		var err error
		if s, err = NewSeed(); err != nil {
			return domain.Preset{}, err
		}
	}

	rng := rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))

	p := domain.Preset{
		Difficulty: d,
		Seed:       s,
		ClampMin:   0,
		ClampMax:   100,
	}

	// Draw order is part of the replay contract.
	p.PayloadTons = g.draw(rng, domain.FeaturePayload, d, 1)
	p.MissionType = pick(rng, domain.MissionTypes)
	p.TargetType = pick(rng, domain.TargetTypes)
	p.LaunchVehicle = pick(rng, domain.LaunchVehicles)
	p.DistanceLY = g.draw(rng, domain.FeatureDistance, d, 1)
	p.DurationYears = g.draw(rng, domain.FeatureDuration, d, 1)
	p.SciencePts = g.draw(rng, domain.FeatureScience, d, 1)
	p.CrewSize = g.drawInt(rng, domain.FeatureCrew, d)
	p.FuelTons = g.draw(rng, domain.FeatureFuel, d, 0)

	return p, nil
}

// BandFor returns the band of feature for difficulty d.
func (g *Generator) BandFor(feature string, d domain.Difficulty) (lo, hi float64) {
	r, fallback := g.table.RangeOrDefault(feature)
	if fallback {
		g.metrics.RecordRangeFallback(feature)
	}
	return Band(r, d, PolarityOf(feature), g.fractions)
}

func (g *Generator) draw(rng *rand.Rand, feature string, d domain.Difficulty, decimals int) float64 {
	lo, hi := g.BandFor(feature, d)
	v := lo
	if hi > lo {
		v = lo + rng.Float64()*(hi-lo)
	}
	return roundWithin(v, lo, hi, decimals)
}

func (g *Generator) drawInt(rng *rand.Rand, feature string, d domain.Difficulty) int {
	lo, hi := g.BandFor(feature, d)
	a, b := int(math.Ceil(lo)), int(math.Floor(hi))
	if a > b {
		// no integer inside the band
		return int(math.Round((lo + hi) / 2))
	}
	return a + rng.IntN(b-a+1)
}

func pick(rng *rand.Rand, choices []string) string {
	return choices[rng.IntN(len(choices))]
}

// roundWithin rounds v to decimals places without leaving [lo, hi]. If no
// value at that precision fits, v is returned unrounded.
func roundWithin(v, lo, hi float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	r := math.Round(v*scale) / scale
	switch {
	case r < lo:
		r = math.Ceil(lo*scale) / scale
	case r > hi:
		r = math.Floor(hi*scale) / scale
	}
	if r < lo || r > hi {
		return v
	}
	return r
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]) & maxSeed, nil
}
