// Package preset derives difficulty bands from feature ranges and draws
// reproducible mission presets from them.
package preset

import (
	"math"

	"github.com/missionctl/orbit/internal/domain"
)

// Polarity tells which end of a feature's range is easier.
type Polarity int

const (
	// HarderAscending features get harder as the value grows.
	HarderAscending Polarity = iota
	// EasierAscending features get easier as the value grows.
	EasierAscending
)

// PolarityOf returns the polarity of a numeric feature.
func PolarityOf(feature string) Polarity {
	switch feature {
	case domain.FeatureScience, domain.FeatureCrew:
		return EasierAscending
	default:
		return HarderAscending
	}
}

// Fractions are the shares of a range covered by the easy and normal bands.
type Fractions struct {
	Easy   float64
	Normal float64
}

// DefaultFractions are used when none are configured.
var DefaultFractions = Fractions{Easy: 0.25, Normal: 0.65}

// Normalize bounds both fractions to [0, 1] and orders them so that
// Easy <= Normal. NaN counts as 0.
func (f Fractions) Normalize() Fractions {
	e, n := unit(f.Easy), unit(f.Normal)
	if e > n {
		e, n = n, e
	}
	return Fractions{Easy: e, Normal: n}
}

func unit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Band returns the [lo, hi] sub-interval of r for a difficulty. Bands nest:
// easy within normal within hard, and hard is the whole range. Harder
// ascending features anchor bands at the minimum, easier ascending at the
// maximum. Unknown difficulties get the normal band.
func Band(r domain.FeatureRange, d domain.Difficulty, p Polarity, f Fractions) (lo, hi float64) {
	lo, hi = r.Min, r.Max
	if lo > hi {
		lo, hi = hi, lo
	}
	f = f.Normalize()

	var frac float64
	switch d {
	case domain.DifficultyEasy:
		frac = f.Easy
	case domain.DifficultyHard:
		return lo, hi
	default:
		frac = f.Normal
	}

	width := frac * (hi - lo)
	if p == EasierAscending {
		return math.Max(lo, hi-width), hi
	}
	return lo, math.Min(hi, lo+width)
}
