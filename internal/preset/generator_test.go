package preset

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/missionctl/orbit/internal/domain"
	"github.com/missionctl/orbit/internal/metrics"
	"github.com/missionctl/orbit/internal/ranges"
)

func newTestGenerator() *Generator {
	rs := make([]domain.FeatureRange, 0, len(ranges.DefaultRanges))
	for _, r := range ranges.DefaultRanges {
		rs = append(rs, r)
	}
	cfg := domain.PresetConfig{EasyFraction: 0.25, NormalFraction: 0.65}
	return NewGenerator(ranges.New(rs...), cfg, metrics.NewManager())
}

func TestGenerateDeterminism(t *testing.T) {
	Convey("Given a generator", t, func() {
		g := newTestGenerator()

		Convey("The same difficulty and seed give the same preset", func() {
			for _, d := range []string{"easy", "normal", "hard"} {
				for seed := uint64(0); seed < 50; seed++ {
					s := seed
					a, err := g.Generate(d, &s)
					So(err, ShouldBeNil)
					b, err := g.Generate(d, &s)
					So(err, ShouldBeNil)
					So(a, ShouldResemble, b)
				}
			}
		})

		Convey("Different seeds usually give different presets", func() {
			s1, s2 := uint64(1), uint64(2)
			a, _ := g.Generate("hard", &s1)
			b, _ := g.Generate("hard", &s2)
			So(a, ShouldNotResemble, b)
		})

		Convey("A generated seed replays the same preset", func() {
			a, err := g.Generate("easy", nil)
			So(err, ShouldBeNil)
			So(a.Seed, ShouldBeLessThanOrEqualTo, uint64(maxSeed))

			seed := a.Seed
			b, err := g.Generate("easy", &seed)
			So(err, ShouldBeNil)
			So(b, ShouldResemble, a)
		})
	})
}

func TestGenerateWithinBands(t *testing.T) {
	Convey("Given a generator", t, func() {
		g := newTestGenerator()

		for _, d := range domain.Difficulties {
			Convey("Every "+string(d)+" draw stays inside its band", func() {
				for seed := uint64(0); seed < 200; seed++ {
					s := seed
					p, err := g.Generate(string(d), &s)
					So(err, ShouldBeNil)
					So(p.Difficulty, ShouldEqual, d)

					checks := map[string]float64{
						domain.FeaturePayload:  p.PayloadTons,
						domain.FeatureDistance: p.DistanceLY,
						domain.FeatureDuration: p.DurationYears,
						domain.FeatureScience:  p.SciencePts,
						domain.FeatureCrew:     float64(p.CrewSize),
						domain.FeatureFuel:     p.FuelTons,
					}
					for feature, v := range checks {
						lo, hi := g.BandFor(feature, d)
						So(v, ShouldBeBetweenOrEqual, lo, hi)
					}

					So(domain.MissionTypes, ShouldContain, p.MissionType)
					So(domain.TargetTypes, ShouldContain, p.TargetType)
					So(domain.LaunchVehicles, ShouldContain, p.LaunchVehicle)
					So(p.ClampMin, ShouldEqual, 0)
					So(p.ClampMax, ShouldEqual, 100)
				}
			})
		}
	})
}

func TestGenerateRounding(t *testing.T) {
	Convey("Given a generated preset", t, func() {
		g := newTestGenerator()
		seed := uint64(42)
		p, err := g.Generate("normal", &seed)
		So(err, ShouldBeNil)

		Convey("Fuel has no decimals and the rest at most one", func() {
			So(p.FuelTons, ShouldEqual, float64(int64(p.FuelTons)))
			So(p.PayloadTons*10, ShouldAlmostEqual, float64(int64(p.PayloadTons*10+0.5)), 1e-6)
			So(p.DistanceLY*10, ShouldAlmostEqual, float64(int64(p.DistanceLY*10+0.5)), 1e-6)
		})
	})
}

func TestGenerateUnknownDifficulty(t *testing.T) {
	Convey("Given an unknown difficulty label", t, func() {
		g := newTestGenerator()
		seed := uint64(7)

		p, err := g.Generate("  NIGHTMARE ", &seed)
		So(err, ShouldBeNil)

		Convey("It falls back to normal", func() {
			So(p.Difficulty, ShouldEqual, domain.DifficultyNormal)
			n, _ := g.Generate("normal", &seed)
			So(p, ShouldResemble, n)
		})

		Convey("Labels are case and space insensitive", func() {
			h, _ := g.Generate(" Hard", &seed)
			So(h.Difficulty, ShouldEqual, domain.DifficultyHard)
		})
	})
}

func TestRoundWithin(t *testing.T) {
	Convey("roundWithin never leaves the band", t, func() {
		So(roundWithin(5.04, 5.04, 6, 1), ShouldEqual, 5.1)
		So(roundWithin(9.96, 9, 9.96, 1), ShouldEqual, 9.9)
		So(roundWithin(5.05, 5.01, 5.09, 1), ShouldEqual, 5.05)
		So(roundWithin(1234.4, 1000, 2000, 0), ShouldEqual, 1234)
	})
}

func TestEmptyTableUsesDefaults(t *testing.T) {
	Convey("Given a generator over an empty table", t, func() {
		tbl := ranges.New()
		g := NewGenerator(tbl, domain.PresetConfig{EasyFraction: 0.25, NormalFraction: 0.65}, nil)
		seed := uint64(3)

		p, err := g.Generate("hard", &seed)
		So(err, ShouldBeNil)

		Convey("Draws use the default ranges and fallbacks are counted", func() {
			So(p.PayloadTons, ShouldBeBetweenOrEqual, 5.0, 80.0)
			So(p.FuelTons, ShouldBeBetweenOrEqual, 1000.0, 8000.0)
			So(tbl.Fallbacks(), ShouldBeGreaterThan, int64(0))
		})
	})
}
