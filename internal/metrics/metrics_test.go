package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it owns a private registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Registry(), ShouldNotBeNil)
				So(manager.Registry(), ShouldNotEqual, prometheus.DefaultRegisterer)
			})
		})

		Convey("When two managers are created", func() {
			Convey("Then registration does not collide", func() {
				So(func() {
					NewManager()
					NewManager()
				}, ShouldNotPanic)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithHistogramBuckets([]float64{1, 10}),
				WithRegistry(registry),
			)
			manager.RecordMissionStarted()

			Convey("Then metrics use the namespace and registry", func() {
				So(manager.Registry(), ShouldEqual, registry)
				So(counterValue(registry, "test_missions_started_total", nil), ShouldEqual, 1)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		manager := NewManager()
		reg := manager.Registry()

		Convey("When recording predictions", func() {
			manager.RecordPrediction("success")
			manager.RecordPrediction("success")
			manager.RecordPrediction("degraded")
			manager.RecordPredictionCacheHit()

			Convey("Then outcomes are counted by label", func() {
				So(counterValue(reg, "orbit_predictions_total", map[string]string{"outcome": "success"}), ShouldEqual, 2)
				So(counterValue(reg, "orbit_predictions_total", map[string]string{"outcome": "degraded"}), ShouldEqual, 1)
				So(counterValue(reg, "orbit_prediction_cache_hits_total", nil), ShouldEqual, 1)
			})
		})

		Convey("When recording presets", func() {
			manager.RecordPreset("normal", true)
			manager.RecordPreset("hard", false)

			Convey("Then unknown difficulties are counted separately", func() {
				So(counterValue(reg, "orbit_presets_generated_total", map[string]string{"difficulty": "normal"}), ShouldEqual, 1)
				So(counterValue(reg, "orbit_difficulty_fallbacks_total", nil), ShouldEqual, 1)
			})
		})

		Convey("When recording completions", func() {
			manager.RecordMissionCompleted("SUCCESS", 300)
			manager.RecordMissionCompleted("FAILURE", 0)

			Convey("Then payout is summed", func() {
				So(counterValue(reg, "orbit_missions_completed_total", map[string]string{"status": "SUCCESS"}), ShouldEqual, 1)
				So(counterValue(reg, "orbit_payout_credited_total", nil), ShouldEqual, 300)
			})
		})

		Convey("When serving the handler", func() {
			manager.RecordHTTPRequest("/health", "GET", "200", 3*time.Millisecond)
			rec := httptest.NewRecorder()
			manager.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

			Convey("Then the exposition contains recorded series", func() {
				So(rec.Code, ShouldEqual, 200)
				So(rec.Body.String(), ShouldContainSubstring, "orbit_http_requests_total")
				So(strings.Contains(rec.Body.String(), `route="/health"`), ShouldBeTrue)
			})
		})
	})
}

func TestNilManager(t *testing.T) {
	Convey("Given a nil manager", t, func() {
		var manager *Manager

		Convey("Then every method is a no-op", func() {
			So(func() {
				manager.RecordPrediction("success")
				manager.RecordPredictionCacheHit()
				manager.RecordRangeFallback("Crew Size")
				manager.RecordPreset("easy", false)
				manager.ObserveModelLatency(time.Millisecond)
				manager.RecordMissionStarted()
				manager.RecordStartRejected("insufficient_funds")
				manager.RecordMissionCompleted("SUCCESS", 100)
				manager.RecordEventJournaled()
				manager.RecordHTTPRequest("/", "GET", "200", time.Millisecond)
			}, ShouldNotPanic)
			So(manager.Registry(), ShouldBeNil)
			So(manager.Handler(), ShouldNotBeNil)
		})
	})
}

// counterValue returns the value of the counter series matching labels.
func counterValue(reg *prometheus.Registry, name string, labels map[string]string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
