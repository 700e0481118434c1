// Package ranges loads the per-feature (min, max) summary table that bounds
// model inputs and preset draws.
package ranges

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/missionctl/orbit/internal/domain"
)

// DefaultRanges are used for any feature missing from the table.
var DefaultRanges = map[string]domain.FeatureRange{
	domain.FeaturePayload:  {Feature: domain.FeaturePayload, Min: 5, Max: 80},
	domain.FeatureDistance: {Feature: domain.FeatureDistance, Min: 5, Max: 200},
	domain.FeatureDuration: {Feature: domain.FeatureDuration, Min: 3, Max: 20},
	domain.FeatureScience:  {Feature: domain.FeatureScience, Min: 20, Max: 100},
	domain.FeatureCrew:     {Feature: domain.FeatureCrew, Min: 4, Max: 20},
	domain.FeatureFuel:     {Feature: domain.FeatureFuel, Min: 1000, Max: 8000},
}

// Table is an immutable feature range table. Safe for concurrent reads.
type Table struct {
	ranges    map[string]domain.FeatureRange
	fallbacks atomic.Int64
}

// New builds a table from explicit ranges. Reversed bounds are swapped.
func New(rs ...domain.FeatureRange) *Table {
	t := &Table{ranges: make(map[string]domain.FeatureRange, len(rs))}
	for _, r := range rs {
		if r.Min > r.Max {
			r.Min, r.Max = r.Max, r.Min
		}
		t.ranges[r.Feature] = r
	}
	return t
}

// Load reads a CSV with a feature,min,max header. It never fails: on any
// error a warning is logged and an empty table is returned, so every lookup
// falls back to DefaultRanges.
func Load(path string) *Table {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("could not load feature ranges", "path", path, "error", err)
		return New()
	}
	defer f.Close()

	rs, err := Parse(f)
	if err != nil {
		slog.Warn("could not load feature ranges", "path", path, "error", err)
		return New()
	}

	t := New(rs...)
	slog.Info("feature ranges loaded", "path", path, "count", len(t.ranges))
	return t
}

// Parse decodes range rows from r. Rows with unparsable bounds are skipped.
func Parse(r io.Reader) ([]domain.FeatureRange, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	fi, okF := col["feature"]
	mi, okMin := col["min"]
	xi, okMax := col["max"]
	if !okF || !okMin || !okMax {
		return nil, errors.New("header must contain feature, min and max")
	}

	var out []domain.FeatureRange
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		lo, errLo := strconv.ParseFloat(strings.TrimSpace(rec[mi]), 64)
		hi, errHi := strconv.ParseFloat(strings.TrimSpace(rec[xi]), 64)
		if errLo != nil || errHi != nil {
			slog.Warn("skipping feature range row", "line", line, "feature", rec[fi])
			continue
		}
		out = append(out, domain.FeatureRange{Feature: strings.TrimSpace(rec[fi]), Min: lo, Max: hi})
	}
	return out, nil
}

// Loaded reports whether the table holds any ranges.
func (t *Table) Loaded() bool {
	return len(t.ranges) > 0
}

// Len returns the number of ranges held.
func (t *Table) Len() int {
	return len(t.ranges)
}

// Lookup returns the range for feature if present.
func (t *Table) Lookup(feature string) (domain.FeatureRange, bool) {
	r, ok := t.ranges[feature]
	return r, ok
}

// Clamp bounds v to the feature's range. v is returned unchanged when the
// feature has no range.
func (t *Table) Clamp(feature string, v float64) float64 {
	r, ok := t.ranges[feature]
	if !ok {
		return v
	}
	return clamp(v, r.Min, r.Max)
}

// RangeOrDefault returns the table range for feature, or its default.
// fallback is true when the default was used; each use is counted.
func (t *Table) RangeOrDefault(feature string) (r domain.FeatureRange, fallback bool) {
	if r, ok := t.ranges[feature]; ok {
		return r, false
	}
	t.fallbacks.Add(1)
	if r, ok := DefaultRanges[feature]; ok {
		return r, true
	}
	return domain.FeatureRange{Feature: feature}, true
}

// Fallbacks returns how many lookups used a default range.
func (t *Table) Fallbacks() int64 {
	return t.fallbacks.Load()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
