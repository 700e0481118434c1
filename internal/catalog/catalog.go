// Package catalog holds the fixed set of missions players can fund.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/missionctl/orbit/internal/domain"
)

// Definition is a mission catalog entry before it is stored.
type Definition struct {
	Name     string
	Target   string
	Distance int64
	Cost     int64
	Payout   int64
	Duration int64
}

// DefaultDefinitions is the standard catalog.
var DefaultDefinitions = []Definition{
	{Name: "Mission 1", Target: "Moon", Distance: 100, Cost: 100, Payout: 100, Duration: 10},
	{Name: "Mission 2", Target: "Mars", Distance: 200, Cost: 200, Payout: 300, Duration: 20},
	{Name: "Mission 3", Target: "Jupiter", Distance: 500, Cost: 500, Payout: 800, Duration: 30},
}

// Catalog is an immutable, ID-indexed view of the stored missions.
// Safe for concurrent reads without locking.
type Catalog struct {
	byID    map[int64]domain.Mission
	ordered []domain.Mission
}

// New builds a catalog from stored missions.
func New(missions []*domain.Mission) *Catalog {
	c := &Catalog{byID: make(map[int64]domain.Mission, len(missions))}
	for _, m := range missions {
		c.byID[m.ID] = *m
		c.ordered = append(c.ordered, *m)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].ID < c.ordered[j].ID })
	return c
}

// Seed stores each definition that is not yet present, matched by name, and
// returns a catalog of everything stored. Safe to call on every startup.
func Seed(ctx context.Context, repo domain.Repository, defs []Definition) (*Catalog, error) {
	existing, err := repo.ListMissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, m := range existing {
		have[m.Name] = true
	}

	for _, d := range defs {
		if have[d.Name] {
			continue
		}
		m := &domain.Mission{
			Name:     d.Name,
			Target:   d.Target,
			Distance: d.Distance,
			Cost:     d.Cost,
			Payout:   d.Payout,
			Duration: d.Duration,
		}
		if err := repo.SaveMission(ctx, m); err != nil {
			return nil, fmt.Errorf("seed mission %s: %w", d.Name, err)
		}
		slog.Info("mission seeded", "mission_id", m.ID, "name", m.Name, "target", m.Target)
	}

	missions, err := repo.ListMissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	return New(missions), nil
}

// Get returns the mission with id.
func (c *Catalog) Get(id int64) (domain.Mission, error) {
	m, ok := c.byID[id]
	if !ok {
		return domain.Mission{}, fmt.Errorf("mission %d: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

// List returns every mission ordered by ID.
func (c *Catalog) List() []domain.Mission {
	out := make([]domain.Mission, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of missions.
func (c *Catalog) Len() int {
	return len(c.ordered)
}
