package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/missionctl/orbit/internal/domain"
	"github.com/missionctl/orbit/internal/repository"
)

func newRepo(t *testing.T) *repository.SQLRepository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "catalog.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	c, err := Seed(ctx, repo, DefaultDefinitions)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if c.Len() != len(DefaultDefinitions) {
		t.Fatalf("expected %d missions, got %d", len(DefaultDefinitions), c.Len())
	}

	t.Run("ListOrderedByID", func(t *testing.T) {
		list := c.List()
		for i, m := range list {
			if m.Name != DefaultDefinitions[i].Name {
				t.Errorf("position %d: expected %s, got %s", i, DefaultDefinitions[i].Name, m.Name)
			}
			if i > 0 && list[i-1].ID >= m.ID {
				t.Errorf("missions not ordered by id")
			}
		}
	})

	t.Run("Get", func(t *testing.T) {
		first := c.List()[0]
		m, err := c.Get(first.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if m.Target != "Moon" || m.Cost != 100 || m.Payout != 100 || m.Duration != 10 {
			t.Errorf("unexpected mission: %+v", m)
		}
	})

	t.Run("GetUnknown", func(t *testing.T) {
		if _, err := c.Get(404); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		again, err := Seed(ctx, repo, DefaultDefinitions)
		if err != nil {
			t.Fatalf("second Seed failed: %v", err)
		}
		if again.Len() != c.Len() {
			t.Errorf("reseeding changed catalog size: %d -> %d", c.Len(), again.Len())
		}
	})

	t.Run("AddsMissingDefinitions", func(t *testing.T) {
		defs := append([]Definition{}, DefaultDefinitions...)
		defs = append(defs, Definition{Name: "Mission 4", Target: "Saturn", Distance: 900, Cost: 700, Payout: 1200, Duration: 40})

		grown, err := Seed(ctx, repo, defs)
		if err != nil {
			t.Fatalf("Seed failed: %v", err)
		}
		if grown.Len() != len(defs) {
			t.Errorf("expected %d missions, got %d", len(defs), grown.Len())
		}
	})
}

func TestListReturnsCopy(t *testing.T) {
	c := New([]*domain.Mission{{ID: 2, Name: "b"}, {ID: 1, Name: "a"}})

	list := c.List()
	if list[0].ID != 1 {
		t.Errorf("expected sorted list, got first ID %d", list[0].ID)
	}
	list[0].Name = "mutated"

	m, _ := c.Get(1)
	if m.Name != "a" {
		t.Errorf("catalog mutated through List(): %s", m.Name)
	}
}
