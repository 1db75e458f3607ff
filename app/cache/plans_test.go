package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-plans/app/entity"
)

func TestPlansCacheStoreReadInvalidate(t *testing.T) {
	c := NewPlansCache()
	if c.Read() != nil {
		t.Fatal("expected empty cache")
	}

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	plans := []entity.Plan{{ID: "p1", Features: []string{"Inventory Management"}}}
	c.Store(plans, now)

	entry := c.Read()
	if entry == nil || len(entry.Plans) != 1 || entry.Plans[0].ID != "p1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if !entry.FetchedAt.Equal(now) {
		t.Fatalf("unexpected fetchedAt: %v", entry.FetchedAt)
	}

	plans[0].Features[0] = "mutated"
	if c.Read().Plans[0].Features[0] != "Inventory Management" {
		t.Fatal("cache entry shares memory with the stored slice")
	}

	c.Invalidate()
	if c.Read() != nil {
		t.Fatal("expected cache cleared")
	}
}

func TestIsStale(t *testing.T) {
	fetched := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := &Entry{FetchedAt: fetched}
	ttl := 30 * time.Second

	if IsStale(entry, fetched.Add(29*time.Second), ttl) {
		t.Fatal("expected fresh entry inside ttl")
	}
	if !IsStale(entry, fetched.Add(30*time.Second), ttl) {
		t.Fatal("expected stale entry at ttl boundary")
	}
	if !IsStale(nil, fetched, ttl) {
		t.Fatal("expected nil entry to be stale")
	}
}

func TestPlansCacheConcurrentAccess(t *testing.T) {
	c := NewPlansCache()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			c.Store([]entity.Plan{{ID: "a"}, {ID: "b"}}, now)
		}()
		go func() {
			defer wg.Done()
			c.Invalidate()
		}()
		go func() {
			defer wg.Done()
			if entry := c.Read(); entry != nil && len(entry.Plans) != 2 {
				t.Errorf("observed partial entry: %+v", entry)
			}
		}()
	}
	wg.Wait()
}
