package cache

import (
	"sync/atomic"
	"time"

	"github.com/vibast-solutions/ms-go-plans/app/entity"
)

// Entry is the last successfully normalized plan list.
type Entry struct {
	Plans     []entity.Plan
	FetchedAt time.Time
}

// PlansCache holds a single Entry. Store and Invalidate replace the whole value,
// so readers never see a partial update.
type PlansCache struct {
	entry atomic.Pointer[Entry]
}

func NewPlansCache() *PlansCache {
	return &PlansCache{}
}

// Read returns the current entry or nil. The returned entry must not be modified.
func (c *PlansCache) Read() *Entry {
	return c.entry.Load()
}

func (c *PlansCache) Store(plans []entity.Plan, now time.Time) {
	c.entry.Store(&Entry{Plans: entity.ClonePlans(plans), FetchedAt: now})
}

func (c *PlansCache) Invalidate() {
	c.entry.Store(nil)
}

func IsStale(entry *Entry, now time.Time, ttl time.Duration) bool {
	if entry == nil {
		return true
	}
	return now.Sub(entry.FetchedAt) >= ttl
}
