package entity

import "time"

// PlanSource tells where a served plan list came from.
type PlanSource string

const (
	PlanSourceCache      PlanSource = "cache"
	PlanSourceERP        PlanSource = "erp"
	PlanSourceStaleCache PlanSource = "stale_cache"
	PlanSourceFallback   PlanSource = "fallback"
)

type SyncStatus struct {
	Configured    bool
	Cached        bool
	Stale         bool
	FetchedAt     time.Time
	LastAttemptAt time.Time
	LastSource    PlanSource
	LastError     string
	PlanCount     int
}
