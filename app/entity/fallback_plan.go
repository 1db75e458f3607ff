package entity

import "time"

// FallbackPlan is a row of the fallback_plans table. Features are stored as a
// JSON array of labels.
type FallbackPlan struct {
	ID           uint64
	PlanCode     string
	DisplayName  string
	Description  string
	PriceCents   int64
	MaxProducts  int64
	DurationDays int32
	Features     string
	SortOrder    int32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
