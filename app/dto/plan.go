package dto

import "github.com/vibast-solutions/ms-go-plans/app/entity"

type PlanResponse struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Price        float64            `json:"price"`
	Description  string             `json:"description"`
	MaxProducts  entity.MaxProducts `json:"maxProducts"`
	DurationDays int                `json:"durationDays"`
	Features     []string           `json:"features"`
	IsActive     bool               `json:"isActive"`
	SortOrder    int                `json:"sortOrder"`
}

type PlansStatusResponse struct {
	Configured    bool    `json:"configured"`
	Cached        bool    `json:"cached"`
	Stale         bool    `json:"stale"`
	FetchedAt     *string `json:"fetchedAt,omitempty"`
	LastAttemptAt *string `json:"lastAttemptAt,omitempty"`
	LastSource    string  `json:"lastSource,omitempty"`
	LastError     string  `json:"lastError,omitempty"`
	PlanCount     int     `json:"planCount"`
}

// WebhookRequest is the optional webhook body. Timestamp is an ISO string or
// an epoch number depending on the sender.
type WebhookRequest struct {
	Event     string `json:"event"`
	Timestamp any    `json:"timestamp,omitempty"`
}

type WebhookResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
