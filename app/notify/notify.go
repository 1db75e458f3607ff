package notify

import "context"

// DefaultEvent is the event name the ERP admin sends after saving plans.
const DefaultEvent = "plans_updated"

type ResultType string

const (
	ResultTypeSuccess ResultType = "success"
	ResultTypeFailure ResultType = "failure"
)

type Result struct {
	Type       ResultType
	URL        string
	StatusCode int
	Error      string
}

// Service delivers a plans webhook to one site.
type Service interface {
	NotifyPlansUpdated(ctx context.Context, url string) Result
}
