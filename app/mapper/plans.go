package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/vibast-solutions/ms-go-plans/app/dto"
	"github.com/vibast-solutions/ms-go-plans/app/entity"
)

func PlanToResponse(item entity.Plan) dto.PlanResponse {
	features := make([]string, len(item.Features))
	copy(features, item.Features)

	return dto.PlanResponse{
		ID:           item.ID,
		Name:         item.Name,
		Price:        item.Price,
		Description:  item.Description,
		MaxProducts:  item.MaxProducts,
		DurationDays: item.DurationDays,
		Features:     features,
		IsActive:     item.IsActive,
		SortOrder:    item.SortOrder,
	}
}

func PlansToResponse(items []entity.Plan) []dto.PlanResponse {
	result := make([]dto.PlanResponse, 0, len(items))
	for _, item := range items {
		result = append(result, PlanToResponse(item))
	}
	return result
}

func SyncStatusToResponse(item entity.SyncStatus) dto.PlansStatusResponse {
	return dto.PlansStatusResponse{
		Configured:    item.Configured,
		Cached:        item.Cached,
		Stale:         item.Stale,
		FetchedAt:     formatTime(item.FetchedAt),
		LastAttemptAt: formatTime(item.LastAttemptAt),
		LastSource:    string(item.LastSource),
		LastError:     item.LastError,
		PlanCount:     item.PlanCount,
	}
}

// FallbackPlanToPlan converts a stored fallback row. PriceCents is an integer
// number of minor units; Features holds a JSON array of labels.
func FallbackPlanToPlan(item *entity.FallbackPlan) (entity.Plan, error) {
	if item == nil {
		return entity.Plan{}, fmt.Errorf("nil fallback plan")
	}

	var features []string
	if item.Features != "" {
		if err := json.Unmarshal([]byte(item.Features), &features); err != nil {
			return entity.Plan{}, fmt.Errorf("fallback plan %s: invalid features: %w", item.PlanCode, err)
		}
	}

	plan := entity.Plan{
		ID:           item.PlanCode,
		Name:         item.DisplayName,
		Price:        decimal.New(item.PriceCents, -2).InexactFloat64(),
		Description:  item.Description,
		MaxProducts:  entity.MaxProductsFromUpstream(item.MaxProducts),
		DurationDays: int(item.DurationDays),
		Features:     lo.Uniq(features),
		IsActive:     true,
		SortOrder:    int(item.SortOrder),
	}
	if plan.Description == "" {
		plan.Description = entity.DefaultPlanDescription
	}
	if plan.DurationDays <= 0 {
		plan.DurationDays = entity.DefaultPlanDurationDays
	}
	return plan, nil
}

func formatTime(value time.Time) *string {
	if value.IsZero() {
		return nil
	}
	formatted := value.UTC().Format(time.RFC3339)
	return &formatted
}
