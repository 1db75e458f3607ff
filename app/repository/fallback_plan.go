package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-plans/app/entity"
)

type FallbackPlanRepository struct {
	db DBTX
}

func NewFallbackPlanRepository(db DBTX) *FallbackPlanRepository {
	return &FallbackPlanRepository{db: db}
}

// ListActive returns the active fallback plans ordered by sort_order. A
// missing table is treated as no stored plans.
func (r *FallbackPlanRepository) ListActive(ctx context.Context) ([]*entity.FallbackPlan, error) {
	query := `
		SELECT id, plan_code, display_name, description, price_cents,
		       max_products, duration_days, features, sort_order, created_at, updated_at
		FROM fallback_plans
		WHERE is_active = 1
		ORDER BY sort_order ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if isMissingTableError(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var items []*entity.FallbackPlan
	for rows.Next() {
		item := &entity.FallbackPlan{}
		var description sql.NullString
		var features sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.PlanCode,
			&item.DisplayName,
			&description,
			&item.PriceCents,
			&item.MaxProducts,
			&item.DurationDays,
			&features,
			&item.SortOrder,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if description.Valid {
			item.Description = description.String
		}
		if features.Valid {
			item.Features = features.String
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
