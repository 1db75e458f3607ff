package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-plans/app/entity"
	"github.com/vibast-solutions/ms-go-plans/app/mapper"
)

type fallbackPlanRepository interface {
	ListActive(ctx context.Context) ([]*entity.FallbackPlan, error)
}

var planValidator = validator.New(validator.WithRequiredStructEnabled())

// DefaultFallbackPlans is the list served when the ERP fails and nothing is cached.
func DefaultFallbackPlans() []entity.Plan {
	return []entity.Plan{
		{
			ID:           "retalians-standard",
			Name:         "Retalians Standard",
			Price:        3199,
			Description:  "Perfect for your business needs",
			MaxProducts:  entity.LimitedMaxProducts(500),
			DurationDays: 1095,
			Features: []string{
				"Business Overview",
				"Inventory Management",
				"Purchase Orders",
				"Customer Management",
				"Point of Sale (POS)",
				"Bills & Invoicing",
				"Staff Management",
				"Commission Management",
			},
			IsActive:  true,
			SortOrder: 1,
		},
		{
			ID:           "retalians-pro",
			Name:         "Retalians Pro",
			Price:        7999,
			Description:  "Advanced features for growing businesses",
			MaxProducts:  entity.LimitedMaxProducts(2000),
			DurationDays: 365,
			Features: []string{
				"Everything in Standard Plan",
				"Advanced Analytics & Insights",
				"Multi-store Management",
				"Employee Management System",
				"Advanced Reporting Dashboard",
				"API Integration Support",
				"Custom Fields & Categories",
				"Loyalty Program Management",
				"Supplier Management",
				"Advanced Security Features",
				"Data Export & Backup",
				"Priority Customer Support",
			},
			IsActive:  true,
			SortOrder: 2,
		},
		{
			ID:           "retalians-enterprise",
			Name:         "Retalians Enterprise",
			Price:        15999,
			Description:  "Complete solution for large enterprises",
			MaxProducts:  entity.UnlimitedMaxProducts(),
			DurationDays: 365,
			Features: []string{
				"Everything in Pro Plan",
				"Unlimited Products & Locations",
				"Custom Integrations",
				"White-label Solutions",
				"Advanced User Permissions",
				"Custom Workflow Automation",
				"Dedicated Account Manager",
				"24/7 Priority Support",
				"Custom Training Sessions",
				"Advanced Security & Compliance",
				"Custom Reports & Dashboards",
				"Enterprise-grade Infrastructure",
			},
			IsActive:  true,
			SortOrder: 3,
		},
	}
}

// ValidatePlans checks the Plan invariants a served list must hold.
func ValidatePlans(plans []entity.Plan) error {
	seen := make(map[string]struct{}, len(plans))
	for _, plan := range plans {
		if err := planValidator.Struct(plan); err != nil {
			return fmt.Errorf("%w: plan %q: %v", ErrInvalidFallbackSet, plan.ID, err)
		}
		if !plan.IsActive {
			return fmt.Errorf("%w: plan %q is inactive", ErrInvalidFallbackSet, plan.ID)
		}
		if _, dup := seen[plan.ID]; dup {
			return fmt.Errorf("%w: duplicate plan id %q", ErrInvalidFallbackSet, plan.ID)
		}
		seen[plan.ID] = struct{}{}
	}
	return nil
}

// LoadFallbackPlans reads fallback plans from the repository. Any failure, an
// empty table, or a row breaking the Plan invariants keeps the bundled list.
func LoadFallbackPlans(ctx context.Context, repo fallbackPlanRepository, logger logrus.FieldLogger) []entity.Plan {
	if repo == nil {
		return DefaultFallbackPlans()
	}

	rows, err := repo.ListActive(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to load fallback plans, using bundled list")
		return DefaultFallbackPlans()
	}
	if len(rows) == 0 {
		logger.Info("No stored fallback plans, using bundled list")
		return DefaultFallbackPlans()
	}

	plans := make([]entity.Plan, 0, len(rows))
	for _, row := range rows {
		plan, err := mapper.FallbackPlanToPlan(row)
		if err != nil {
			logger.WithError(err).Warn("Invalid stored fallback plan, using bundled list")
			return DefaultFallbackPlans()
		}
		plans = append(plans, plan)
	}

	plans = mapper.ActiveSorted(plans)
	if err := ValidatePlans(plans); err != nil {
		logger.WithError(err).Warn("Stored fallback plans rejected, using bundled list")
		return DefaultFallbackPlans()
	}

	logger.WithField("plans", len(plans)).Info("Loaded fallback plans from database")
	return plans
}
