package mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-plans/app/entity"
)

var ErrMalformedRecord = errors.New("malformed upstream plan record")

// RawPlan is one upstream plan record as decoded from JSON (numbers as json.Number).
type RawPlan = map[string]any

// featureLabels maps lower-case upstream feature codes to display labels.
var featureLabels = map[string]string{
	"inventory":        "Inventory Management",
	"pos":              "Inventory Management",
	"customers":        "Customer Management",
	"customerlist":     "Customer Management",
	"bills":            "Bills & Purchase Records",
	"bill":             "Bills & Purchase Records",
	"purchases":        "Bills & Purchase Records",
	"purchase":         "Bills & Purchase Records",
	"hr":               "HR & Staff Management",
	"staff":            "HR & Staff Management",
	"commission":       "HR & Staff Management",
	"salary":           "HR & Staff Management",
	"leaves":           "HR & Staff Management",
	"dashboard":        "Reports & Analysis",
	"analysis":         "Reports & Analysis",
	"reports":          "Reports & Analysis",
	"expense":          "Expense Tracking",
	"expenses":         "Expense Tracking",
	"service":          "24/7 Support & Alerts",
	"support":          "24/7 Support & Alerts",
	"alerts":           "24/7 Support & Alerts",
	"multilingual":     "24/7 Support & Alerts",
	"settings":         "Customize Settings",
	"whatsapp":         "Customize Settings",
	"referrals":        "Customize Settings",
	"dropdownsettings": "Customize Settings",
}

// FeatureLabel returns the display label for an upstream feature code, or the
// trimmed code itself when it has no mapping.
func FeatureLabel(code string) string {
	code = strings.TrimSpace(code)
	if label, ok := featureLabels[strings.ToLower(code)]; ok {
		return label
	}
	return code
}

type PlanNormalizer struct {
	splitConcatenated bool
}

func NewPlanNormalizer(splitConcatenated bool) *PlanNormalizer {
	return &PlanNormalizer{splitConcatenated: splitConcatenated}
}

// NormalizePlan normalizes one record with the concatenated-feature recovery enabled.
func NormalizePlan(raw RawPlan) (entity.Plan, error) {
	return NewPlanNormalizer(true).Normalize(raw)
}

func (n *PlanNormalizer) Normalize(raw RawPlan) (entity.Plan, error) {
	if raw == nil {
		return entity.Plan{}, fmt.Errorf("%w: empty record", ErrMalformedRecord)
	}

	id, ok := resolveID(raw)
	if !ok {
		return entity.Plan{}, fmt.Errorf("%w: missing _id and id", ErrMalformedRecord)
	}

	price, err := resolvePrice(raw["price"])
	if err != nil {
		return entity.Plan{}, fmt.Errorf("%w: plan %s: %v", ErrMalformedRecord, id, err)
	}

	plan := entity.Plan{
		ID:           id,
		Name:         stringValue(raw["name"]),
		Price:        price,
		Description:  stringValue(raw["description"]),
		MaxProducts:  resolveMaxProducts(raw["maxProducts"]),
		DurationDays: entity.DefaultPlanDurationDays,
		Features:     n.resolveFeatures(raw),
		IsActive:     resolveActive(raw),
	}

	if plan.Description == "" {
		plan.Description = entity.DefaultPlanDescription
	}
	if days, ok := intValue(raw["durationDays"]); ok && days > 0 {
		plan.DurationDays = int(days)
	}
	if order, ok := intValue(raw["sortOrder"]); ok {
		plan.SortOrder = int(order)
	}

	return plan, nil
}

// NormalizeAll normalizes a batch. Records that fail are skipped and reported
// in the returned errors; the plans are active only and sorted by SortOrder.
func (n *PlanNormalizer) NormalizeAll(records []RawPlan) ([]entity.Plan, []error) {
	plans := make([]entity.Plan, 0, len(records))
	var errs []error
	for i, raw := range records {
		plan, err := n.Normalize(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		plans = append(plans, plan)
	}

	return ActiveSorted(plans), errs
}

// ActiveSorted drops inactive plans and stable-sorts the rest by SortOrder.
func ActiveSorted(plans []entity.Plan) []entity.Plan {
	active := lo.Filter(plans, func(p entity.Plan, _ int) bool { return p.IsActive })
	sort.SliceStable(active, func(i, j int) bool { return active[i].SortOrder < active[j].SortOrder })
	return active
}

func resolveID(raw RawPlan) (string, bool) {
	for _, key := range []string{"_id", "id"} {
		value, present := raw[key]
		if !present || value == nil {
			continue
		}
		if oid, ok := value.(map[string]any); ok {
			value = oid["$oid"]
		}
		if id := strings.TrimSpace(stringValue(value)); id != "" {
			return id, true
		}
	}
	return "", false
}

func resolvePrice(value any) (float64, error) {
	if value == nil {
		return 0, nil
	}
	d, err := decimalValue(value)
	if err != nil {
		return 0, fmt.Errorf("invalid price: %w", err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative price %s", d.String())
	}
	return d.InexactFloat64(), nil
}

func resolveMaxProducts(value any) entity.MaxProducts {
	if s, ok := value.(string); ok && strings.EqualFold(strings.TrimSpace(s), entity.UnlimitedLabel) {
		return entity.UnlimitedMaxProducts()
	}
	n, _ := intValue(value)
	return entity.MaxProductsFromUpstream(n)
}

// resolveActive treats only the boolean false as inactive. The ERP's own
// "active" field is not consulted.
func resolveActive(raw RawPlan) bool {
	return raw["isActive"] != false
}

func (n *PlanNormalizer) resolveFeatures(raw RawPlan) []string {
	var codes []string
	switch v := firstTruthy(raw, "allowedFeatures", "features").(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				codes = append(codes, s)
			}
		}
	case []string:
		codes = v
	case string:
		codes = n.splitFeatureString(v)
	}

	labels := make([]string, 0, len(codes))
	for _, code := range codes {
		if label := FeatureLabel(code); label != "" {
			labels = append(labels, label)
		}
	}
	return lo.Uniq(labels)
}

// splitFeatureString recovers a list from a single upstream string. Upstream
// sometimes concatenates codes with no delimiter ("posInventoryBills").
func (n *PlanNormalizer) splitFeatureString(s string) []string {
	if strings.Contains(s, ",") {
		return strings.Split(s, ",")
	}
	if !n.splitConcatenated {
		return []string{s}
	}

	var codes []string
	for _, token := range splitAtUppercase(s) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, known := featureLabels[strings.ToLower(token)]; known {
			codes = append(codes, token)
			continue
		}
		if parts, ok := segmentKnownCodes(token); ok {
			codes = append(codes, parts...)
			continue
		}
		codes = append(codes, token)
	}
	return codes
}

func splitAtUppercase(s string) []string {
	var parts []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			parts = append(parts, s[start:i])
			start = i
		}
	}
	return append(parts, s[start:])
}

// segmentKnownCodes splits token into known feature codes ("posinventory" ->
// "pos", "inventory"). It reports false unless the whole token is covered.
func segmentKnownCodes(token string) ([]string, bool) {
	lower := strings.ToLower(token)
	if len(lower) != len(token) {
		return nil, false
	}

	dead := make(map[int]bool)
	var walk func(start int) ([]string, bool)
	walk = func(start int) ([]string, bool) {
		if start == len(lower) {
			return nil, true
		}
		if dead[start] {
			return nil, false
		}
		for end := len(lower); end > start; end-- {
			if _, ok := featureLabels[lower[start:end]]; !ok {
				continue
			}
			if rest, ok := walk(end); ok {
				return append([]string{token[start:end]}, rest...), true
			}
		}
		dead[start] = true
		return nil, false
	}
	return walk(0)
}

func firstTruthy(raw RawPlan, keys ...string) any {
	for _, key := range keys {
		value := raw[key]
		if value == nil || value == "" {
			continue
		}
		return value
	}
	return nil
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func decimalValue(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", value)
	}
}

func intValue(value any) (int64, bool) {
	if value == nil {
		return 0, false
	}
	d, err := decimalValue(value)
	if err != nil {
		return 0, false
	}
	return d.IntPart(), true
}
