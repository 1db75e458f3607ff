package mapper

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-plans/app/entity"
)

func decodeRaw(t *testing.T, body string) RawPlan {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var raw RawPlan
	require.NoError(t, dec.Decode(&raw))
	return raw
}

func TestNormalizePlanConcatenatedLowercaseCodes(t *testing.T) {
	raw := decodeRaw(t, `{"_id":"p1","name":"Pro","price":100,"maxProducts":-1,"allowedFeatures":"posinventory"}`)

	plan, err := NormalizePlan(raw)
	require.NoError(t, err)

	assert.Equal(t, "p1", plan.ID)
	assert.Equal(t, "Pro", plan.Name)
	assert.Equal(t, 100.0, plan.Price)
	assert.True(t, plan.MaxProducts.Unlimited)
	assert.Equal(t, []string{"Inventory Management"}, plan.Features)
	assert.Equal(t, entity.DefaultPlanDurationDays, plan.DurationDays)
	assert.Equal(t, entity.DefaultPlanDescription, plan.Description)
	assert.True(t, plan.IsActive)
	assert.Equal(t, 0, plan.SortOrder)
}

func TestNormalizePlanFeatures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		split    bool
		expected []string
	}{
		{
			name:     "uppercase boundaries",
			body:     `{"id":"a","allowedFeatures":"posInventoryBills"}`,
			split:    true,
			expected: []string{"Inventory Management", "Bills & Purchase Records"},
		},
		{
			name:     "comma delimited string",
			body:     `{"id":"a","features":"inventory, staff,Custom Reports"}`,
			split:    true,
			expected: []string{"Inventory Management", "HR & Staff Management", "Custom Reports"},
		},
		{
			name:     "list keeps first occurrence order",
			body:     `{"id":"a","allowedFeatures":["staff","pos","HR","inventory","Custom Reports","Custom Reports"]}`,
			split:    true,
			expected: []string{"HR & Staff Management", "Inventory Management", "Custom Reports"},
		},
		{
			name:     "allowedFeatures wins over features",
			body:     `{"id":"a","allowedFeatures":["expense"],"features":["support"]}`,
			split:    true,
			expected: []string{"Expense Tracking"},
		},
		{
			name:     "empty allowedFeatures string falls back to features",
			body:     `{"id":"a","allowedFeatures":"","features":["support","alerts"]}`,
			split:    true,
			expected: []string{"24/7 Support & Alerts"},
		},
		{
			name:     "unknown token passes verbatim",
			body:     `{"id":"a","allowedFeatures":"posLoyaltyProgram"}`,
			split:    true,
			expected: []string{"Inventory Management", "Loyalty", "Program"},
		},
		{
			name:     "split disabled keeps string whole",
			body:     `{"id":"a","allowedFeatures":"Inventory Management"}`,
			split:    false,
			expected: []string{"Inventory Management"},
		},
		{
			name:     "non string list items ignored",
			body:     `{"id":"a","features":["pos",7,null,"  "]}`,
			split:    true,
			expected: []string{"Inventory Management"},
		},
		{
			name:     "missing features",
			body:     `{"id":"a"}`,
			split:    true,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewPlanNormalizer(tt.split).Normalize(decodeRaw(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, plan.Features)
		})
	}
}

func TestNormalizePlanMaxProducts(t *testing.T) {
	tests := []struct {
		body     string
		expected entity.MaxProducts
	}{
		{`{"id":"a","maxProducts":-1}`, entity.UnlimitedMaxProducts()},
		{`{"id":"a","maxProducts":500}`, entity.LimitedMaxProducts(500)},
		{`{"id":"a","maxProducts":-5}`, entity.LimitedMaxProducts(-5)},
		{`{"id":"a","maxProducts":"Unlimited"}`, entity.UnlimitedMaxProducts()},
		{`{"id":"a"}`, entity.LimitedMaxProducts(0)},
	}

	for _, tt := range tests {
		plan, err := NormalizePlan(decodeRaw(t, tt.body))
		require.NoError(t, err)
		assert.Equal(t, tt.expected, plan.MaxProducts, tt.body)
	}
}

func TestNormalizePlanID(t *testing.T) {
	plan, err := NormalizePlan(decodeRaw(t, `{"_id":{"$oid":"65a1"},"id":"ignored"}`))
	require.NoError(t, err)
	assert.Equal(t, "65a1", plan.ID)

	plan, err = NormalizePlan(decodeRaw(t, `{"id":42}`))
	require.NoError(t, err)
	assert.Equal(t, "42", plan.ID)

	plan, err = NormalizePlan(decodeRaw(t, `{"_id":"","id":"fallback-id"}`))
	require.NoError(t, err)
	assert.Equal(t, "fallback-id", plan.ID)

	_, err = NormalizePlan(decodeRaw(t, `{"name":"No id"}`))
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = NormalizePlan(nil)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestNormalizePlanDefaultsAndFlags(t *testing.T) {
	plan, err := NormalizePlan(decodeRaw(t, `{"id":"a","durationDays":0,"description":"","sortOrder":null}`))
	require.NoError(t, err)
	assert.Equal(t, 365, plan.DurationDays)
	assert.Equal(t, entity.DefaultPlanDescription, plan.Description)
	assert.Equal(t, 0, plan.SortOrder)
	assert.True(t, plan.IsActive)

	plan, err = NormalizePlan(decodeRaw(t, `{"id":"a","durationDays":1095,"description":"Big","sortOrder":3,"isActive":false}`))
	require.NoError(t, err)
	assert.Equal(t, 1095, plan.DurationDays)
	assert.Equal(t, "Big", plan.Description)
	assert.Equal(t, 3, plan.SortOrder)
	assert.False(t, plan.IsActive)

	plan, err = NormalizePlan(decodeRaw(t, `{"id":"a","active":false}`))
	require.NoError(t, err)
	assert.True(t, plan.IsActive, "the upstream active field does not hide a plan")

	plan, err = NormalizePlan(decodeRaw(t, `{"id":"a","isActive":"no"}`))
	require.NoError(t, err)
	assert.True(t, plan.IsActive, "only the boolean false deactivates a plan")
}

func TestNormalizePlanPrice(t *testing.T) {
	plan, err := NormalizePlan(decodeRaw(t, `{"id":"a","price":"7999.50"}`))
	require.NoError(t, err)
	assert.Equal(t, 7999.5, plan.Price)

	plan, err = NormalizePlan(decodeRaw(t, `{"id":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, plan.Price)

	_, err = NormalizePlan(decodeRaw(t, `{"id":"a","price":-1}`))
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = NormalizePlan(decodeRaw(t, `{"id":"a","price":"cheap"}`))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestNormalizeAllSkipsBadRecordsFiltersAndSorts(t *testing.T) {
	records := []RawPlan{
		decodeRaw(t, `{"id":"enterprise","sortOrder":3}`),
		decodeRaw(t, `{"name":"broken"}`),
		decodeRaw(t, `{"id":"hidden","sortOrder":0,"isActive":false}`),
		decodeRaw(t, `{"id":"standard","sortOrder":1}`),
		decodeRaw(t, `{"id":"pro","sortOrder":2}`),
		decodeRaw(t, `{"id":"starter"}`),
	}

	plans, errs := NewPlanNormalizer(true).NormalizeAll(records)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMalformedRecord)
	assert.Contains(t, errs[0].Error(), "record 1")

	ids := make([]string, 0, len(plans))
	for _, plan := range plans {
		assert.True(t, plan.IsActive)
		ids = append(ids, plan.ID)
	}
	assert.Equal(t, []string{"starter", "standard", "pro", "enterprise"}, ids)
}

func TestFeatureLabel(t *testing.T) {
	assert.Equal(t, "Customize Settings", FeatureLabel(" DropDownSettings "))
	assert.Equal(t, "Custom Thing", FeatureLabel("Custom Thing"))
}

func TestSegmentKnownCodes(t *testing.T) {
	parts, ok := segmentKnownCodes("billsexpenses")
	require.True(t, ok)
	assert.Equal(t, []string{"bills", "expenses"}, parts)

	_, ok = segmentKnownCodes("posx")
	assert.False(t, ok)
}
