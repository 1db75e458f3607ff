package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// UnlimitedMaxProductsSentinel is the upstream value meaning "no product cap".
	UnlimitedMaxProductsSentinel int64 = -1
	UnlimitedLabel                     = "Unlimited"

	DefaultPlanDurationDays = 365
	DefaultPlanDescription  = "Perfect for your business needs"
)

type Plan struct {
	ID           string  `validate:"required"`
	Name         string  `validate:"required"`
	Price        float64 `validate:"gte=0"`
	Description  string
	MaxProducts  MaxProducts
	DurationDays int      `validate:"gt=0"`
	Features     []string `validate:"unique"`
	IsActive     bool
	SortOrder    int
}

// Clone returns a copy that shares no slices with p.
func (p Plan) Clone() Plan {
	cp := p
	if p.Features != nil {
		cp.Features = append([]string(nil), p.Features...)
	}
	return cp
}

func ClonePlans(plans []Plan) []Plan {
	if plans == nil {
		return nil
	}
	result := make([]Plan, len(plans))
	for i, plan := range plans {
		result[i] = plan.Clone()
	}
	return result
}

// MaxProducts is either a product count or Unlimited. It encodes to JSON as a
// number or as the string "Unlimited".
type MaxProducts struct {
	Value     int64
	Unlimited bool
}

func LimitedMaxProducts(n int64) MaxProducts {
	return MaxProducts{Value: n}
}

func UnlimitedMaxProducts() MaxProducts {
	return MaxProducts{Unlimited: true}
}

// MaxProductsFromUpstream maps the upstream sentinel to Unlimited and passes
// every other value through.
func MaxProductsFromUpstream(n int64) MaxProducts {
	if n == UnlimitedMaxProductsSentinel {
		return UnlimitedMaxProducts()
	}
	return LimitedMaxProducts(n)
}

func (m MaxProducts) String() string {
	if m.Unlimited {
		return UnlimitedLabel
	}
	return strconv.FormatInt(m.Value, 10)
}

func (m MaxProducts) MarshalJSON() ([]byte, error) {
	if m.Unlimited {
		return json.Marshal(UnlimitedLabel)
	}
	return []byte(strconv.FormatInt(m.Value, 10)), nil
}

func (m *MaxProducts) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = MaxProducts{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != UnlimitedLabel {
			return fmt.Errorf("invalid maxProducts %q", s)
		}
		*m = UnlimitedMaxProducts()
		return nil
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid maxProducts %s: %w", data, err)
	}
	*m = MaxProductsFromUpstream(n)
	return nil
}
