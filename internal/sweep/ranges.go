package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const maxPenalties = 10000

// ParsePenalties accepts either a "min:max:step" range (inclusive) or a comma
// separated list. Every value must be finite and non-negative.
func ParsePenalties(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty penalty list")
	}
	var values []float64
	if strings.Contains(s, ":") {
		spec, err := parseRange(s)
		if err != nil {
			return nil, err
		}
		values = spec.values()
		if len(values) == 0 {
			return nil, fmt.Errorf("range %q yields no penalties", s)
		}
	} else {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid penalty %q: %w", part, err)
			}
			values = append(values, v)
		}
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("penalty %v must be finite and non-negative", v)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty penalty list")
	}
	return values, nil
}

type rangeSpec struct {
	min, max, step float64
}

func parseRange(s string) (rangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return rangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}
	var nums [3]float64
	names := [3]string{"min", "max", "step"}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return rangeSpec{}, fmt.Errorf("invalid %s value %q: %w", names[i], part, err)
		}
		nums[i] = v
	}
	if nums[2] <= 0 {
		return rangeSpec{}, fmt.Errorf("step must be positive, got %g", nums[2])
	}
	if nums[0] > nums[1] {
		return rangeSpec{}, fmt.Errorf("min %g exceeds max %g", nums[0], nums[1])
	}
	return rangeSpec{min: nums[0], max: nums[1], step: nums[2]}, nil
}

// values steps by index rather than accumulating, rounding to micro-units so
// 0:1:0.1 ends exactly at 1.
func (r rangeSpec) values() []float64 {
	count := int(math.Floor((r.max-r.min)/r.step+1e-9)) + 1
	if count <= 0 || count > maxPenalties {
		return nil
	}
	out := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		v := math.Round((r.min+float64(i)*r.step)*1e6) / 1e6
		if v > r.max {
			break
		}
		out = append(out, v)
	}
	return out
}
