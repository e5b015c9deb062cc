package pricing

import (
	"sort"
	"strconv"
	"strings"
)

// ParsePrice turns a formatted currency string ("₱1,250.50", "PHP 300") into
// a number by stripping everything that isn't a digit or a dot. Empty or
// unparseable input is 0 — the caller decides whether 0 means "free" or
// "unknown" (it always means unknown here).
func ParsePrice(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return 0
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// Median of the given values; 0 for an empty set. Input is not mutated.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
