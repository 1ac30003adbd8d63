package odds

import "market-intel/internal/mathutil"

// DecimalToImplied converts a decimal price to an implied probability in [0, 1].
// Prices at or below 1.0 carry no information and map to 0.
func DecimalToImplied(decimal float64) float64 {
	if decimal <= 1 {
		return 0
	}
	return 1 / decimal
}

// ImpliedPercent returns round(100/decimal, 1).
// Example: 1.50 → 66.7, 2.00 → 50.0
func ImpliedPercent(decimal float64) float64 {
	if decimal <= 1 {
		return 0
	}
	return mathutil.Round1(100 / decimal)
}

// PercentChange returns the % change from prev to cur (negative = shortened).
// Returns 0 when there is no usable previous price.
func PercentChange(prev, cur float64) float64 {
	if prev <= 0 || cur <= 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
