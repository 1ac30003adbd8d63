package odds

import "market-intel/internal/mathutil"

// Margin returns the bookmaker margin (overround) in percentage points:
// the sum of implied percentages minus 100. Zero entries are ignored.
func Margin(impliedPercents ...float64) float64 {
	var sum float64
	var n int
	for _, p := range impliedPercents {
		if p > 0 {
			sum += p
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return mathutil.Round1(sum - 100)
}

// RemoveVig removes the vig from a complete market by proportional
// normalisation and returns fair probabilities in [0, 1] that sum to 1.
//
// trueProb_i = implied_i / Σ implied
//
// Any non-positive input yields all zeros: a partial market cannot be de-vigged.
func RemoveVig(implied ...float64) []float64 {
	out := make([]float64, len(implied))
	var total float64
	for _, p := range implied {
		if p <= 0 {
			return out
		}
		total += p
	}
	if total <= 0 {
		return out
	}
	for i, p := range implied {
		out[i] = p / total
	}
	return out
}

// FairPercents converts a complete market of decimal prices to vig-free
// percentages rounded to two decimals.
func FairPercents(decimals ...float64) []float64 {
	implied := make([]float64, len(decimals))
	for i, d := range decimals {
		implied[i] = DecimalToImplied(d)
	}
	fair := RemoveVig(implied...)
	for i := range fair {
		fair[i] = mathutil.Round(fair[i]*100, 2)
	}
	return fair
}
