package analysis

import (
	"math"

	"market-intel/internal/mathutil"
)

// DefaultKellyFraction scales full Kelly down to quarter Kelly.
const DefaultKellyFraction = 0.25

// Stake sizes the value pick of an analysis.
type Stake struct {
	Outcome       string  `json:"outcome"`
	Odds          float64 `json:"odds"`
	ExpectedValue float64 `json:"expected_value"` // percent of stake
	Kelly         float64 `json:"kelly"`          // fraction of bankroll, already scaled
}

// ExpectedValue returns the expected profit per unit staked at decimal odds
// for a win probability p in [0,1].
// EV = p * (d - 1) - (1 - p)
func ExpectedValue(p, decimalOdds float64) float64 {
	if decimalOdds <= 1 || p <= 0 {
		return 0
	}
	return p*decimalOdds - 1
}

// CalculateKellyDecimal computes Kelly for decimal odds
// f* = (p * d - 1) / (d - 1)
// where d = decimal odds
func CalculateKellyDecimal(trueProb, decimalOdds, fraction float64) float64 {
	if decimalOdds <= 1 || trueProb <= 0 || trueProb >= 1 {
		return 0
	}

	p := trueProb
	d := decimalOdds

	kelly := (p*d - 1) / (d - 1)

	kelly = math.Max(0, kelly)
	kelly = math.Min(kelly, 1.0)

	return kelly * fraction
}

// sizeStake returns the stake for an outcome priced at decimalOdds with model
// probability prob (percent), or nil when the bet has no positive expectation.
func sizeStake(outcome string, prob int, decimalOdds, fraction float64) *Stake {
	p := float64(prob) / 100
	ev := ExpectedValue(p, decimalOdds)
	if ev <= 0 {
		return nil
	}
	return &Stake{
		Outcome:       outcome,
		Odds:          decimalOdds,
		ExpectedValue: mathutil.Round(ev*100, 2),
		Kelly:         mathutil.Round(CalculateKellyDecimal(p, decimalOdds, fraction), 4),
	}
}
