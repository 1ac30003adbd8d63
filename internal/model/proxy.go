package model

import "market-intel/internal/odds"

const (
	proxyRegression    = 0.15 // weight of the uniform prior
	proxyUnderdogBoost = 2.0
	proxyMediumBooks   = 4
	proxyHighBooks     = 6
)

// EstimateFromMarket is the poller's lightweight estimator: the vig-free
// consensus probabilities regressed 15% toward a uniform split, with a small
// boost to the longer-priced side. It shares normalization with Estimate so
// both estimators honor the same sum and clamp rules.
//
// Confidence follows the number of bookmakers behind the consensus.
func EstimateFromMarket(c odds.ConsensusOdds, hasDraw bool) Probability {
	hasDraw = hasDraw && c.HasDraw()

	var p pools
	if hasDraw {
		fair := odds.FairPercents(c.Home, c.Draw, c.Away)
		p = pools{home: fair[0], draw: fair[1], away: fair[2]}
	} else {
		fair := odds.FairPercents(c.Home, c.Away)
		p = pools{home: fair[0], away: fair[1]}
	}

	if p.home+p.draw+p.away > 0 {
		n := 2.0
		if hasDraw {
			n = 3
		}
		prior := 100 / n
		p.home = (1-proxyRegression)*p.home + proxyRegression*prior
		p.away = (1-proxyRegression)*p.away + proxyRegression*prior
		if hasDraw {
			p.draw = (1-proxyRegression)*p.draw + proxyRegression*prior
		}

		if c.Away > c.Home {
			p.away += proxyUnderdogBoost
		} else if c.Home > c.Away {
			p.home += proxyUnderdogBoost
		}
	}

	out := normalize(p, hasDraw)
	out.Fidelity = FidelityProxy
	switch {
	case c.BookCount >= proxyHighBooks:
		out.setConfidence(3)
	case c.BookCount >= proxyMediumBooks:
		out.setConfidence(2)
	default:
		out.setConfidence(1)
	}
	return out
}
