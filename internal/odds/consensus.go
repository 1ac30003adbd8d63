package odds

import (
	"strings"

	"market-intel/internal/api"
	"market-intel/internal/mathutil"
)

// ConsensusOdds is the arithmetic mean of each h2h outcome's price across
// every bookmaker quoting it for one event.
type ConsensusOdds struct {
	Home      float64
	Draw      float64 // 0 when no bookmaker priced a draw
	Away      float64
	BookCount int // bookmakers exposing an h2h market with both sides priced
}

// HasDraw reports whether a draw price is present.
func (c ConsensusOdds) HasDraw() bool {
	return c.Draw > 1
}

// Consensus computes ConsensusOdds for an event. The second return value is
// false when no bookmaker priced both sides of the h2h market.
func Consensus(event api.Event) (ConsensusOdds, bool) {
	var homes, draws, aways []float64

	for _, bm := range event.Bookmakers {
		market, ok := bm.Market(api.MarketH2H)
		if !ok {
			continue
		}

		var home, draw, away float64
		for _, o := range market.Outcomes {
			if o.Price <= 1 {
				continue
			}
			switch {
			case strings.EqualFold(o.Name, event.HomeTeam):
				home = o.Price
			case strings.EqualFold(o.Name, event.AwayTeam):
				away = o.Price
			case strings.EqualFold(o.Name, api.DrawOutcome):
				draw = o.Price
			}
		}

		// Skip books with a one-sided market
		if home == 0 || away == 0 {
			continue
		}
		homes = append(homes, home)
		aways = append(aways, away)
		if draw > 0 {
			draws = append(draws, draw)
		}
	}

	if len(homes) == 0 {
		return ConsensusOdds{}, false
	}

	return ConsensusOdds{
		Home:      mathutil.Round(mathutil.Mean(homes), 3),
		Draw:      mathutil.Round(mathutil.Mean(draws), 3),
		Away:      mathutil.Round(mathutil.Mean(aways), 3),
		BookCount: len(homes),
	}, true
}
