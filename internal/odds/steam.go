package odds

import (
	"fmt"
	"math"
)

// Steam directions.
const (
	TowardHome = "toward_home"
	TowardAway = "toward_away"
)

// Steam is the result of the steam-move rule for one event.
type Steam struct {
	Detected  bool
	Direction string // TowardHome, TowardAway, or "" when not detected
	Note      string
}

// DetectSteam applies the steam rule to the home/away % price changes.
// A move is flagged when |Δ| ≥ thresholdPct on either side. The direction is
// the side whose price shortened past the threshold (the larger shortening
// when both did). A drift without a matching shortening is read as money on
// the opposite side.
func DetectSteam(homeChangePct, awayChangePct, thresholdPct float64) Steam {
	if math.Abs(homeChangePct) < thresholdPct && math.Abs(awayChangePct) < thresholdPct {
		return Steam{}
	}

	homeShortened := homeChangePct <= -thresholdPct
	awayShortened := awayChangePct <= -thresholdPct

	switch {
	case homeShortened && awayShortened:
		if homeChangePct <= awayChangePct {
			return steamOn(TowardHome, "home", homeChangePct)
		}
		return steamOn(TowardAway, "away", awayChangePct)
	case homeShortened:
		return steamOn(TowardHome, "home", homeChangePct)
	case awayShortened:
		return steamOn(TowardAway, "away", awayChangePct)
	}

	// Only drifts crossed the threshold
	if homeChangePct >= awayChangePct {
		return Steam{
			Detected:  true,
			Direction: TowardAway,
			Note:      fmt.Sprintf("Home price drifted %+.1f%%: money on away", homeChangePct),
		}
	}
	return Steam{
		Detected:  true,
		Direction: TowardHome,
		Note:      fmt.Sprintf("Away price drifted %+.1f%%: money on home", awayChangePct),
	}
}

func steamOn(direction, side string, change float64) Steam {
	return Steam{
		Detected:  true,
		Direction: direction,
		Note:      fmt.Sprintf("Steam on %s: price shortened %.1f%%", side, change),
	}
}
