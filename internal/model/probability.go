package model

import (
	"math"

	"market-intel/internal/mathutil"
	"market-intel/internal/signals"
)

// Fidelity says which estimator produced a Probability.
type Fidelity string

const (
	// FidelityFull is the signal-driven estimate used by match analysis.
	FidelityFull Fidelity = "full"
	// FidelityProxy is the market-derived estimate the poller uses to classify alerts.
	// It is not an independent forecast: it starts from the consensus price itself.
	FidelityProxy Fidelity = "proxy"
)

// Confidence bands
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

const (
	strengthFavoredShare = 0.8
	strengthOtherShare   = 0.5
	strengthDrawShare    = 0.3
	formDelta            = 5.0
	efficiencyFavored    = 3.0
	efficiencyOther      = 2.0
	availabilityDraw     = 3.0
	availabilityWin      = 1.0
	clearStrengthAt      = 5.0
	maxClarity           = 3
	minWinWithDraw       = 5
	maxWin               = 90
	minWinTwoWay         = 10
)

// Probability is a model estimate in integer percentages. Home+Draw+Away is
// always 100; Draw is 0 when the sport has no draw.
type Probability struct {
	Home            int      `json:"home"`
	Draw            int      `json:"draw"`
	Away            int      `json:"away"`
	HasDraw         bool     `json:"has_draw"`
	Confidence      string   `json:"confidence"`
	ConfidenceScore int      `json:"confidence_score"` // 0-100
	Fidelity        Fidelity `json:"fidelity"`
}

// Sum returns Home+Draw+Away.
func (p Probability) Sum() int {
	return p.Home + p.Draw + p.Away
}

// pools are unnormalised percentage weights.
type pools struct {
	home, draw, away float64
}

func baseline(hasDraw bool) pools {
	if hasDraw {
		return pools{home: 40, draw: 30, away: 30}
	}
	return pools{home: 50, away: 50}
}

// Estimate derives home/draw/away probabilities from normalized signals.
//
// Starting from the 40/30/30 (or 50/50) baseline it applies, in order, the
// strength edge, form labels, efficiency edge and availability impact, then
// normalizes to 100 with each win probability in [5, 90].
func Estimate(s signals.Signals, hasDraw bool) Probability {
	p := baseline(hasDraw)

	// Strength
	if m := s.Strength.Magnitude; m > 0 {
		switch s.Strength.Direction {
		case signals.DirectionHome:
			p.home += strengthFavoredShare * m
			p.away -= strengthOtherShare * m
		case signals.DirectionAway:
			p.away += strengthFavoredShare * m
			p.home -= strengthOtherShare * m
		}
		if hasDraw {
			p.draw -= strengthDrawShare * m
		}
	}

	// Form
	p.home += formAdjustment(s.HomeForm.Label)
	p.away += formAdjustment(s.AwayForm.Label)

	// Efficiency
	switch s.Efficiency.Direction {
	case signals.DirectionHome:
		p.home += efficiencyFavored
		p.away -= efficiencyOther
	case signals.DirectionAway:
		p.away += efficiencyFavored
		p.home -= efficiencyOther
	}

	// Availability
	if hasDraw && s.Availability.Level == signals.ImpactHigh {
		p.draw += availabilityDraw
		p.home -= availabilityWin
		p.away -= availabilityWin
	}

	out := normalize(p, hasDraw)
	out.Fidelity = FidelityFull
	out.setConfidence(clarity(s))
	return out
}

func formAdjustment(label string) float64 {
	switch label {
	case signals.FormStrong:
		return formDelta
	case signals.FormWeak:
		return -formDelta
	}
	return 0
}

// clarity counts how many signals point somewhere definite, capped at 3.
func clarity(s signals.Signals) int {
	n := 0
	if s.FormComparison != signals.Balanced {
		n++
	}
	if math.Abs(s.Strength.Value) >= clearStrengthAt && s.Strength.Direction != signals.DirectionEven {
		n++
	}
	if s.Efficiency.Direction != signals.DirectionNone {
		n++
	}
	if s.Availability.Level == signals.ImpactLow {
		n++
	}
	if n > maxClarity {
		n = maxClarity
	}
	return n
}

func (p *Probability) setConfidence(clarity int) {
	clarity = mathutil.ClampInt(clarity, 0, maxClarity)
	switch {
	case clarity >= 3:
		p.Confidence = ConfidenceHigh
	case clarity >= 2:
		p.Confidence = ConfidenceMedium
	default:
		p.Confidence = ConfidenceLow
	}
	p.ConfidenceScore = int(math.Round(float64(clarity) / maxClarity * 100))
}

// normalize scales the pools to integer percentages summing to exactly 100.
// Negative pools count as empty; an all-empty input falls back to the baseline.
func normalize(p pools, hasDraw bool) Probability {
	p.home = math.Max(p.home, 0)
	p.away = math.Max(p.away, 0)
	if hasDraw {
		p.draw = math.Max(p.draw, 0)
	} else {
		p.draw = 0
	}

	total := p.home + p.draw + p.away
	if total <= 0 {
		p = baseline(hasDraw)
		total = 100
	}

	if !hasDraw {
		home := mathutil.ClampInt(int(math.Round(p.home/total*100)), minWinTwoWay, maxWin)
		return Probability{Home: home, Away: 100 - home}
	}

	home := mathutil.ClampInt(int(math.Round(p.home/total*100)), minWinWithDraw, maxWin)
	away := mathutil.ClampInt(int(math.Round(p.away/total*100)), minWinWithDraw, maxWin)
	draw := 100 - home - away
	if draw < 0 {
		// Clamped wins overshoot 100: trim the larger one, draw goes to zero
		if home >= away {
			home += draw
		} else {
			away += draw
		}
		draw = 0
	}
	return Probability{Home: home, Draw: draw, Away: away, HasDraw: true}
}
