package value

import (
	"fmt"
	"math"

	"market-intel/internal/config"
	"market-intel/internal/mathutil"
	"market-intel/internal/model"
	"market-intel/internal/odds"
)

// Outcomes
const (
	OutcomeHome = "home"
	OutcomeDraw = "draw"
	OutcomeAway = "away"
)

// Value strengths
const (
	StrengthStrong   = "strong"
	StrengthModerate = "moderate"
	StrengthSlight   = "slight"
	StrengthNone     = "none"
)

// Recommendations
const (
	StrongValue = "strong_value"
	SlightValue = "slight_value"
	Overpriced  = "overpriced"
	Avoid       = "avoid"
	FairPrice   = "fair_price"
)

// Line movement reads
const (
	MoveStable   = "stable"
	MoveMinor    = "minor"
	MoveModerate = "moderate"
	MoveSharp    = "sharp"
)

// NoValueLabel is the label of an Edge with no outcome.
const NoValueLabel = "No clear value"

// Odds are decimal prices for one event. Draw is 0 when not offered.
type Odds struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw,omitempty"`
	Away float64 `json:"away"`
}

// Triple holds one number per outcome. Draw is 0 when not applicable.
type Triple struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// Edge is the chosen value outcome. Outcome is empty when no outcome clears
// the slight band.
type Edge struct {
	Outcome  string  `json:"outcome,omitempty"`
	Edge     float64 `json:"edge"`
	Label    string  `json:"label"`
	Strength string  `json:"strength"`
}

// HasValue reports whether an outcome was chosen.
func (e Edge) HasValue() bool {
	return e.Outcome != ""
}

// LineMovement reads the home-price change between two quotes.
type LineMovement struct {
	Delta      float64 `json:"delta"` // current - previous, decimal-odds units
	Direction  string  `json:"direction"`
	Magnitude  string  `json:"magnitude"`
	Suspicious bool    `json:"suspicious"`
}

// Report is the value read plus the market summary around it.
type Report struct {
	Implied        Triple        `json:"implied"`
	Edges          Triple        `json:"edges"`
	Value          Edge          `json:"value"`
	BestEdge       float64       `json:"best_edge"`
	Margin         float64       `json:"margin"`
	Movement       *LineMovement `json:"movement,omitempty"`
	Recommendation string        `json:"recommendation"`
}

type candidate struct {
	outcome string
	model   int
	price   float64
	edge    *float64
	implied *float64
}

// Detect compares a model estimate with market prices. previous may be nil;
// when given, the home-price movement is read as well. Unpriced outcomes
// (price ≤ 1) are skipped.
//
// Outcomes are evaluated home, away, then draw; a later outcome replaces the
// current pick only with a strictly larger edge.
func Detect(p model.Probability, current Odds, previous *Odds, th config.Thresholds) Report {
	var r Report

	candidates := []candidate{
		{OutcomeHome, p.Home, current.Home, &r.Edges.Home, &r.Implied.Home},
		{OutcomeAway, p.Away, current.Away, &r.Edges.Away, &r.Implied.Away},
	}
	if p.HasDraw {
		candidates = append(candidates, candidate{OutcomeDraw, p.Draw, current.Draw, &r.Edges.Draw, &r.Implied.Draw})
	}

	var implied []float64
	best := math.Inf(-1)
	pick := Edge{Label: NoValueLabel, Strength: StrengthNone}

	for _, c := range candidates {
		if c.price <= 1 {
			continue
		}
		imp := odds.ImpliedPercent(c.price)
		edge := mathutil.Round1(float64(c.model) - imp)
		*c.implied = imp
		*c.edge = edge
		implied = append(implied, imp)

		if edge > best {
			best = edge
		}
		if edge > th.ValueSlight && edge > pick.Edge {
			pick = Edge{Outcome: c.outcome, Edge: edge}
		}
	}

	if math.IsInf(best, -1) {
		best = 0
	}
	r.BestEdge = best

	if pick.HasValue() {
		pick.Strength = strength(pick.Edge, th)
		pick.Label = fmt.Sprintf("%s value on %s (+%.1f%%)", titleCase(pick.Strength), pick.Outcome, pick.Edge)
	}
	r.Value = pick

	// A draw price still counts toward the margin when the model has no draw
	if !p.HasDraw && current.Draw > 1 {
		implied = append(implied, odds.ImpliedPercent(current.Draw))
	}
	r.Margin = odds.Margin(implied...)

	if previous != nil {
		m := Movement(previous.Home, current.Home, th)
		r.Movement = &m
	}

	r.Recommendation = recommend(pick, best, p.ConfidenceScore, th)
	return r
}

// strength bands an edge. A +8.3 edge is moderate, which still recommends
// strong_value.
func strength(edge float64, th config.Thresholds) string {
	switch {
	case edge >= th.ValueStrong:
		return StrengthStrong
	case edge >= th.ValueModerate:
		return StrengthModerate
	case edge > th.ValueSlight:
		return StrengthSlight
	}
	return StrengthNone
}

func recommend(pick Edge, bestEdge float64, confidenceScore int, th config.Thresholds) string {
	switch pick.Strength {
	case StrengthStrong, StrengthModerate:
		return StrongValue
	case StrengthSlight:
		return SlightValue
	}
	if bestEdge < th.OverpricedEdge {
		return Overpriced
	}
	if float64(confidenceScore) < th.AvoidBelow {
		return Avoid
	}
	return FairPrice
}

// Movement reads the change of a home price. A shortening beyond the stable
// band is money toward home; a lengthening is money toward away.
func Movement(previousHome, currentHome float64, th config.Thresholds) LineMovement {
	if previousHome <= 1 || currentHome <= 1 {
		return LineMovement{Direction: MoveStable, Magnitude: MoveMinor}
	}

	delta := mathutil.Round(currentHome-previousHome, 3)
	abs := math.Abs(delta)

	m := LineMovement{Delta: delta, Direction: MoveStable, Magnitude: MoveMinor}
	switch {
	case delta < -th.LineStable:
		m.Direction = odds.TowardHome
	case delta > th.LineStable:
		m.Direction = odds.TowardAway
	}
	switch {
	case abs >= th.LineSharp:
		m.Magnitude = MoveSharp
	case abs >= th.LineModerate:
		m.Magnitude = MoveModerate
	}
	m.Suspicious = abs > th.LineSuspicious
	return m
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
