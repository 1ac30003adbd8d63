package signals

import (
	"fmt"
	"math"
	"strings"

	"market-intel/internal/config"
	"market-intel/internal/mathutil"
)

// Form labels
const (
	FormStrong  = "strong"
	FormNeutral = "neutral"
	FormWeak    = "weak"
)

// Form comparisons
const (
	HomeAdvantage = "home_advantage"
	AwayAdvantage = "away_advantage"
	Balanced      = "balanced"
)

// Edge directions. Strength uses DirectionEven below the cut-off; efficiency
// uses DirectionNone.
const (
	DirectionHome = "home"
	DirectionAway = "away"
	DirectionEven = "even"
	DirectionNone = "none"
)

// Tempo classes
const (
	TempoLow    = "low"
	TempoMedium = "medium"
	TempoHigh   = "high"
)

// Efficiency aspects
const (
	AspectOffense = "offense"
	AspectDefense = "defense"
)

// Availability impact levels
const (
	ImpactLow    = "low"
	ImpactMedium = "medium"
	ImpactHigh   = "high"
)

const (
	neutralFormRating  = 50.0
	neutralWinRate     = 0.5
	strongFormAt       = 65.0
	weakFormAt         = 35.0
	formGapForEdge     = 15.0
	goalDiffWeight     = 0.05
	h2hWeight          = 0.10
	maxStrengthEdge    = 20.0
	minStrengthEdge    = 3.0
	highImpactKeyOut   = 2
	mediumImpactInjury = 4
)

// formWeights weight the last five results, most recent first.
var formWeights = [...]float64{1.5, 1.3, 1.1, 1.0, 0.9}

// FormSignal is one side's recent-form read.
type FormSignal struct {
	Rating float64 `json:"rating"` // 0-100
	Label  string  `json:"label"`
}

// StrengthEdge is the overall strength read in percentage points, clamped to ±20.
type StrengthEdge struct {
	Direction string  `json:"direction"`
	Magnitude float64 `json:"magnitude"` // 0 when Direction is "even"
	Value     float64 `json:"value"`     // signed, home-positive, before the even cut-off
}

// EfficiencyEdge compares net (offense - defense) ratings.
type EfficiencyEdge struct {
	Direction string  `json:"direction"`
	Aspect    string  `json:"aspect,omitempty"`
	Gap       float64 `json:"gap"`
}

// Availability summarises injuries and key absentees.
type Availability struct {
	Level string `json:"level"`
	Side  string `json:"side"` // "home", "away", "both" or "none"
	Note  string `json:"note"`
}

// Signals are the normalized, sport-agnostic reads derived from raw stats.
type Signals struct {
	Category       config.Category `json:"category"`
	HomeForm       FormSignal      `json:"home_form"`
	AwayForm       FormSignal      `json:"away_form"`
	FormComparison string          `json:"form_comparison"`
	Strength       StrengthEdge    `json:"strength"`
	Tempo          string          `json:"tempo"`
	Efficiency     EfficiencyEdge  `json:"efficiency"`
	Availability   Availability    `json:"availability"`
}

// Normalize turns both sides' raw stats into Signals. It never fails: missing
// data degrades to neutral reads.
func Normalize(home, away TeamStats, sport config.SportProfile) Signals {
	homeForm := rateForm(home.Form, sport.HasDraw)
	awayForm := rateForm(away.Form, sport.HasDraw)

	return Signals{
		Category:       sport.Category,
		HomeForm:       homeForm,
		AwayForm:       awayForm,
		FormComparison: compareForm(homeForm.Rating, awayForm.Rating),
		Strength:       strengthEdge(home, away, sport.HomeAdvantage),
		Tempo:          tempo(home, away, sport),
		Efficiency:     efficiencyEdge(home, away, sport.EfficiencyThreshold),
		Availability:   availability(home, away),
	}
}

// FormRating returns the weighted 0-100 rating of a result string such as
// "WWDLW" (most recent first). Only the last five results count; characters
// other than W/D/L are skipped. An empty form rates 50.
func FormRating(form string, hasDraw bool) float64 {
	maxPoints := 1.0
	if hasDraw {
		maxPoints = 3.0
	}

	var earned, possible float64
	i := 0
	for _, r := range strings.ToUpper(form) {
		if i == len(formWeights) {
			break
		}
		var pts float64
		switch r {
		case 'W':
			pts = maxPoints
		case 'D':
			if hasDraw {
				pts = 1
			} else {
				pts = maxPoints / 2 // tie in a no-draw market
			}
		case 'L':
			pts = 0
		default:
			continue
		}
		earned += formWeights[i] * pts
		possible += formWeights[i] * maxPoints
		i++
	}

	if possible == 0 {
		return neutralFormRating
	}
	return mathutil.Round1(earned / possible * 100)
}

// FormLabel maps a rating to strong/neutral/weak.
func FormLabel(rating float64) string {
	switch {
	case rating >= strongFormAt:
		return FormStrong
	case rating <= weakFormAt:
		return FormWeak
	}
	return FormNeutral
}

func rateForm(form string, hasDraw bool) FormSignal {
	r := FormRating(form, hasDraw)
	return FormSignal{Rating: r, Label: FormLabel(r)}
}

func compareForm(home, away float64) string {
	gap := home - away
	switch {
	case gap >= formGapForEdge:
		return HomeAdvantage
	case gap <= -formGapForEdge:
		return AwayAdvantage
	}
	return Balanced
}

// strengthEdge = win-rate gap + 0.05 × goal-diff-per-game gap + 0.10 × h2h skew
// + home advantage, expressed in percentage points and clamped to ±20.
func strengthEdge(home, away TeamStats, homeAdvantagePts float64) StrengthEdge {
	raw := (home.winRate() - away.winRate()) +
		goalDiffWeight*(home.diffPerGame()-away.diffPerGame()) +
		h2hWeight*h2hSkew(home, away) +
		homeAdvantagePts/100

	value := mathutil.Round1(mathutil.Clamp(raw*100, -maxStrengthEdge, maxStrengthEdge))

	if math.Abs(value) < minStrengthEdge {
		return StrengthEdge{Direction: DirectionEven, Value: value}
	}
	dir := DirectionHome
	if value < 0 {
		dir = DirectionAway
	}
	return StrengthEdge{Direction: dir, Magnitude: math.Abs(value), Value: value}
}

// h2hSkew is the home side's (wins - losses) / total over past meetings, in [-1, 1].
// The away side's record is mirrored when only it is supplied.
func h2hSkew(home, away TeamStats) float64 {
	if home.H2H.Total > 0 {
		return float64(home.H2H.Wins-home.H2H.Losses) / float64(home.H2H.Total)
	}
	if away.H2H.Total > 0 {
		return float64(away.H2H.Losses-away.H2H.Wins) / float64(away.H2H.Total)
	}
	return 0
}

func tempo(home, away TeamStats, sport config.SportProfile) string {
	var rates []float64
	if home.GamesPlayed > 0 {
		rates = append(rates, home.scoredPerGame())
	}
	if away.GamesPlayed > 0 {
		rates = append(rates, away.scoredPerGame())
	}
	if len(rates) == 0 {
		return TempoMedium
	}

	avg := mathutil.Mean(rates)
	switch {
	case avg < sport.TempoLow:
		return TempoLow
	case avg > sport.TempoHigh:
		return TempoHigh
	}
	return TempoMedium
}

func efficiencyEdge(home, away TeamStats, threshold float64) EfficiencyEdge {
	homeOff, homeDef := home.ratings()
	awayOff, awayDef := away.ratings()

	// Expected-goals style metrics replace raw rates only when both sides have them
	if home.Advanced != nil && away.Advanced != nil {
		homeOff, homeDef = home.Advanced.ExpectedFor, home.Advanced.ExpectedAgainst
		awayOff, awayDef = away.Advanced.ExpectedFor, away.Advanced.ExpectedAgainst
	}

	gap := mathutil.Round((homeOff-homeDef)-(awayOff-awayDef), 2)
	if math.Abs(gap) < threshold {
		return EfficiencyEdge{Direction: DirectionNone, Gap: gap}
	}

	dir := DirectionHome
	if gap < 0 {
		dir = DirectionAway
	}

	offenseDiff := homeOff - awayOff
	defenseDiff := awayDef - homeDef
	aspect := AspectOffense
	if math.Abs(defenseDiff) > math.Abs(offenseDiff) {
		aspect = AspectDefense
	}

	return EfficiencyEdge{Direction: dir, Aspect: aspect, Gap: gap}
}

func impactLevel(t TeamStats) string {
	key := t.keyAbsentees()
	switch {
	case len(key) >= highImpactKeyOut:
		return ImpactHigh
	case len(key) == 1 || t.Injuries >= mediumImpactInjury:
		return ImpactMedium
	}
	return ImpactLow
}

var impactRank = map[string]int{ImpactLow: 0, ImpactMedium: 1, ImpactHigh: 2}

func availability(home, away TeamStats) Availability {
	homeLevel := impactLevel(home)
	awayLevel := impactLevel(away)

	level := homeLevel
	if impactRank[awayLevel] > impactRank[level] {
		level = awayLevel
	}

	side := "none"
	switch {
	case homeLevel != ImpactLow && awayLevel != ImpactLow:
		side = "both"
	case homeLevel != ImpactLow:
		side = DirectionHome
	case awayLevel != ImpactLow:
		side = DirectionAway
	}

	var parts []string
	if n := describeAbsences("Home", home); n != "" {
		parts = append(parts, n)
	}
	if n := describeAbsences("Away", away); n != "" {
		parts = append(parts, n)
	}
	note := "No significant absences"
	if len(parts) > 0 {
		note = strings.Join(parts, "; ")
	}

	return Availability{Level: level, Side: side, Note: note}
}

func describeAbsences(label string, t TeamStats) string {
	key := t.keyAbsentees()
	switch {
	case len(key) > 0:
		return fmt.Sprintf("%s without %s", label, strings.Join(key, ", "))
	case t.Injuries > 0:
		return fmt.Sprintf("%s: %d injured", label, t.Injuries)
	}
	return ""
}
