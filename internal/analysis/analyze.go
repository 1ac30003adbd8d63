package analysis

import (
	"strings"

	"market-intel/internal/config"
	"market-intel/internal/model"
	"market-intel/internal/signals"
	"market-intel/internal/value"
)

// Request is one match-analysis call. Sport is a catalog key ("soccer_epl")
// or a bare category ("basketball"). Odds are optional; without them only the
// signals and the model probability are returned.
type Request struct {
	Sport        string            `json:"sport"`
	HomeTeam     string            `json:"home_team,omitempty"`
	AwayTeam     string            `json:"away_team,omitempty"`
	Home         signals.TeamStats `json:"home"`
	Away         signals.TeamStats `json:"away"`
	HasDraw      *bool             `json:"has_draw,omitempty"` // overrides the sport profile
	Odds         *value.Odds       `json:"odds,omitempty"`
	PreviousOdds *value.Odds       `json:"previous_odds,omitempty"`
}

// Result is the full read of one match.
type Result struct {
	Sport       string            `json:"sport"`
	HomeTeam    string            `json:"home_team,omitempty"`
	AwayTeam    string            `json:"away_team,omitempty"`
	Signals     signals.Signals   `json:"signals"`
	Probability model.Probability `json:"probability"`
	Market      *value.Report     `json:"market,omitempty"`
	Stake       *Stake            `json:"stake,omitempty"`
}

// Analyzer runs the synchronous signals → probability → value path.
type Analyzer struct {
	sports        []config.SportProfile
	thresholds    config.Thresholds
	kellyFraction float64
}

// New creates an analyzer over a sports catalog.
func New(sports []config.SportProfile, th config.Thresholds) *Analyzer {
	return &Analyzer{
		sports:        sports,
		thresholds:    th,
		kellyFraction: DefaultKellyFraction,
	}
}

// Profile resolves a sport key or category name to a profile. Unknown keys
// fall back to the profile of the category their prefix names.
func (a *Analyzer) Profile(sport string) config.SportProfile {
	if p, ok := config.FindSport(a.sports, sport); ok {
		return p
	}
	c := config.Category(strings.ToLower(sport))
	switch c {
	case config.Soccer, config.Basketball, config.Football, config.Hockey:
	default:
		c = config.CategoryForKey(sport)
	}
	p := config.CategoryProfile(c)
	p.Key = sport
	return p
}

// Analyze never fails: sparse stats degrade to neutral signals and a missing
// or unusable price set leaves Market nil.
func (a *Analyzer) Analyze(req Request) Result {
	sport := a.Profile(req.Sport)
	if req.HasDraw != nil {
		sport.HasDraw = *req.HasDraw
	}

	sig := signals.Normalize(req.Home, req.Away, sport)
	prob := model.Estimate(sig, sport.HasDraw)

	res := Result{
		Sport:       sport.Key,
		HomeTeam:    req.HomeTeam,
		AwayTeam:    req.AwayTeam,
		Signals:     sig,
		Probability: prob,
	}
	if req.Odds == nil || (req.Odds.Home <= 1 && req.Odds.Away <= 1) {
		return res
	}

	report := value.Detect(prob, *req.Odds, req.PreviousOdds, a.thresholds)
	res.Market = &report

	if report.Value.HasValue() {
		var p int
		var price float64
		switch report.Value.Outcome {
		case value.OutcomeHome:
			p, price = prob.Home, req.Odds.Home
		case value.OutcomeDraw:
			p, price = prob.Draw, req.Odds.Draw
		case value.OutcomeAway:
			p, price = prob.Away, req.Odds.Away
		}
		res.Stake = sizeStake(report.Value.Outcome, p, price, a.kellyFraction)
	}
	return res
}
