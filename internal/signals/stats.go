package signals

import (
	"strings"

	"market-intel/internal/mathutil"
)

// TeamStats is one side's raw input for a single analysis request.
// Counts are season-to-date unless the caller scopes them otherwise.
type TeamStats struct {
	Form         string           `json:"form"` // most recent result first, e.g. "WWDLW"
	Wins         int              `json:"wins"`
	Draws        int              `json:"draws"`
	Losses       int              `json:"losses"`
	GamesPlayed  int              `json:"games_played"`
	Scored       float64          `json:"scored"`   // goals or points
	Conceded     float64          `json:"conceded"` // goals or points
	H2H          HeadToHead       `json:"h2h"`
	Advanced     *AdvancedMetrics `json:"advanced,omitempty"`
	Injuries     int              `json:"injuries"`
	KeyAbsentees []string         `json:"key_absentees,omitempty"`
}

// HeadToHead is a side's record in previous meetings with this opponent.
type HeadToHead struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
	Total  int `json:"total"`
}

// AdvancedMetrics are optional per-game expected-for/against figures (xG, xPts).
type AdvancedMetrics struct {
	ExpectedFor     float64 `json:"expected_for"`
	ExpectedAgainst float64 `json:"expected_against"`
}

// games is GamesPlayed as a divisor; negative counts read as none played.
func (t TeamStats) games() float64 {
	return float64(max(t.GamesPlayed, 0))
}

func (t TeamStats) winRate() float64 {
	return mathutil.SafeDiv(float64(t.Wins), t.games(), neutralWinRate)
}

func (t TeamStats) scoredPerGame() float64 {
	return mathutil.SafeDiv(t.Scored, t.games(), 0)
}

func (t TeamStats) concededPerGame() float64 {
	return mathutil.SafeDiv(t.Conceded, t.games(), 0)
}

func (t TeamStats) diffPerGame() float64 {
	return t.scoredPerGame() - t.concededPerGame()
}

// ratings returns (offense, defense) per game.
func (t TeamStats) ratings() (float64, float64) {
	return t.scoredPerGame(), t.concededPerGame()
}

func (t TeamStats) keyAbsentees() []string {
	var out []string
	for _, name := range t.KeyAbsentees {
		if n := strings.TrimSpace(name); n != "" {
			out = append(out, n)
		}
	}
	return out
}
