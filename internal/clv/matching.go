package clv

import (
	"strings"
	"unicode"

	"market-intel/internal/api"
	"market-intel/internal/store"
)

// Sides
const (
	SideHome = "home"
	SideDraw = "draw"
	SideAway = "away"
)

// Match confidence
const (
	matchNone = iota
	matchLoose
	matchExact
)

const minTokenLen = 3

func normalizeName(s string) string {
	return strings.Join(words(s), " ")
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func lastToken(s string) string {
	w := words(s)
	if len(w) == 0 {
		return ""
	}
	return w[len(w)-1]
}

// teamMatch compares two names for the same team. Full-name containment in
// either direction is exact; containment of the last tokens is loose.
func teamMatch(a, b string) int {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return matchNone
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return matchExact
	}

	ta, tb := lastToken(na), lastToken(nb)
	short, long := ta, tb
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) >= minTokenLen && strings.Contains(long, short) {
		return matchLoose
	}
	return matchNone
}

// findEvent locates the prediction's event. A provider id stored as the
// match reference wins outright; otherwise both team names must match, and
// exact matches are preferred over loose ones. loose reports a heuristic match.
func findEvent(events []api.Event, p store.Prediction) (ev *api.Event, loose bool) {
	if p.MatchRef != "" {
		for i := range events {
			if events[i].ID == p.MatchRef {
				return &events[i], false
			}
		}
	}

	var fallback *api.Event
	for i := range events {
		home := teamMatch(p.HomeTeam, events[i].HomeTeam)
		away := teamMatch(p.AwayTeam, events[i].AwayTeam)
		if home == matchNone || away == matchNone {
			continue
		}
		if home == matchExact && away == matchExact {
			return &events[i], false
		}
		if fallback == nil {
			fallback = &events[i]
		}
	}
	return fallback, fallback != nil
}

// ResolveSide reads which outcome a free-text prediction backs. It returns ""
// when the text names no side or more than one.
func ResolveSide(text, homeTeam, awayTeam string) string {
	lower := strings.ToLower(text)
	set := make(map[string]bool)
	for _, w := range words(text) {
		set[w] = true
	}

	var sides []string
	if set["draw"] || set["tie"] {
		sides = append(sides, SideDraw)
	}
	if strings.Contains(lower, "home win") || set["home"] {
		sides = append(sides, SideHome)
	}
	if strings.Contains(lower, "away win") || set["away"] {
		sides = append(sides, SideAway)
	}
	if len(sides) == 1 {
		return sides[0]
	}
	if len(sides) > 1 {
		return ""
	}

	home := mentionsTeam(lower, set, homeTeam)
	away := mentionsTeam(lower, set, awayTeam)
	switch {
	case home && !away:
		return SideHome
	case away && !home:
		return SideAway
	}
	return ""
}

func mentionsTeam(lowerText string, textWords map[string]bool, team string) bool {
	name := normalizeName(team)
	if name == "" {
		return false
	}
	if strings.Contains(normalizeName(lowerText), name) {
		return true
	}
	last := lastToken(name)
	return len(last) >= minTokenLen && textWords[last]
}

// bookmakerFor prefers the sharp bookmaker, else the first with an h2h market.
func bookmakerFor(ev api.Event, sharp string) (api.Bookmaker, api.Market, bool) {
	var first *api.Bookmaker
	var firstMarket api.Market
	for i, bm := range ev.Bookmakers {
		m, ok := bm.Market(api.MarketH2H)
		if !ok {
			continue
		}
		if strings.EqualFold(bm.Key, sharp) {
			return bm, m, true
		}
		if first == nil {
			first = &ev.Bookmakers[i]
			firstMarket = m
		}
	}
	if first == nil {
		return api.Bookmaker{}, api.Market{}, false
	}
	return *first, firstMarket, true
}
