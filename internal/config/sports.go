package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category groups sports that share scoring scale and tempo bands.
type Category string

const (
	Soccer     Category = "soccer"
	Basketball Category = "basketball"
	Football   Category = "football"
	Hockey     Category = "hockey"
)

// SportProfile is one row of the sports catalog. The poller covers every
// profile in the catalog; the analysis path looks profiles up by key or category.
type SportProfile struct {
	Key      string   `yaml:"key"`
	League   string   `yaml:"league"`
	HasDraw  bool     `yaml:"has_draw"` // never inherited; must be explicit in SPORTS_FILE
	Category Category `yaml:"category"`

	// Per-team scoring rate per game delimiting low/medium/high tempo.
	TempoLow  float64 `yaml:"tempo_low"`
	TempoHigh float64 `yaml:"tempo_high"`

	// Fixed home-advantage term of the strength edge, in percentage points.
	HomeAdvantage float64 `yaml:"home_advantage"`

	// Minimum |% change| of a consensus price counted as a steam move.
	SteamThresholdPct float64 `yaml:"steam_threshold_pct"`

	// Minimum net-rating gap for a non-"none" efficiency edge.
	EfficiencyThreshold float64 `yaml:"efficiency_threshold"`
}

// Thresholds are the sport-independent bands used by the value detector,
// the line-movement read and the poller's alert classification.
type Thresholds struct {
	ValueStrong   float64 `yaml:"value_strong"`
	ValueModerate float64 `yaml:"value_moderate"`
	ValueSlight   float64 `yaml:"value_slight"` // edge must be strictly greater

	OverpricedEdge float64 `yaml:"overpriced_edge"`
	AvoidBelow     float64 `yaml:"avoid_below"` // model confidence score

	LineStable     float64 `yaml:"line_stable"` // decimal-odds units
	LineModerate   float64 `yaml:"line_moderate"`
	LineSharp      float64 `yaml:"line_sharp"`
	LineSuspicious float64 `yaml:"line_suspicious"`

	AlertHighEdge   float64 `yaml:"alert_high_edge"`
	AlertMediumEdge float64 `yaml:"alert_medium_edge"`
	AlertLowEdge    float64 `yaml:"alert_low_edge"`
}

// DefaultThresholds returns the production bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ValueStrong:     10,
		ValueModerate:   6,
		ValueSlight:     3,
		OverpricedEdge:  -5,
		AvoidBelow:      40,
		LineStable:      0.05,
		LineModerate:    0.08,
		LineSharp:       0.15,
		LineSuspicious:  0.2,
		AlertHighEdge:   5,
		AlertMediumEdge: 8,
		AlertLowEdge:    3,
	}
}

// categoryDefaults holds the tempo bands and constants shared by every
// league of a category.
var categoryDefaults = map[Category]SportProfile{
	Soccer:     {Category: Soccer, HasDraw: true, TempoLow: 1.2, TempoHigh: 1.8, HomeAdvantage: 3, SteamThresholdPct: 2.5, EfficiencyThreshold: 0.2},
	Basketball: {Category: Basketball, TempoLow: 105, TempoHigh: 115, HomeAdvantage: 3, SteamThresholdPct: 2.5, EfficiencyThreshold: 0.2},
	Football:   {Category: Football, TempoLow: 20, TempoHigh: 28, HomeAdvantage: 3, SteamThresholdPct: 2.5, EfficiencyThreshold: 0.2},
	Hockey:     {Category: Hockey, TempoLow: 2.5, TempoHigh: 3.5, HomeAdvantage: 3, SteamThresholdPct: 2.5, EfficiencyThreshold: 0.2},
}

// CategoryProfile returns the category-level profile (no key or league).
// Unknown categories fall back to soccer.
func CategoryProfile(c Category) SportProfile {
	if p, ok := categoryDefaults[c]; ok {
		return p
	}
	return categoryDefaults[Soccer]
}

// CategoryForKey derives the category from a provider sport key such as
// "soccer_epl" or "icehockey_nhl".
func CategoryForKey(sportKey string) Category {
	k := strings.ToLower(sportKey)
	switch {
	case strings.HasPrefix(k, "soccer"):
		return Soccer
	case strings.HasPrefix(k, "basketball"):
		return Basketball
	case strings.HasPrefix(k, "americanfootball"), strings.HasPrefix(k, "football"):
		return Football
	case strings.HasPrefix(k, "icehockey"), strings.HasPrefix(k, "hockey"):
		return Hockey
	}
	return Soccer
}

func profile(key, league string, hasDraw bool) SportProfile {
	p := CategoryProfile(CategoryForKey(key))
	p.Key = key
	p.League = league
	p.HasDraw = hasDraw
	return p
}

// DefaultSports is the built-in catalog covered by the poller.
func DefaultSports() []SportProfile {
	return []SportProfile{
		profile("soccer_epl", "Premier League", true),
		profile("soccer_spain_la_liga", "La Liga", true),
		profile("soccer_germany_bundesliga", "Bundesliga", true),
		profile("soccer_italy_serie_a", "Serie A", true),
		profile("soccer_france_ligue_one", "Ligue 1", true),
		profile("soccer_uefa_champs_league", "Champions League", true),
		profile("basketball_nba", "NBA", false),
		profile("americanfootball_nfl", "NFL", false),
		profile("icehockey_nhl", "NHL", false),
	}
}

// Catalog is the YAML shape of SPORTS_FILE.
type Catalog struct {
	Sports     []SportProfile `yaml:"sports"`
	Thresholds *Thresholds    `yaml:"thresholds"`
}

// LoadCatalog returns the sports catalog and thresholds. An empty path yields
// the built-in defaults. Fields omitted in the file inherit the category defaults.
func LoadCatalog(path string) ([]SportProfile, Thresholds, error) {
	if path == "" {
		return DefaultSports(), DefaultThresholds(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Thresholds{}, fmt.Errorf("reading sports file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) ([]SportProfile, Thresholds, error) {
	// Thresholds the document leaves out keep their defaults.
	defaults := DefaultThresholds()
	cat := Catalog{Thresholds: &defaults}
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, Thresholds{}, fmt.Errorf("parsing sports file: %w", err)
	}
	if len(cat.Sports) == 0 {
		return nil, Thresholds{}, fmt.Errorf("sports file lists no sports")
	}

	sports := make([]SportProfile, 0, len(cat.Sports))
	seen := make(map[string]bool)
	for _, s := range cat.Sports {
		if s.Key == "" {
			return nil, Thresholds{}, fmt.Errorf("sports file entry without key")
		}
		if seen[s.Key] {
			return nil, Thresholds{}, fmt.Errorf("duplicate sport key %q", s.Key)
		}
		seen[s.Key] = true
		sports = append(sports, withDefaults(s))
	}

	th := DefaultThresholds()
	if cat.Thresholds != nil {
		th = *cat.Thresholds
	}
	return sports, th, nil
}

func withDefaults(s SportProfile) SportProfile {
	if s.Category == "" {
		s.Category = CategoryForKey(s.Key)
	}
	d := CategoryProfile(s.Category)
	if s.League == "" {
		s.League = s.Key
	}
	if s.TempoLow == 0 {
		s.TempoLow = d.TempoLow
	}
	if s.TempoHigh == 0 {
		s.TempoHigh = d.TempoHigh
	}
	if s.HomeAdvantage == 0 {
		s.HomeAdvantage = d.HomeAdvantage
	}
	if s.SteamThresholdPct == 0 {
		s.SteamThresholdPct = d.SteamThresholdPct
	}
	if s.EfficiencyThreshold == 0 {
		s.EfficiencyThreshold = d.EfficiencyThreshold
	}
	return s
}

// FindSport looks a profile up by sport key.
func FindSport(sports []SportProfile, key string) (SportProfile, bool) {
	for _, s := range sports {
		if s.Key == key {
			return s, true
		}
	}
	return SportProfile{}, false
}
