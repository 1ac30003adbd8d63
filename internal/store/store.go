package store

import (
	"context"
	"time"
)

// ConsensusBookmaker is the bookmaker key of poller snapshots.
const ConsensusBookmaker = "consensus"

// Alert levels
const (
	AlertNone   = ""
	AlertLow    = "LOW"
	AlertMedium = "MEDIUM"
	AlertHigh   = "HIGH"
)

// Snapshot is the last consensus read of one event, keyed by
// (MatchRef, Sport, Bookmaker).
type Snapshot struct {
	MatchRef  string    `json:"match_ref"`
	Sport     string    `json:"sport"`
	League    string    `json:"league"`
	Bookmaker string    `json:"bookmaker"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	MatchDate time.Time `json:"match_date"`

	HomeOdds float64 `json:"home_odds"`
	DrawOdds float64 `json:"draw_odds"`
	AwayOdds float64 `json:"away_odds"`

	PrevHomeOdds float64 `json:"prev_home_odds"`
	PrevDrawOdds float64 `json:"prev_draw_odds"`
	PrevAwayOdds float64 `json:"prev_away_odds"`

	HomeChangePct float64 `json:"home_change_pct"`
	DrawChangePct float64 `json:"draw_change_pct"`
	AwayChangePct float64 `json:"away_change_pct"`

	ModelHome int `json:"model_home"`
	ModelDraw int `json:"model_draw"`
	ModelAway int `json:"model_away"`

	HomeEdge float64 `json:"home_edge"`
	DrawEdge float64 `json:"draw_edge"`
	AwayEdge float64 `json:"away_edge"`
	BestEdge float64 `json:"best_edge"`

	HasSteamMove   bool   `json:"has_steam_move"`
	SteamDirection string `json:"steam_direction,omitempty"`
	SteamNote      string `json:"steam_note,omitempty"`
	HasValue       bool   `json:"has_value"`
	AlertLevel     string `json:"alert_level,omitempty"`
	BookmakerCount int    `json:"bookmaker_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotFilter narrows ListSnapshots. Zero values match everything.
type SnapshotFilter struct {
	Sport      string
	AlertLevel string
	SteamOnly  bool
	Limit      int
}

// Prediction is a published prediction awaiting (or holding) its closing line value.
type Prediction struct {
	ID            int64     `json:"id"`
	MatchRef      string    `json:"match_ref"`
	Sport         string    `json:"sport"`
	HomeTeam      string    `json:"home_team"`
	AwayTeam      string    `json:"away_team"`
	Kickoff       time.Time `json:"kickoff"`
	PredictedSide string    `json:"predicted_side"` // free text, e.g. "Arsenal to win"
	OpeningOdds   float64   `json:"opening_odds"`

	ClosingOdds            *float64   `json:"closing_odds,omitempty"`
	ClosingProbabilityFair *float64   `json:"closing_probability_fair,omitempty"`
	CLVPercentage          *float64   `json:"clv_percentage,omitempty"`
	CLVValue               *float64   `json:"clv_value,omitempty"`
	CLVFetched             bool       `json:"clv_fetched"`
	CLVFetchedAt           *time.Time `json:"clv_fetched_at,omitempty"`
}

// CLVResult is what the tracker writes for a resolved prediction.
type CLVResult struct {
	ClosingOdds            float64
	ClosingProbabilityFair float64
	CLVPercentage          float64
	CLVValue               float64
}

// SnapshotStore persists poller snapshots.
type SnapshotStore interface {
	// GetSnapshot returns nil, nil when no snapshot exists.
	GetSnapshot(ctx context.Context, matchRef, sport, bookmaker string) (*Snapshot, error)
	// UpsertSnapshot reports whether a new row was created.
	UpsertSnapshot(ctx context.Context, s Snapshot) (bool, error)
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListSnapshots(ctx context.Context, f SnapshotFilter) ([]Snapshot, error)
}

// PredictionStore is the CLV tracker's view of predictions. Rows are never
// created or deleted through it outside of tests and seeding.
type PredictionStore interface {
	// PendingCLV lists unprocessed predictions with an opening price whose
	// kickoff falls in [from, to], soonest first.
	PendingCLV(ctx context.Context, from, to time.Time, limit int) ([]Prediction, error)
	// MarkCLV stores the result and latches clv_fetched. It reports false when
	// the prediction was already processed.
	MarkCLV(ctx context.Context, id int64, r CLVResult) (bool, error)
	// MarkCLVUnresolved latches clv_fetched without CLV fields.
	MarkCLVUnresolved(ctx context.Context, id int64) (bool, error)
	GetPrediction(ctx context.Context, id int64) (*Prediction, error)
	InsertPrediction(ctx context.Context, p Prediction) (int64, error)
}
