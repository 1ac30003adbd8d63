package clv

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"market-intel/internal/api"
	"market-intel/internal/store"
)

type fakeSource struct {
	noKey  bool
	events map[string][]api.Event
	errs   map[string]error
	calls  map[string]int
}

func (f *fakeSource) HasAPIKey() bool { return !f.noKey }

func (f *fakeSource) GetOdds(_ context.Context, sportKey string, _, _ time.Time) ([]api.Event, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[sportKey]++
	if err := f.errs[sportKey]; err != nil {
		return nil, err
	}
	return f.events[sportKey], nil
}

func h2h(home, draw, away float64, homeTeam, awayTeam string) api.Market {
	outcomes := []api.Outcome{{Name: homeTeam, Price: home}, {Name: awayTeam, Price: away}}
	if draw > 0 {
		outcomes = append(outcomes, api.Outcome{Name: api.DrawOutcome, Price: draw})
	}
	return api.Market{Key: api.MarketH2H, Outcomes: outcomes}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		opening, closing float64
		pct, value       float64
	}{
		{2.10, 1.90, 10.53, 5.01},
		{3.60, 3.40, 5.88, 1.63},
		{1.80, 2.00, -10, -5.56},
		{2.00, 2.00, 0, 0},
	}

	for _, tt := range tests {
		pct, value := Compute(tt.opening, tt.closing)
		if pct != tt.pct || value != tt.value {
			t.Errorf("Compute(%v, %v) = %v, %v; want %v, %v", tt.opening, tt.closing, pct, value, tt.pct, tt.value)
		}
	}
}

func TestTeamMatch(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"Arsenal", "Arsenal FC", matchExact},
		{"arsenal", "ARSENAL", matchExact},
		{"Brighton & Hove Albion", "Brighton and Hove Albion", matchLoose},
		{"Manchester United", "Newcastle United", matchLoose},
		{"Arsenal", "Chelsea", matchNone},
		{"", "Arsenal", matchNone},
		{"Real Madrid CF", "Atletico Madrid FC", matchNone},
	}

	for _, tt := range tests {
		if got := teamMatch(tt.a, tt.b); got != tt.expected {
			t.Errorf("teamMatch(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestResolveSide(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"Home win", SideHome},
		{"AWAY WIN", SideAway},
		{"Draw", SideDraw},
		{"Tie", SideDraw},
		{"Man City to win", SideHome},
		{"Manchester United", SideAway},
		{"Home or draw", ""},
		{"Man City or United", ""},
		{"Over 2.5 goals", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ResolveSide(tt.text, "Manchester City", "Manchester United"); got != tt.expected {
			t.Errorf("ResolveSide(%q) = %q, want %q", tt.text, got, tt.expected)
		}
	}
}

func TestFindEventPrefersProviderID(t *testing.T) {
	events := []api.Event{
		{ID: "a", HomeTeam: "Arsenal", AwayTeam: "Chelsea"},
		{ID: "b", HomeTeam: "Arsenal", AwayTeam: "Chelsea"},
	}
	ev, loose := findEvent(events, store.Prediction{MatchRef: "b", HomeTeam: "Arsenal", AwayTeam: "Chelsea"})
	if ev == nil || ev.ID != "b" || loose {
		t.Errorf("findEvent = %v, %v; want b", ev, loose)
	}

	ev, _ = findEvent(events, store.Prediction{MatchRef: "zzz", HomeTeam: "Arsenal", AwayTeam: "Chelsea"})
	if ev == nil || ev.ID != "a" {
		t.Errorf("name fallback = %v, want a", ev)
	}

	ev, _ = findEvent(events, store.Prediction{HomeTeam: "Chelsea", AwayTeam: "Arsenal"})
	if ev != nil {
		t.Errorf("reversed fixture should not match, got %v", ev.ID)
	}
}

func TestBookmakerFor(t *testing.T) {
	ev := api.Event{HomeTeam: "A", AwayTeam: "B", Bookmakers: []api.Bookmaker{
		{Key: "unibet", Markets: []api.Market{{Key: "totals"}}},
		{Key: "bet365", Markets: []api.Market{h2h(2.0, 0, 1.8, "A", "B")}},
		{Key: "pinnacle", Markets: []api.Market{h2h(1.9, 0, 1.9, "A", "B")}},
	}}

	bm, _, ok := bookmakerFor(ev, "pinnacle")
	if !ok || bm.Key != "pinnacle" {
		t.Errorf("sharp bookmaker = %q, want pinnacle", bm.Key)
	}
	bm, _, ok = bookmakerFor(ev, "betfair")
	if !ok || bm.Key != "bet365" {
		t.Errorf("fallback bookmaker = %q, want bet365", bm.Key)
	}
	if _, _, ok := bookmakerFor(api.Event{}, "pinnacle"); ok {
		t.Error("event without bookmakers should not resolve")
	}
}

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "clv.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *store.DB, p store.Prediction) int64 {
	t.Helper()
	if p.Kickoff.IsZero() {
		p.Kickoff = time.Now().Add(time.Hour)
	}
	id, err := db.InsertPrediction(context.Background(), p)
	if err != nil {
		t.Fatalf("InsertPrediction: %v", err)
	}
	return id
}

func TestRunMissingAPIKey(t *testing.T) {
	tr := New(&fakeSource{noKey: true}, newTestStore(t), Config{Window: 2 * time.Hour, BatchSize: 20})
	if _, err := tr.Run(context.Background()); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestRun(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	src := &fakeSource{
		events: map[string][]api.Event{
			"soccer_epl": {
				{ID: "e1", HomeTeam: "Arsenal", AwayTeam: "Chelsea", Bookmakers: []api.Bookmaker{
					{Key: "bet365", Markets: []api.Market{h2h(2.0, 3.5, 4.0, "Arsenal", "Chelsea")}},
					{Key: "pinnacle", Markets: []api.Market{h2h(1.9, 3.6, 4.2, "Arsenal", "Chelsea")}},
				}},
				{ID: "e2", HomeTeam: "Newcastle", AwayTeam: "Brighton and Hove Albion", Bookmakers: []api.Bookmaker{
					{Key: "pinnacle", Markets: []api.Market{h2h(2.2, 3.4, 3.3, "Newcastle", "Brighton and Hove Albion")}},
				}},
			},
		},
		errs: map[string]error{"basketball_nba": errors.New("timeout")},
	}

	home := seed(t, db, store.Prediction{Sport: "soccer_epl", HomeTeam: "Arsenal", AwayTeam: "Chelsea", PredictedSide: "Home win", OpeningOdds: 2.1})
	draw := seed(t, db, store.Prediction{Sport: "soccer_epl", HomeTeam: "Newcastle United", AwayTeam: "Brighton & Hove Albion", PredictedSide: "Draw", OpeningOdds: 3.6})
	noEvent := seed(t, db, store.Prediction{Sport: "soccer_epl", HomeTeam: "Everton", AwayTeam: "Fulham", PredictedSide: "Home win", OpeningOdds: 2.5})
	noSide := seed(t, db, store.Prediction{Sport: "soccer_epl", HomeTeam: "Arsenal", AwayTeam: "Chelsea", PredictedSide: "Over 2.5 goals", OpeningOdds: 1.8})
	fetchFails := seed(t, db, store.Prediction{Sport: "basketball_nba", HomeTeam: "Lakers", AwayTeam: "Celtics", PredictedSide: "Away win", OpeningOdds: 2.0})

	tr := New(src, db, Config{SharpBookmaker: "pinnacle", Window: 2 * time.Hour, BatchSize: 20})
	res, err := tr.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := Result{Checked: 5, Updated: 2, Unresolved: 2, Errors: 1}
	if res != want {
		t.Errorf("Result = %+v, want %+v", res, want)
	}
	if src.calls["soccer_epl"] != 1 {
		t.Errorf("soccer fetched %d times, want once per run", src.calls["soccer_epl"])
	}

	p, _ := db.GetPrediction(ctx, home)
	if !p.CLVFetched || *p.ClosingOdds != 1.9 || *p.CLVPercentage != 10.53 || *p.CLVValue != 5.01 {
		t.Errorf("home prediction = %+v", p)
	}
	if math.Abs(*p.ClosingProbabilityFair-50.5) > 0.01 {
		t.Errorf("ClosingProbabilityFair = %v, want ≈50.5", *p.ClosingProbabilityFair)
	}

	p, _ = db.GetPrediction(ctx, draw)
	if !p.CLVFetched || p.ClosingOdds == nil || *p.ClosingOdds != 3.4 || *p.CLVPercentage != 5.88 {
		t.Errorf("draw prediction = %+v", p)
	}

	for _, id := range []int64{noEvent, noSide} {
		p, _ = db.GetPrediction(ctx, id)
		if !p.CLVFetched || p.ClosingOdds != nil || p.CLVPercentage != nil {
			t.Errorf("unresolved prediction %d = %+v", id, p)
		}
	}

	p, _ = db.GetPrediction(ctx, fetchFails)
	if p.CLVFetched {
		t.Error("prediction with a failed fetch should stay pending")
	}

	// Second pass: only the failed one is retried; processed rows do not change
	before, _ := db.GetPrediction(ctx, home)
	res, err = tr.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res != (Result{Checked: 1, Errors: 1}) {
		t.Errorf("second Result = %+v", res)
	}
	after, _ := db.GetPrediction(ctx, home)
	if *after.CLVPercentage != *before.CLVPercentage || !after.CLVFetchedAt.Equal(*before.CLVFetchedAt) {
		t.Errorf("processed prediction changed: %+v → %+v", before, after)
	}
}

func TestRunRespectsBatchSize(t *testing.T) {
	db := newTestStore(t)
	for i := 0; i < 3; i++ {
		seed(t, db, store.Prediction{Sport: "soccer_epl", HomeTeam: "X", AwayTeam: "Y", PredictedSide: "Draw", OpeningOdds: 3})
	}

	tr := New(&fakeSource{}, db, Config{Window: 2 * time.Hour, BatchSize: 2})
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Checked != 2 || res.Unresolved != 2 {
		t.Errorf("Result = %+v, want 2 checked and unresolved", res)
	}
}
