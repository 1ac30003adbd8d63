package poller

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"market-intel/internal/alerts"
	"market-intel/internal/api"
	"market-intel/internal/config"
	"market-intel/internal/odds"
	"market-intel/internal/store"
)

type fakeSource struct {
	noKey  bool
	events map[string][]api.Event
	errs   map[string]error
	calls  []string
}

func (f *fakeSource) HasAPIKey() bool { return !f.noKey }

func (f *fakeSource) GetOdds(_ context.Context, sportKey string, _, _ time.Time) ([]api.Event, error) {
	f.calls = append(f.calls, sportKey)
	if err := f.errs[sportKey]; err != nil {
		return nil, err
	}
	return f.events[sportKey], nil
}

type recordingNotifier struct {
	alerts []alerts.Alert
	pruned int
}

func (r *recordingNotifier) Prune() { r.pruned++ }

func (r *recordingNotifier) Notify(_ context.Context, a alerts.Alert) (bool, error) {
	r.alerts = append(r.alerts, a)
	return true, nil
}

func h2hEvent(id string, commence time.Time, home, draw, away float64) api.Event {
	outcomes := []api.Outcome{{Name: "Arsenal", Price: home}, {Name: "Chelsea", Price: away}}
	if draw > 0 {
		outcomes = append(outcomes, api.Outcome{Name: "Draw", Price: draw})
	}
	return api.Event{
		ID:           id,
		SportKey:     "soccer_epl",
		SportTitle:   "EPL",
		CommenceTime: commence,
		HomeTeam:     "Arsenal",
		AwayTeam:     "Chelsea",
		Bookmakers: []api.Bookmaker{
			{Key: "pinnacle", Markets: []api.Market{{Key: api.MarketH2H, Outcomes: outcomes}}},
		},
	}
}

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "poller.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig(sports ...config.SportProfile) Config {
	return Config{
		Sports:     sports,
		Thresholds: config.DefaultThresholds(),
		Window:     72 * time.Hour,
		MaxAge:     24 * time.Hour,
	}
}

func epl() config.SportProfile {
	p := config.CategoryProfile(config.Soccer)
	p.Key = "soccer_epl"
	p.League = "Premier League"
	p.HasDraw = true
	return p
}

func TestRunMissingAPIKey(t *testing.T) {
	src := &fakeSource{noKey: true}
	p := New(src, newTestStore(t), nil, testConfig(epl()))

	_, err := p.Run(context.Background())
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if len(src.calls) != 0 {
		t.Errorf("provider called %d times before failing", len(src.calls))
	}
}

func TestRunDetectsSteamAcrossRuns(t *testing.T) {
	db := newTestStore(t)
	notifier := &recordingNotifier{}
	kickoff := time.Now().UTC().Add(6 * time.Hour).Truncate(time.Second)
	src := &fakeSource{events: map[string][]api.Event{
		"soccer_epl": {h2hEvent("evt1", kickoff, 2.00, 3.5, 3.9)},
	}}
	p := New(src, db, notifier, testConfig(epl()))
	ctx := context.Background()

	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if res.SnapshotsCreated != 1 || res.SteamMoves != 0 || res.SportsPolled != 1 {
		t.Errorf("first run = %+v", res)
	}

	src.events["soccer_epl"] = []api.Event{h2hEvent("evt1", kickoff, 1.94, 3.5, 3.9)}
	res, err = p.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.SnapshotsUpdated != 1 || res.SnapshotsCreated != 0 || res.SteamMoves != 1 {
		t.Errorf("second run = %+v", res)
	}

	snap, err := db.GetSnapshot(ctx, "evt1", "soccer_epl", store.ConsensusBookmaker)
	if err != nil || snap == nil {
		t.Fatalf("GetSnapshot = %v, %v", snap, err)
	}
	if !snap.HasSteamMove || snap.SteamDirection != odds.TowardHome {
		t.Errorf("steam = %v/%q, want toward_home", snap.HasSteamMove, snap.SteamDirection)
	}
	if snap.PrevHomeOdds != 2.0 || snap.HomeOdds != 1.94 || snap.HomeChangePct != -3 {
		t.Errorf("prices = prev %v cur %v change %v", snap.PrevHomeOdds, snap.HomeOdds, snap.HomeChangePct)
	}
	if snap.ModelHome+snap.ModelDraw+snap.ModelAway != 100 {
		t.Errorf("model probabilities sum to %d", snap.ModelHome+snap.ModelDraw+snap.ModelAway)
	}
	if snap.AlertLevel != store.AlertMedium {
		t.Errorf("AlertLevel = %q, want MEDIUM", snap.AlertLevel)
	}
	if snap.League != "Premier League" || snap.BookmakerCount != 1 {
		t.Errorf("snapshot metadata = %+v", snap)
	}

	if len(notifier.alerts) != 1 || notifier.alerts[0].Level != store.AlertMedium {
		t.Errorf("alerts = %+v, want one MEDIUM", notifier.alerts)
	}
	if res.AlertsSent != 1 {
		t.Errorf("AlertsSent = %d, want 1", res.AlertsSent)
	}
	if notifier.pruned != 2 {
		t.Errorf("cooldowns pruned %d times, want once per run", notifier.pruned)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	nba := config.CategoryProfile(config.Basketball)
	nba.Key = "basketball_nba"

	kickoff := time.Now().UTC().Add(time.Hour)
	src := &fakeSource{
		events: map[string][]api.Event{
			"basketball_nba": {
				h2hEvent("good", kickoff, 1.8, 0, 2.1),
				{ID: "no-teams"},
				{ID: "no-market", HomeTeam: "A", AwayTeam: "B"},
			},
		},
		errs: map[string]error{"soccer_epl": errors.New("timeout")},
	}
	db := newTestStore(t)
	p := New(src, db, nil, testConfig(epl(), nba))

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Errors != 1 || res.SportsPolled != 1 {
		t.Errorf("errors/sports = %d/%d, want 1/1", res.Errors, res.SportsPolled)
	}
	if res.EventsProcessed != 1 || res.EventsSkipped != 2 {
		t.Errorf("processed/skipped = %d/%d, want 1/2", res.EventsProcessed, res.EventsSkipped)
	}
	if len(src.calls) != 2 {
		t.Errorf("calls = %v, want both sports", src.calls)
	}

	snap, _ := db.GetSnapshot(context.Background(), "good", "basketball_nba", store.ConsensusBookmaker)
	if snap == nil || snap.ModelDraw != 0 || snap.ModelHome+snap.ModelAway != 100 {
		t.Errorf("two-way snapshot = %+v", snap)
	}
}

func TestRunPrunesStaleSnapshots(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for ref, age := range map[string]time.Duration{"stale": 25 * time.Hour, "fresh": 20 * time.Hour} {
		if _, err := db.UpsertSnapshot(ctx, store.Snapshot{
			MatchRef: ref, Sport: "soccer_epl", HomeTeam: "A", AwayTeam: "B",
			MatchDate: now.Add(-age), HomeOdds: 2, AwayOdds: 2,
		}); err != nil {
			t.Fatalf("seeding %s: %v", ref, err)
		}
	}

	p := New(&fakeSource{}, db, nil, testConfig(epl()))
	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SnapshotsDeleted != 1 {
		t.Errorf("SnapshotsDeleted = %d, want 1", res.SnapshotsDeleted)
	}
	if s, _ := db.GetSnapshot(ctx, "fresh", "soccer_epl", store.ConsensusBookmaker); s == nil {
		t.Error("fresh snapshot should be retained")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	cfg := testConfig(epl(), epl())
	cfg.CallDelay = time.Hour
	p := New(src, newTestStore(t), nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if len(src.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(src.calls))
	}
}

func TestAlertLevel(t *testing.T) {
	th := config.DefaultThresholds()
	tests := []struct {
		name     string
		steam    bool
		edge     float64
		expected string
	}{
		{"steam with edge", true, 5.1, store.AlertHigh},
		{"steam at edge cut-off", true, 5.0, store.AlertMedium},
		{"steam alone", true, -2, store.AlertMedium},
		{"big edge", false, 8.5, store.AlertMedium},
		{"edge 8 exactly", false, 8, store.AlertLow},
		{"small edge", false, 3.5, store.AlertLow},
		{"nothing", false, 3, store.AlertNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AlertLevel(tt.steam, tt.edge, th); got != tt.expected {
				t.Errorf("AlertLevel(%v, %v) = %q, want %q", tt.steam, tt.edge, got, tt.expected)
			}
		})
	}
}
