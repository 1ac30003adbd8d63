package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSnapshot(ref string, matchDate time.Time) Snapshot {
	return Snapshot{
		MatchRef:       ref,
		Sport:          "soccer_epl",
		League:         "Premier League",
		Bookmaker:      ConsensusBookmaker,
		HomeTeam:       "Arsenal",
		AwayTeam:       "Chelsea",
		MatchDate:      matchDate,
		HomeOdds:       2.0,
		DrawOdds:       3.5,
		AwayOdds:       3.9,
		ModelHome:      45,
		ModelDraw:      28,
		ModelAway:      27,
		BookmakerCount: 5,
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("rebind = %q", got)
	}
	lite := &DB{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestSnapshotUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	kickoff := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	got, err := db.GetSnapshot(ctx, "evt1", "soccer_epl", ConsensusBookmaker)
	if err != nil || got != nil {
		t.Fatalf("GetSnapshot on empty db = %v, %v; want nil, nil", got, err)
	}

	created, err := db.UpsertSnapshot(ctx, testSnapshot("evt1", kickoff))
	if err != nil {
		t.Fatalf("UpsertSnapshot: %v", err)
	}
	if !created {
		t.Error("first upsert should create")
	}

	next := testSnapshot("evt1", kickoff)
	next.PrevHomeOdds, next.HomeOdds = 2.0, 1.94
	next.HomeChangePct = -3
	next.HasSteamMove = true
	next.SteamDirection = "toward_home"
	next.AlertLevel = AlertMedium
	created, err = db.UpsertSnapshot(ctx, next)
	if err != nil {
		t.Fatalf("UpsertSnapshot: %v", err)
	}
	if created {
		t.Error("second upsert should update")
	}

	got, err = db.GetSnapshot(ctx, "evt1", "soccer_epl", ConsensusBookmaker)
	if err != nil || got == nil {
		t.Fatalf("GetSnapshot = %v, %v", got, err)
	}
	if got.HomeOdds != 1.94 || got.PrevHomeOdds != 2.0 || !got.HasSteamMove || got.AlertLevel != AlertMedium {
		t.Errorf("snapshot not overwritten: %+v", got)
	}
	if !got.MatchDate.Equal(kickoff) {
		t.Errorf("MatchDate = %v, want %v", got.MatchDate, kickoff)
	}
	if got.BookmakerCount != 5 || got.ModelHome != 45 {
		t.Errorf("derived fields lost: %+v", got)
	}

	all, err := db.ListSnapshots(ctx, SnapshotFilter{})
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("one row per key expected, got %d", len(all))
	}
}

func TestDeleteSnapshotsBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for ref, age := range map[string]time.Duration{"old": 25 * time.Hour, "recent": 20 * time.Hour, "future": -5 * time.Hour} {
		if _, err := db.UpsertSnapshot(ctx, testSnapshot(ref, now.Add(-age))); err != nil {
			t.Fatalf("UpsertSnapshot(%s): %v", ref, err)
		}
	}

	deleted, err := db.DeleteSnapshotsBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteSnapshotsBefore: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	for ref, want := range map[string]bool{"old": false, "recent": true, "future": true} {
		s, err := db.GetSnapshot(ctx, ref, "soccer_epl", ConsensusBookmaker)
		if err != nil {
			t.Fatalf("GetSnapshot(%s): %v", ref, err)
		}
		if (s != nil) != want {
			t.Errorf("%s retained = %v, want %v", ref, s != nil, want)
		}
	}
}

func TestListSnapshotsFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(time.Hour)

	a := testSnapshot("a", base.Add(2*time.Hour))
	a.HasSteamMove = true
	a.AlertLevel = AlertHigh
	b := testSnapshot("b", base)
	c := testSnapshot("c", base.Add(time.Hour))
	c.Sport = "basketball_nba"

	for _, s := range []Snapshot{a, b, c} {
		if _, err := db.UpsertSnapshot(ctx, s); err != nil {
			t.Fatalf("UpsertSnapshot: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter SnapshotFilter
		refs   []string
	}{
		{"all by match date", SnapshotFilter{}, []string{"b", "c", "a"}},
		{"sport", SnapshotFilter{Sport: "soccer_epl"}, []string{"b", "a"}},
		{"steam only", SnapshotFilter{SteamOnly: true}, []string{"a"}},
		{"alert level", SnapshotFilter{AlertLevel: AlertHigh}, []string{"a"}},
		{"limit", SnapshotFilter{Limit: 2}, []string{"b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListSnapshots(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListSnapshots: %v", err)
			}
			if len(got) != len(tt.refs) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.refs))
			}
			for i, ref := range tt.refs {
				if got[i].MatchRef != ref {
					t.Errorf("[%d] = %s, want %s", i, got[i].MatchRef, ref)
				}
			}
		})
	}
}

func seedPrediction(t *testing.T, db *DB, kickoff time.Time, opening float64, fetched bool) int64 {
	t.Helper()
	id, err := db.InsertPrediction(context.Background(), Prediction{
		MatchRef:      "evt",
		Sport:         "soccer_epl",
		HomeTeam:      "Arsenal",
		AwayTeam:      "Chelsea",
		Kickoff:       kickoff,
		PredictedSide: "Home win",
		OpeningOdds:   opening,
		CLVFetched:    fetched,
	})
	if err != nil {
		t.Fatalf("InsertPrediction: %v", err)
	}
	return id
}

func TestPendingCLV(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inWindow := seedPrediction(t, db, now.Add(time.Hour), 2.1, false)
	soonest := seedPrediction(t, db, now.Add(30*time.Minute), 1.8, false)
	seedPrediction(t, db, now.Add(3*time.Hour), 2.1, false) // too far out
	seedPrediction(t, db, now.Add(-time.Hour), 2.1, false)  // already started
	seedPrediction(t, db, now.Add(time.Hour), 2.1, true)    // processed
	seedPrediction(t, db, now.Add(time.Hour), 0, false)     // no opening price

	pending, err := db.PendingCLV(ctx, now, now.Add(2*time.Hour), 20)
	if err != nil {
		t.Fatalf("PendingCLV: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if pending[0].ID != soonest || pending[1].ID != inWindow {
		t.Errorf("order = %d, %d; want %d, %d", pending[0].ID, pending[1].ID, soonest, inWindow)
	}
	if pending[0].ClosingOdds != nil || pending[0].CLVFetched {
		t.Errorf("pending prediction has CLV fields: %+v", pending[0])
	}

	limited, err := db.PendingCLV(ctx, now, now.Add(2*time.Hour), 1)
	if err != nil {
		t.Fatalf("PendingCLV: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit not applied: %d", len(limited))
	}
}

func TestMarkCLVIsOneWay(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	id := seedPrediction(t, db, time.Now().Add(time.Hour), 2.1, false)

	ok, err := db.MarkCLV(ctx, id, CLVResult{ClosingOdds: 1.9, ClosingProbabilityFair: 50.55, CLVPercentage: 10.53, CLVValue: 5.01})
	if err != nil || !ok {
		t.Fatalf("MarkCLV = %v, %v", ok, err)
	}

	first, err := db.GetPrediction(ctx, id)
	if err != nil || first == nil {
		t.Fatalf("GetPrediction = %v, %v", first, err)
	}
	if !first.CLVFetched || first.CLVPercentage == nil || *first.CLVPercentage != 10.53 || first.CLVFetchedAt == nil {
		t.Errorf("CLV not stored: %+v", first)
	}

	// Second pass changes nothing
	ok, err = db.MarkCLV(ctx, id, CLVResult{ClosingOdds: 1.5, CLVPercentage: 99})
	if err != nil {
		t.Fatalf("MarkCLV: %v", err)
	}
	if ok {
		t.Error("MarkCLV on a processed prediction should report false")
	}
	ok, err = db.MarkCLVUnresolved(ctx, id)
	if err != nil || ok {
		t.Errorf("MarkCLVUnresolved = %v, %v; want false, nil", ok, err)
	}

	second, _ := db.GetPrediction(ctx, id)
	if *second.ClosingOdds != 1.9 || *second.CLVPercentage != 10.53 || !second.CLVFetchedAt.Equal(*first.CLVFetchedAt) {
		t.Errorf("processed prediction changed: %+v", second)
	}
}

func TestMarkCLVUnresolved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	id := seedPrediction(t, db, time.Now().Add(time.Hour), 2.1, false)

	ok, err := db.MarkCLVUnresolved(ctx, id)
	if err != nil || !ok {
		t.Fatalf("MarkCLVUnresolved = %v, %v", ok, err)
	}

	p, _ := db.GetPrediction(ctx, id)
	if !p.CLVFetched || p.ClosingOdds != nil || p.CLVPercentage != nil || p.CLVValue != nil {
		t.Errorf("unresolved prediction should carry no CLV fields: %+v", p)
	}

	missing, err := db.GetPrediction(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("GetPrediction(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := Open(DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	ref := "pg-" + time.Now().Format("150405.000000")
	s := testSnapshot(ref, time.Now().UTC().Add(time.Hour))

	created, err := db.UpsertSnapshot(ctx, s)
	if err != nil || !created {
		t.Fatalf("UpsertSnapshot = %v, %v", created, err)
	}
	created, err = db.UpsertSnapshot(ctx, s)
	if err != nil || created {
		t.Fatalf("second UpsertSnapshot = %v, %v", created, err)
	}

	id, err := db.InsertPrediction(ctx, Prediction{Sport: "soccer_epl", HomeTeam: "A", AwayTeam: "B",
		Kickoff: time.Now().Add(time.Hour), PredictedSide: "Draw", OpeningOdds: 3.2})
	if err != nil {
		t.Fatalf("InsertPrediction: %v", err)
	}
	if ok, err := db.MarkCLVUnresolved(ctx, id); err != nil || !ok {
		t.Errorf("MarkCLVUnresolved = %v, %v", ok, err)
	}

	db.db.ExecContext(ctx, "DELETE FROM odds_snapshots WHERE match_ref = $1", ref)
	db.db.ExecContext(ctx, "DELETE FROM predictions WHERE id = $1", id)
}
