package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-intel/internal/alerts"
	"market-intel/internal/api"
	"market-intel/internal/config"
	"market-intel/internal/logging"
	"market-intel/internal/mathutil"
	"market-intel/internal/model"
	"market-intel/internal/odds"
	"market-intel/internal/store"
	"market-intel/internal/value"
)

// ErrMissingAPIKey aborts a run before any sport is fetched.
var ErrMissingAPIKey = api.ErrMissingAPIKey

// OddsSource fetches provider events.
type OddsSource interface {
	GetOdds(ctx context.Context, sportKey string, from, to time.Time) ([]api.Event, error)
	HasAPIKey() bool
}

// Notifier receives classified alerts. Prune is called once per run.
type Notifier interface {
	Notify(ctx context.Context, a alerts.Alert) (bool, error)
	Prune()
}

// Config holds poller settings
type Config struct {
	Sports     []config.SportProfile
	Thresholds config.Thresholds
	Window     time.Duration // events starting within now+Window are polled
	MaxAge     time.Duration // snapshots whose match date is older are pruned
	CallDelay  time.Duration // pause between provider calls
	AlertFrom  string        // minimum level handed to the notifier
}

// Result is the aggregate of one run.
type Result struct {
	SportsPolled     int `json:"sports_polled"`
	EventsProcessed  int `json:"events_processed"`
	EventsSkipped    int `json:"events_skipped"`
	SnapshotsCreated int `json:"snapshots_created"`
	SnapshotsUpdated int `json:"snapshots_updated"`
	SteamMoves       int `json:"steam_moves"`
	AlertsSent       int `json:"alerts_sent"`
	SnapshotsDeleted int `json:"snapshots_deleted"`
	Errors           int `json:"errors"`
}

// Poller polls consensus odds, detects steam moves and keeps one snapshot per event.
type Poller struct {
	source    OddsSource
	snapshots store.SnapshotStore
	notifier  Notifier
	cfg       Config
	now       func() time.Time
}

// New creates a poller. notifier may be nil.
func New(source OddsSource, snapshots store.SnapshotStore, notifier Notifier, cfg Config) *Poller {
	if cfg.AlertFrom == "" {
		cfg.AlertFrom = store.AlertMedium
	}
	return &Poller{
		source:    source,
		snapshots: snapshots,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run performs one sequential pass over every configured sport, then prunes
// stale snapshots. Per-sport and per-event failures are logged and counted;
// only a missing provider key aborts the run.
func (p *Poller) Run(ctx context.Context) (Result, error) {
	var res Result
	log := logging.FromContext(ctx)

	if !p.source.HasAPIKey() {
		return res, ErrMissingAPIKey
	}

	now := p.now().UTC()
	for i, sport := range p.cfg.Sports {
		if i > 0 {
			if err := sleepCtx(ctx, p.cfg.CallDelay); err != nil {
				return res, err
			}
		}

		events, err := p.source.GetOdds(ctx, sport.Key, now, now.Add(p.cfg.Window))
		if err != nil {
			if errors.Is(err, api.ErrMissingAPIKey) {
				return res, err
			}
			log.Warn("Failed to fetch odds", "sport", sport.Key, "error", err)
			res.Errors++
			continue
		}
		res.SportsPolled++

		for _, event := range events {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			p.processEvent(ctx, sport, event, now, &res)
		}
	}

	deleted, err := p.snapshots.DeleteSnapshotsBefore(ctx, now.Add(-p.cfg.MaxAge))
	if err != nil {
		log.Warn("Failed to prune snapshots", "error", err)
		res.Errors++
	}
	res.SnapshotsDeleted = int(deleted)
	if p.notifier != nil {
		p.notifier.Prune()
	}

	log.Info("Odds snapshot run complete",
		"sports", res.SportsPolled,
		"events", res.EventsProcessed,
		"created", res.SnapshotsCreated,
		"updated", res.SnapshotsUpdated,
		"steam", res.SteamMoves,
		"alerts", res.AlertsSent,
		"deleted", res.SnapshotsDeleted,
		"errors", res.Errors,
	)
	return res, nil
}

func (p *Poller) processEvent(ctx context.Context, sport config.SportProfile, event api.Event, now time.Time, res *Result) {
	log := logging.FromContext(ctx).With("sport", sport.Key, "event", event.ID)

	if !event.Valid() {
		log.Warn("Skipping malformed event", "home", event.HomeTeam, "away", event.AwayTeam)
		res.EventsSkipped++
		return
	}
	consensus, ok := odds.Consensus(event)
	if !ok {
		log.Debug("No h2h prices for event", "match", event.Label())
		res.EventsSkipped++
		return
	}

	prev, err := p.snapshots.GetSnapshot(ctx, event.ID, sport.Key, store.ConsensusBookmaker)
	if err != nil {
		log.Warn("Failed to read snapshot", "error", err)
		res.Errors++
		return
	}

	snap := p.classify(sport, event, consensus, prev, now)

	created, err := p.snapshots.UpsertSnapshot(ctx, snap)
	if err != nil {
		log.Warn("Failed to store snapshot", "error", err)
		res.Errors++
		return
	}

	res.EventsProcessed++
	if created {
		res.SnapshotsCreated++
	} else {
		res.SnapshotsUpdated++
	}
	if snap.HasSteamMove {
		res.SteamMoves++
		log.Info("Steam move detected", "match", event.Label(), "direction", snap.SteamDirection, "note", snap.SteamNote)
	}

	if p.notifier != nil && snap.AlertLevel != store.AlertNone && alerts.AtLeast(snap.AlertLevel, p.cfg.AlertFrom) {
		sent, err := p.notifier.Notify(ctx, alerts.FromSnapshot(snap))
		if err != nil {
			log.Warn("Alert delivery failed", "level", snap.AlertLevel, "error", err)
		}
		if sent {
			res.AlertsSent++
		}
	}
}

// classify builds the new snapshot from the current consensus and the stored one.
func (p *Poller) classify(sport config.SportProfile, event api.Event, c odds.ConsensusOdds, prev *store.Snapshot, now time.Time) store.Snapshot {
	snap := store.Snapshot{
		MatchRef:       event.ID,
		Sport:          sport.Key,
		League:         sport.League,
		Bookmaker:      store.ConsensusBookmaker,
		HomeTeam:       event.HomeTeam,
		AwayTeam:       event.AwayTeam,
		MatchDate:      event.CommenceTime.UTC(),
		HomeOdds:       c.Home,
		DrawOdds:       c.Draw,
		AwayOdds:       c.Away,
		BookmakerCount: c.BookCount,
		UpdatedAt:      now,
	}
	if snap.League == "" {
		snap.League = event.SportTitle
	}

	if prev != nil {
		snap.PrevHomeOdds = prev.HomeOdds
		snap.PrevDrawOdds = prev.DrawOdds
		snap.PrevAwayOdds = prev.AwayOdds
		snap.HomeChangePct = mathutil.Round(odds.PercentChange(prev.HomeOdds, c.Home), 2)
		snap.DrawChangePct = mathutil.Round(odds.PercentChange(prev.DrawOdds, c.Draw), 2)
		snap.AwayChangePct = mathutil.Round(odds.PercentChange(prev.AwayOdds, c.Away), 2)
		snap.CreatedAt = prev.CreatedAt
	}

	steam := odds.DetectSteam(snap.HomeChangePct, snap.AwayChangePct, sport.SteamThresholdPct)
	snap.HasSteamMove = steam.Detected
	snap.SteamDirection = steam.Direction
	snap.SteamNote = steam.Note

	prob := model.EstimateFromMarket(c, sport.HasDraw)
	report := value.Detect(prob, value.Odds{Home: c.Home, Draw: c.Draw, Away: c.Away}, nil, p.cfg.Thresholds)

	snap.ModelHome, snap.ModelDraw, snap.ModelAway = prob.Home, prob.Draw, prob.Away
	snap.HomeEdge, snap.DrawEdge, snap.AwayEdge = report.Edges.Home, report.Edges.Draw, report.Edges.Away
	snap.BestEdge = report.BestEdge
	snap.HasValue = report.Value.HasValue()
	snap.AlertLevel = AlertLevel(steam.Detected, report.BestEdge, p.cfg.Thresholds)

	return snap
}

// AlertLevel classifies a snapshot: HIGH for steam with an edge above the
// high cut-off, MEDIUM for steam or a large edge, LOW for a small edge.
func AlertLevel(steam bool, bestEdge float64, th config.Thresholds) string {
	switch {
	case steam && bestEdge > th.AlertHighEdge:
		return store.AlertHigh
	case steam || bestEdge > th.AlertMediumEdge:
		return store.AlertMedium
	case bestEdge > th.AlertLowEdge:
		return store.AlertLow
	}
	return store.AlertNone
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("run interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
