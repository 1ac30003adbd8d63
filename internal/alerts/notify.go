package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-intel/internal/store"
)

// Alert is a market event worth telling someone about: a steam move, a
// value edge, or both.
type Alert struct {
	ID             string    `json:"id"`
	Level          string    `json:"level"`
	Sport          string    `json:"sport"`
	League         string    `json:"league"`
	MatchRef       string    `json:"match_ref"`
	HomeTeam       string    `json:"home_team"`
	AwayTeam       string    `json:"away_team"`
	MatchDate      time.Time `json:"match_date"`
	HomeOdds       float64   `json:"home_odds"`
	DrawOdds       float64   `json:"draw_odds,omitempty"`
	AwayOdds       float64   `json:"away_odds"`
	HomeChangePct  float64   `json:"home_change_pct"`
	AwayChangePct  float64   `json:"away_change_pct"`
	SteamDirection string    `json:"steam_direction,omitempty"`
	SteamNote      string    `json:"steam_note,omitempty"`
	BestEdge       float64   `json:"best_edge"`
	CreatedAt      time.Time `json:"created_at"`
}

// FromSnapshot builds an alert from a classified snapshot.
func FromSnapshot(s store.Snapshot) Alert {
	return Alert{
		ID:             uuid.NewString(),
		Level:          s.AlertLevel,
		Sport:          s.Sport,
		League:         s.League,
		MatchRef:       s.MatchRef,
		HomeTeam:       s.HomeTeam,
		AwayTeam:       s.AwayTeam,
		MatchDate:      s.MatchDate,
		HomeOdds:       s.HomeOdds,
		DrawOdds:       s.DrawOdds,
		AwayOdds:       s.AwayOdds,
		HomeChangePct:  s.HomeChangePct,
		AwayChangePct:  s.AwayChangePct,
		SteamDirection: s.SteamDirection,
		SteamNote:      s.SteamNote,
		BestEdge:       s.BestEdge,
		CreatedAt:      time.Now().UTC(),
	}
}

// Key identifies an alert for cooldown purposes.
func (a Alert) Key() string {
	return fmt.Sprintf("%s-%s-%s", a.Sport, a.MatchRef, a.Level)
}

// Summary is a one-line human description.
func (a Alert) Summary() string {
	s := fmt.Sprintf("[%s] %s vs %s (%s) best edge %+.1f%%", a.Level, a.HomeTeam, a.AwayTeam, a.League, a.BestEdge)
	if a.SteamNote != "" {
		s += " | " + a.SteamNote
	}
	return s
}

var levelRank = map[string]int{
	store.AlertNone:   0,
	store.AlertLow:    1,
	store.AlertMedium: 2,
	store.AlertHigh:   3,
}

// AtLeast reports whether level is min or above.
func AtLeast(level, min string) bool {
	return levelRank[level] >= levelRank[min]
}

// Sink delivers alerts somewhere.
type Sink interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Gate decides whether a key is outside its cooldown, claiming it if so.
type Gate interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Notifier fans alerts out to sinks, suppressing repeats of the same key
// within the cooldown.
type Notifier struct {
	sinks    []Sink
	gate     Gate
	cooldown time.Duration
}

// NewNotifier creates a new notifier. A nil gate uses an in-process one.
func NewNotifier(cooldown time.Duration, gate Gate, sinks ...Sink) *Notifier {
	if gate == nil {
		gate = NewMemoryGate()
	}
	return &Notifier{
		sinks:    sinks,
		gate:     gate,
		cooldown: cooldown,
	}
}

// checkCooldown returns true when the alert should be suppressed. A gate
// failure lets the alert through.
func (n *Notifier) checkCooldown(ctx context.Context, key string) bool {
	ok, err := n.gate.Acquire(ctx, key, n.cooldown)
	if err != nil {
		slog.Warn("Alert cooldown check failed", "key", key, "error", err)
		return false
	}
	return !ok
}

// Notify sends the alert to every sink. It returns false when the alert was
// suppressed by the cooldown. Sink failures are joined; one failing sink does
// not stop the others.
func (n *Notifier) Notify(ctx context.Context, a Alert) (bool, error) {
	if n.checkCooldown(ctx, a.Key()) {
		slog.Debug("Alert suppressed by cooldown", "key", a.Key())
		return false, nil
	}

	var errs []error
	for _, s := range n.sinks {
		if err := s.Send(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return true, errors.Join(errs...)
}

// Prune drops cooldown records that have expired. Gates that expire keys
// on their own, such as RedisGate, are left alone.
func (n *Notifier) Prune() {
	if c, ok := n.gate.(interface{ Cleanup(time.Duration) }); ok {
		c.Cleanup(n.cooldown)
	}
}

// MemoryGate is a process-local cooldown gate.
type MemoryGate struct {
	mu         sync.Mutex
	lastAlerts map[string]time.Time
}

// NewMemoryGate creates an empty gate.
func NewMemoryGate() *MemoryGate {
	return &MemoryGate{lastAlerts: make(map[string]time.Time)}
}

// Acquire implements Gate.
func (g *MemoryGate) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastAlerts[key]; ok && time.Since(last) < ttl {
		return false, nil
	}
	g.lastAlerts[key] = time.Now()
	return true, nil
}

// Cleanup removes records older than maxAge.
func (g *MemoryGate) Cleanup(maxAge time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for key, t := range g.lastAlerts {
		if t.Before(cutoff) {
			delete(g.lastAlerts, key)
		}
	}
}

// LogSink writes alerts to the structured log.
type LogSink struct{}

// Name implements Sink.
func (LogSink) Name() string { return "log" }

// Send implements Sink.
func (LogSink) Send(_ context.Context, a Alert) error {
	slog.Info("Market alert",
		"level", a.Level,
		"sport", a.Sport,
		"match", a.HomeTeam+" vs "+a.AwayTeam,
		"match_ref", a.MatchRef,
		"best_edge", a.BestEdge,
		"steam", a.SteamDirection,
		"note", a.SteamNote,
	)
	return nil
}
