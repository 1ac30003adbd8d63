package clv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"market-intel/internal/api"
	"market-intel/internal/logging"
	"market-intel/internal/mathutil"
	"market-intel/internal/odds"
	"market-intel/internal/store"
)

// ErrMissingAPIKey aborts a run before any prediction is read.
var ErrMissingAPIKey = api.ErrMissingAPIKey

// OddsSource fetches provider events.
type OddsSource interface {
	GetOdds(ctx context.Context, sportKey string, from, to time.Time) ([]api.Event, error)
	HasAPIKey() bool
}

// Config holds tracker settings
type Config struct {
	SharpBookmaker string
	Window         time.Duration // predictions kicking off within now+Window are processed
	BatchSize      int
	CallDelay      time.Duration
}

// Result is the aggregate of one run.
type Result struct {
	Checked    int `json:"checked"`
	Updated    int `json:"updated"`
	Unresolved int `json:"unresolved"`
	Errors     int `json:"errors"`
}

// Tracker records closing line value for predictions about to kick off.
type Tracker struct {
	source      OddsSource
	predictions store.PredictionStore
	cfg         Config
	now         func() time.Time
}

// New creates a tracker.
func New(source OddsSource, predictions store.PredictionStore, cfg Config) *Tracker {
	return &Tracker{
		source:      source,
		predictions: predictions,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Compute returns the CLV of a price move from opening to closing odds:
// the relative change of implied probability in percent, and the absolute
// change in percentage points, both rounded to two decimals. Positive means
// the market moved toward the prediction.
func Compute(openingOdds, closingOdds float64) (pct, value float64) {
	openingImplied := 100 / openingOdds
	closingImplied := 100 / closingOdds
	pct = (closingImplied - openingImplied) / openingImplied * 100
	value = closingImplied - openingImplied
	return mathutil.Round(pct, 2), mathutil.Round(value, 2)
}

// Run processes one batch of pending predictions. Provider data is fetched
// once per sport per run. A prediction whose event, market or side cannot be
// resolved is latched as processed without CLV; a fetch failure leaves it for
// the next run.
func (t *Tracker) Run(ctx context.Context) (Result, error) {
	var res Result
	log := logging.FromContext(ctx)

	if !t.source.HasAPIKey() {
		return res, ErrMissingAPIKey
	}

	now := t.now().UTC()
	pending, err := t.predictions.PendingCLV(ctx, now, now.Add(t.cfg.Window), t.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("loading pending predictions: %w", err)
	}

	fetched := make(map[string][]api.Event)
	calls := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		plog := log.With("prediction", p.ID, "sport", p.Sport, "match", p.HomeTeam+" vs "+p.AwayTeam)

		events, ok := fetched[p.Sport]
		if !ok {
			if calls > 0 && t.cfg.CallDelay > 0 {
				select {
				case <-ctx.Done():
					return res, ctx.Err()
				case <-time.After(t.cfg.CallDelay):
				}
			}
			calls++
			events, err = t.source.GetOdds(ctx, p.Sport, now.Add(-t.cfg.Window), now.Add(2*t.cfg.Window))
			if err != nil {
				if errors.Is(err, api.ErrMissingAPIKey) {
					return res, err
				}
				plog.Warn("Failed to fetch closing odds", "error", err)
				res.Errors++
				continue
			}
			fetched[p.Sport] = events
		}

		result, reason := t.resolve(events, p, plog)
		if reason != "" {
			plog.Info("CLV unresolved", "reason", reason)
			marked, err := t.predictions.MarkCLVUnresolved(ctx, p.ID)
			if err != nil {
				plog.Warn("Failed to mark prediction", "error", err)
				res.Errors++
				continue
			}
			if marked {
				res.Unresolved++
			}
			continue
		}

		marked, err := t.predictions.MarkCLV(ctx, p.ID, result)
		if err != nil {
			plog.Warn("Failed to store CLV", "error", err)
			res.Errors++
			continue
		}
		if marked {
			res.Updated++
			plog.Info("CLV recorded", "opening", p.OpeningOdds, "closing", result.ClosingOdds, "clv_pct", result.CLVPercentage)
		}
	}

	log.Info("CLV run complete",
		"checked", res.Checked,
		"updated", res.Updated,
		"unresolved", res.Unresolved,
		"errors", res.Errors,
	)
	return res, nil
}

// resolve computes the CLV of one prediction, or returns why it cannot be.
func (t *Tracker) resolve(events []api.Event, p store.Prediction, log *slog.Logger) (store.CLVResult, string) {
	ev, loose := findEvent(events, p)
	if ev == nil {
		return store.CLVResult{}, "no matching event"
	}
	if loose {
		log.Warn("Low-confidence team match", "event", ev.ID, "home", ev.HomeTeam, "away", ev.AwayTeam)
	}

	bm, market, ok := bookmakerFor(*ev, t.cfg.SharpBookmaker)
	if !ok {
		return store.CLVResult{}, "no h2h market"
	}

	side := ResolveSide(p.PredictedSide, p.HomeTeam, p.AwayTeam)
	if side == "" {
		return store.CLVResult{}, "predicted side not recognised"
	}

	home, _ := market.Price(ev.HomeTeam)
	away, _ := market.Price(ev.AwayTeam)
	draw, _ := market.Price(api.DrawOutcome)

	var closing float64
	switch side {
	case SideHome:
		closing = home
	case SideAway:
		closing = away
	case SideDraw:
		closing = draw
	}
	if closing <= 1 {
		return store.CLVResult{}, "no closing price for " + side + " at " + bm.Key
	}

	pct, val := Compute(p.OpeningOdds, closing)
	return store.CLVResult{
		ClosingOdds:            closing,
		ClosingProbabilityFair: fairProbability(side, home, draw, away),
		CLVPercentage:          pct,
		CLVValue:               val,
	}, ""
}

// fairProbability is the vig-free percentage of side in the closing market.
// It falls back to the raw implied percentage when the market is incomplete.
func fairProbability(side string, home, draw, away float64) float64 {
	idx := map[string]int{SideHome: 0, SideAway: 1, SideDraw: 2}[side]

	prices := []float64{home, away}
	if draw > 1 {
		prices = append(prices, draw)
	}
	if idx < len(prices) {
		if fair := odds.FairPercents(prices...); fair[idx] > 0 {
			return fair[idx]
		}
	}

	raw := map[string]float64{SideHome: home, SideAway: away, SideDraw: draw}[side]
	return mathutil.Round(odds.DecimalToImplied(raw)*100, 2)
}
