package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// MarketH2H is the head-to-head (match winner) market key.
const MarketH2H = "h2h"

// DrawOutcome is the outcome name the provider uses for a draw.
const DrawOutcome = "Draw"

// ErrMissingAPIKey is returned before any request when no provider key is configured.
var ErrMissingAPIKey = errors.New("odds provider API key is not configured")

// OddsClient handles communication with an Odds-API style provider.
type OddsClient struct {
	apiKey  string
	baseURL string
	regions string
	client  *RateLimitedClient
}

// NewOddsClient creates a new provider client.
func NewOddsClient(apiKey, baseURL, regions string, requestsPerMinute int, timeout time.Duration) *OddsClient {
	return &OddsClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		regions: regions,
		client:  NewRateLimitedClient(requestsPerMinute, timeout),
	}
}

// Event is one fixture with every bookmaker's quotes.
type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Bookmaker is one odds-setter's set of markets for an event.
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market is a named market ("h2h", "totals", ...).
type Market struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Outcome is one priced outcome in decimal odds.
type Outcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// Market returns the bookmaker's market with the given key.
func (b Bookmaker) Market(key string) (Market, bool) {
	for _, m := range b.Markets {
		if m.Key == key {
			return m, true
		}
	}
	return Market{}, false
}

// Price returns the decimal price of the named outcome.
func (m Market) Price(name string) (float64, bool) {
	for _, o := range m.Outcomes {
		if strings.EqualFold(o.Name, name) {
			return o.Price, true
		}
	}
	return 0, false
}

// Label returns "Home vs Away".
func (e Event) Label() string {
	return strings.TrimSpace(e.HomeTeam) + " vs " + strings.TrimSpace(e.AwayTeam)
}

// Valid reports whether the event carries the fields the core needs.
func (e Event) Valid() bool {
	return e.ID != "" && strings.TrimSpace(e.HomeTeam) != "" && strings.TrimSpace(e.AwayTeam) != ""
}

// GetOdds fetches h2h quotes for events of sportKey starting in [from, to].
func (c *OddsClient) GetOdds(ctx context.Context, sportKey string, from, to time.Time) ([]Event, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("regions", c.regions)
	params.Set("markets", MarketH2H)
	params.Set("oddsFormat", "decimal")
	params.Set("dateFormat", "iso")
	params.Set("commenceTimeFrom", from.UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("commenceTimeTo", to.UTC().Format("2006-01-02T15:04:05Z"))

	reqURL := fmt.Sprintf("%s/sports/%s/odds?%s", c.baseURL, url.PathEscape(sportKey), params.Encode())

	body, header, err := c.client.Get(ctx, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching odds for %s: %w", sportKey, err)
	}

	if remaining := header.Get("x-requests-remaining"); remaining != "" {
		slog.Debug("Odds provider quota", "sport", sportKey, "remaining", remaining)
	}

	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decoding odds for %s: %w", sportKey, err)
	}

	return events, nil
}

// HasAPIKey reports whether a provider key is configured.
func (c *OddsClient) HasAPIKey() bool {
	return c.apiKey != ""
}
