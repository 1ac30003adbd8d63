package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB implements SnapshotStore and PredictionStore on sqlite or postgres.
type DB struct {
	db     *sql.DB
	driver string
}

var (
	_ SnapshotStore   = (*DB)(nil)
	_ PredictionStore = (*DB)(nil)
)

// Open connects to the database and creates missing tables. dsn is a file
// path for sqlite and a connection URL for postgres.
func Open(driver, dsn string) (*DB, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite:
		sqlDriver = "sqlite3"
	case DriverPostgres:
		sqlDriver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer; concurrent jobs queue on the connection instead of hitting SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	d := &DB{db: db, driver: driver}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the connection.
func (d *DB) Ping() error {
	return d.db.Ping()
}

func (d *DB) createTables() error {
	schema := sqliteSchema
	if d.driver == DriverPostgres {
		schema = postgresSchema
	}
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS odds_snapshots (
	match_ref TEXT NOT NULL,
	sport TEXT NOT NULL,
	bookmaker TEXT NOT NULL,
	league TEXT NOT NULL DEFAULT '',
	home_team TEXT NOT NULL,
	away_team TEXT NOT NULL,
	match_date DATETIME NOT NULL,
	home_odds REAL NOT NULL,
	draw_odds REAL NOT NULL DEFAULT 0,
	away_odds REAL NOT NULL,
	prev_home_odds REAL NOT NULL DEFAULT 0,
	prev_draw_odds REAL NOT NULL DEFAULT 0,
	prev_away_odds REAL NOT NULL DEFAULT 0,
	home_change_pct REAL NOT NULL DEFAULT 0,
	draw_change_pct REAL NOT NULL DEFAULT 0,
	away_change_pct REAL NOT NULL DEFAULT 0,
	model_home INTEGER NOT NULL DEFAULT 0,
	model_draw INTEGER NOT NULL DEFAULT 0,
	model_away INTEGER NOT NULL DEFAULT 0,
	home_edge REAL NOT NULL DEFAULT 0,
	draw_edge REAL NOT NULL DEFAULT 0,
	away_edge REAL NOT NULL DEFAULT 0,
	best_edge REAL NOT NULL DEFAULT 0,
	has_steam_move BOOLEAN NOT NULL DEFAULT FALSE,
	steam_direction TEXT NOT NULL DEFAULT '',
	steam_note TEXT NOT NULL DEFAULT '',
	has_value BOOLEAN NOT NULL DEFAULT FALSE,
	alert_level TEXT NOT NULL DEFAULT '',
	bookmaker_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (match_ref, sport, bookmaker)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_match_date ON odds_snapshots(match_date);

CREATE TABLE IF NOT EXISTS predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	match_ref TEXT NOT NULL DEFAULT '',
	sport TEXT NOT NULL,
	home_team TEXT NOT NULL,
	away_team TEXT NOT NULL,
	kickoff DATETIME NOT NULL,
	predicted_side TEXT NOT NULL,
	opening_odds REAL,
	closing_odds REAL,
	closing_probability_fair REAL,
	clv_percentage REAL,
	clv_value REAL,
	clv_fetched BOOLEAN NOT NULL DEFAULT FALSE,
	clv_fetched_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_predictions_pending ON predictions(clv_fetched, kickoff);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS odds_snapshots (
	match_ref TEXT NOT NULL,
	sport TEXT NOT NULL,
	bookmaker TEXT NOT NULL,
	league TEXT NOT NULL DEFAULT '',
	home_team TEXT NOT NULL,
	away_team TEXT NOT NULL,
	match_date TIMESTAMPTZ NOT NULL,
	home_odds DOUBLE PRECISION NOT NULL,
	draw_odds DOUBLE PRECISION NOT NULL DEFAULT 0,
	away_odds DOUBLE PRECISION NOT NULL,
	prev_home_odds DOUBLE PRECISION NOT NULL DEFAULT 0,
	prev_draw_odds DOUBLE PRECISION NOT NULL DEFAULT 0,
	prev_away_odds DOUBLE PRECISION NOT NULL DEFAULT 0,
	home_change_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	draw_change_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	away_change_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	model_home INTEGER NOT NULL DEFAULT 0,
	model_draw INTEGER NOT NULL DEFAULT 0,
	model_away INTEGER NOT NULL DEFAULT 0,
	home_edge DOUBLE PRECISION NOT NULL DEFAULT 0,
	draw_edge DOUBLE PRECISION NOT NULL DEFAULT 0,
	away_edge DOUBLE PRECISION NOT NULL DEFAULT 0,
	best_edge DOUBLE PRECISION NOT NULL DEFAULT 0,
	has_steam_move BOOLEAN NOT NULL DEFAULT FALSE,
	steam_direction TEXT NOT NULL DEFAULT '',
	steam_note TEXT NOT NULL DEFAULT '',
	has_value BOOLEAN NOT NULL DEFAULT FALSE,
	alert_level TEXT NOT NULL DEFAULT '',
	bookmaker_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (match_ref, sport, bookmaker)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_match_date ON odds_snapshots(match_date);

CREATE TABLE IF NOT EXISTS predictions (
	id BIGSERIAL PRIMARY KEY,
	match_ref TEXT NOT NULL DEFAULT '',
	sport TEXT NOT NULL,
	home_team TEXT NOT NULL,
	away_team TEXT NOT NULL,
	kickoff TIMESTAMPTZ NOT NULL,
	predicted_side TEXT NOT NULL,
	opening_odds DOUBLE PRECISION,
	closing_odds DOUBLE PRECISION,
	closing_probability_fair DOUBLE PRECISION,
	clv_percentage DOUBLE PRECISION,
	clv_value DOUBLE PRECISION,
	clv_fetched BOOLEAN NOT NULL DEFAULT FALSE,
	clv_fetched_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_predictions_pending ON predictions(clv_fetched, kickoff);
`
