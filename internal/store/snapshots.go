package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const snapshotColumns = `match_ref, sport, bookmaker, league, home_team, away_team, match_date,
	home_odds, draw_odds, away_odds, prev_home_odds, prev_draw_odds, prev_away_odds,
	home_change_pct, draw_change_pct, away_change_pct, model_home, model_draw, model_away,
	home_edge, draw_edge, away_edge, best_edge, has_steam_move, steam_direction, steam_note,
	has_value, alert_level, bookmaker_count, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var s Snapshot
	err := row.Scan(&s.MatchRef, &s.Sport, &s.Bookmaker, &s.League, &s.HomeTeam, &s.AwayTeam, &s.MatchDate,
		&s.HomeOdds, &s.DrawOdds, &s.AwayOdds, &s.PrevHomeOdds, &s.PrevDrawOdds, &s.PrevAwayOdds,
		&s.HomeChangePct, &s.DrawChangePct, &s.AwayChangePct, &s.ModelHome, &s.ModelDraw, &s.ModelAway,
		&s.HomeEdge, &s.DrawEdge, &s.AwayEdge, &s.BestEdge, &s.HasSteamMove, &s.SteamDirection, &s.SteamNote,
		&s.HasValue, &s.AlertLevel, &s.BookmakerCount, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// GetSnapshot retrieves a snapshot by key
func (d *DB) GetSnapshot(ctx context.Context, matchRef, sport, bookmaker string) (*Snapshot, error) {
	row := d.db.QueryRowContext(ctx, d.rebind(`
		SELECT `+snapshotColumns+`
		FROM odds_snapshots WHERE match_ref = ? AND sport = ? AND bookmaker = ?
	`), matchRef, sport, bookmaker)

	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning snapshot: %w", err)
	}
	return &s, nil
}

// UpsertSnapshot creates the snapshot or overwrites every field but created_at.
// Concurrent writers for the same key resolve as last write wins.
func (d *DB) UpsertSnapshot(ctx context.Context, s Snapshot) (bool, error) {
	now := time.Now().UTC()
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	if s.Bookmaker == "" {
		s.Bookmaker = ConsensusBookmaker
	}

	var exists int
	err := d.db.QueryRowContext(ctx, d.rebind(`
		SELECT 1 FROM odds_snapshots WHERE match_ref = ? AND sport = ? AND bookmaker = ?
	`), s.MatchRef, s.Sport, s.Bookmaker).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("checking snapshot: %w", err)
	}
	created := err == sql.ErrNoRows

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 31), ", ")
	_, err = d.db.ExecContext(ctx, d.rebind(`
		INSERT INTO odds_snapshots (`+snapshotColumns+`)
		VALUES (`+placeholders+`)
		ON CONFLICT (match_ref, sport, bookmaker) DO UPDATE SET
			league = excluded.league,
			home_team = excluded.home_team,
			away_team = excluded.away_team,
			match_date = excluded.match_date,
			home_odds = excluded.home_odds,
			draw_odds = excluded.draw_odds,
			away_odds = excluded.away_odds,
			prev_home_odds = excluded.prev_home_odds,
			prev_draw_odds = excluded.prev_draw_odds,
			prev_away_odds = excluded.prev_away_odds,
			home_change_pct = excluded.home_change_pct,
			draw_change_pct = excluded.draw_change_pct,
			away_change_pct = excluded.away_change_pct,
			model_home = excluded.model_home,
			model_draw = excluded.model_draw,
			model_away = excluded.model_away,
			home_edge = excluded.home_edge,
			draw_edge = excluded.draw_edge,
			away_edge = excluded.away_edge,
			best_edge = excluded.best_edge,
			has_steam_move = excluded.has_steam_move,
			steam_direction = excluded.steam_direction,
			steam_note = excluded.steam_note,
			has_value = excluded.has_value,
			alert_level = excluded.alert_level,
			bookmaker_count = excluded.bookmaker_count,
			updated_at = excluded.updated_at
	`), s.MatchRef, s.Sport, s.Bookmaker, s.League, s.HomeTeam, s.AwayTeam, s.MatchDate.UTC(),
		s.HomeOdds, s.DrawOdds, s.AwayOdds, s.PrevHomeOdds, s.PrevDrawOdds, s.PrevAwayOdds,
		s.HomeChangePct, s.DrawChangePct, s.AwayChangePct, s.ModelHome, s.ModelDraw, s.ModelAway,
		s.HomeEdge, s.DrawEdge, s.AwayEdge, s.BestEdge, s.HasSteamMove, s.SteamDirection, s.SteamNote,
		s.HasValue, s.AlertLevel, s.BookmakerCount, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("upserting snapshot %s/%s: %w", s.Sport, s.MatchRef, err)
	}
	return created, nil
}

// DeleteSnapshotsBefore removes snapshots whose match date is before cutoff
func (d *DB) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, d.rebind("DELETE FROM odds_snapshots WHERE match_date < ?"), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting snapshots: %w", err)
	}
	return result.RowsAffected()
}

// ListSnapshots retrieves snapshots, soonest match first
func (d *DB) ListSnapshots(ctx context.Context, f SnapshotFilter) ([]Snapshot, error) {
	var where []string
	var args []any
	if f.Sport != "" {
		where = append(where, "sport = ?")
		args = append(args, f.Sport)
	}
	if f.AlertLevel != "" {
		where = append(where, "alert_level = ?")
		args = append(args, f.AlertLevel)
	}
	if f.SteamOnly {
		where = append(where, "has_steam_move = ?")
		args = append(args, true)
	}

	query := "SELECT " + snapshotColumns + " FROM odds_snapshots"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY match_date ASC, match_ref ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := d.db.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}
