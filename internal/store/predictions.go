package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const predictionColumns = `id, match_ref, sport, home_team, away_team, kickoff, predicted_side, opening_odds,
	closing_odds, closing_probability_fair, clv_percentage, clv_value, clv_fetched, clv_fetched_at`

func scanPrediction(row scanner) (Prediction, error) {
	var p Prediction
	var opening, closing, fair, pct, val sql.NullFloat64
	var fetchedAt sql.NullTime

	err := row.Scan(&p.ID, &p.MatchRef, &p.Sport, &p.HomeTeam, &p.AwayTeam, &p.Kickoff, &p.PredictedSide, &opening,
		&closing, &fair, &pct, &val, &p.CLVFetched, &fetchedAt)
	if err != nil {
		return p, err
	}

	p.OpeningOdds = opening.Float64
	p.ClosingOdds = nullFloat(closing)
	p.ClosingProbabilityFair = nullFloat(fair)
	p.CLVPercentage = nullFloat(pct)
	p.CLVValue = nullFloat(val)
	if fetchedAt.Valid {
		t := fetchedAt.Time
		p.CLVFetchedAt = &t
	}
	return p, nil
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// InsertPrediction adds a prediction and returns its ID
func (d *DB) InsertPrediction(ctx context.Context, p Prediction) (int64, error) {
	var opening any
	if p.OpeningOdds > 0 {
		opening = p.OpeningOdds
	}

	var id int64
	err := d.db.QueryRowContext(ctx, d.rebind(`
		INSERT INTO predictions (match_ref, sport, home_team, away_team, kickoff, predicted_side, opening_odds, clv_fetched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), p.MatchRef, p.Sport, p.HomeTeam, p.AwayTeam, p.Kickoff.UTC(), p.PredictedSide, opening, p.CLVFetched).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting prediction: %w", err)
	}
	return id, nil
}

// GetPrediction retrieves a prediction by ID
func (d *DB) GetPrediction(ctx context.Context, id int64) (*Prediction, error) {
	row := d.db.QueryRowContext(ctx, d.rebind(`
		SELECT `+predictionColumns+` FROM predictions WHERE id = ?
	`), id)

	p, err := scanPrediction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning prediction: %w", err)
	}
	return &p, nil
}

// PendingCLV retrieves unprocessed predictions kicking off in [from, to]
func (d *DB) PendingCLV(ctx context.Context, from, to time.Time, limit int) ([]Prediction, error) {
	rows, err := d.db.QueryContext(ctx, d.rebind(`
		SELECT `+predictionColumns+`
		FROM predictions
		WHERE clv_fetched = ? AND opening_odds > 1 AND kickoff >= ? AND kickoff <= ?
		ORDER BY kickoff ASC, id ASC
		LIMIT ?
	`), false, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending predictions: %w", err)
	}
	defer rows.Close()

	var predictions []Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning prediction row: %w", err)
		}
		predictions = append(predictions, p)
	}

	return predictions, rows.Err()
}

// MarkCLV writes the CLV fields and sets clv_fetched. Already-processed
// predictions are left untouched.
func (d *DB) MarkCLV(ctx context.Context, id int64, r CLVResult) (bool, error) {
	result, err := d.db.ExecContext(ctx, d.rebind(`
		UPDATE predictions
		SET closing_odds = ?, closing_probability_fair = ?, clv_percentage = ?, clv_value = ?,
			clv_fetched = ?, clv_fetched_at = ?
		WHERE id = ? AND clv_fetched = ?
	`), r.ClosingOdds, r.ClosingProbabilityFair, r.CLVPercentage, r.CLVValue, true, time.Now().UTC(), id, false)
	if err != nil {
		return false, fmt.Errorf("updating prediction %d: %w", id, err)
	}
	return affected(result)
}

// MarkCLVUnresolved sets clv_fetched without CLV fields so the prediction is not retried.
func (d *DB) MarkCLVUnresolved(ctx context.Context, id int64) (bool, error) {
	result, err := d.db.ExecContext(ctx, d.rebind(`
		UPDATE predictions SET clv_fetched = ?, clv_fetched_at = ?
		WHERE id = ? AND clv_fetched = ?
	`), true, time.Now().UTC(), id, false)
	if err != nil {
		return false, fmt.Errorf("marking prediction %d: %w", id, err)
	}
	return affected(result)
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}
