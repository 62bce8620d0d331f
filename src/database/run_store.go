package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/username/tradelink/src/models"
)

// ErrRunNotFound is returned when no run with the requested id is stored.
var ErrRunNotFound = errors.New("reconciliation run not found")

// RunStore persists reconciliation runs with their trades and unusable observations.
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// SaveRun writes run and all its rows in one transaction. Trade order is preserved.
func (s *RunStore) SaveRun(ctx context.Context, run models.ReconciliationRun) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reconciliation_runs (id, generated_at, input_hash, auto_match_threshold, summary_json) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.GeneratedAt.UTC().Format(time.RFC3339Nano), run.InputHash, run.AutoMatchThreshold, string(summary))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `INSERT INTO trade_records
		(run_id, position, coin, entry_price, exit_price, roi, status, signal_ref, result_ref, match_confidence, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trade insert: %w", err)
	}
	defer tradeStmt.Close()

	for i, t := range run.Trades {
		_, err := tradeStmt.ExecContext(ctx, run.ID, i, t.Coin,
			nullFloat(t.EntryPrice), nullFloat(t.ExitPrice), nullFloat(t.ROI),
			string(t.Status), nullString(t.SignalRef), nullString(t.ResultRef),
			t.MatchConfidence, nullTime(t.Timestamp))
		if err != nil {
			return fmt.Errorf("failed to insert trade %d of run %s: %w", i, run.ID, err)
		}
	}

	unusableStmt, err := tx.PrepareContext(ctx, `INSERT INTO unusable_observations
		(run_id, position, kind, source_id, overall_confidence, reason) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare unusable insert: %w", err)
	}
	defer unusableStmt.Close()

	for i, u := range run.Unusable {
		if _, err := unusableStmt.ExecContext(ctx, run.ID, i, string(u.Kind), u.SourceID, u.OverallConfidence, u.Reason); err != nil {
			return fmt.Errorf("failed to insert unusable observation %d of run %s: %w", i, run.ID, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a stored run by id.
func (s *RunStore) GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	var generatedAt, summary string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, generated_at, input_hash, auto_match_threshold, summary_json FROM reconciliation_runs WHERE id = ?`, id).
		Scan(&run.ID, &generatedAt, &run.InputHash, &run.AutoMatchThreshold, &summary)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	if run.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt); err != nil {
		return nil, fmt.Errorf("invalid generated_at for run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("invalid summary for run %s: %w", id, err)
	}

	if run.Trades, err = s.loadTrades(ctx, id); err != nil {
		return nil, err
	}
	if run.Unusable, err = s.loadUnusable(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// FindByInputHash returns the id of the most recent run over identical input, if any.
func (s *RunStore) FindByInputHash(ctx context.Context, hash string, threshold float64) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM reconciliation_runs WHERE input_hash = ? AND auto_match_threshold = ? ORDER BY generated_at DESC LIMIT 1`,
		hash, threshold).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrRunNotFound
		}
		return "", fmt.Errorf("failed to look up run by input hash: %w", err)
	}
	return id, nil
}

// ListRuns returns the ids of stored runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM reconciliation_runs ORDER BY generated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *RunStore) loadTrades(ctx context.Context, runID string) ([]models.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT coin, entry_price, exit_price, roi, status, signal_ref, result_ref, match_confidence, timestamp
		FROM trade_records WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	trades := []models.TradeRecord{}
	for rows.Next() {
		var t models.TradeRecord
		var entry, exit, roi sql.NullFloat64
		var status string
		var signalRef, resultRef, ts sql.NullString
		if err := rows.Scan(&t.Coin, &entry, &exit, &roi, &status, &signalRef, &resultRef, &t.MatchConfidence, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan trade for run %s: %w", runID, err)
		}
		t.Status = models.TradeStatus(status)
		t.EntryPrice = floatPtr(entry)
		t.ExitPrice = floatPtr(exit)
		t.ROI = floatPtr(roi)
		t.SignalRef = stringPtr(signalRef)
		t.ResultRef = stringPtr(resultRef)
		if ts.Valid {
			parsed, err := time.Parse(time.RFC3339Nano, ts.String)
			if err != nil {
				return nil, fmt.Errorf("invalid trade timestamp for run %s: %w", runID, err)
			}
			t.Timestamp = &parsed
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *RunStore) loadUnusable(ctx context.Context, runID string) ([]models.UnusableObservation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, source_id, overall_confidence, reason
		FROM unusable_observations WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unusable observations for run %s: %w", runID, err)
	}
	defer rows.Close()

	out := []models.UnusableObservation{}
	for rows.Next() {
		var u models.UnusableObservation
		var kind string
		if err := rows.Scan(&kind, &u.SourceID, &u.OverallConfidence, &u.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan unusable observation for run %s: %w", runID, err)
		}
		u.Kind = models.Kind(kind)
		out = append(out, u)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.UTC().Format(time.RFC3339Nano), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
