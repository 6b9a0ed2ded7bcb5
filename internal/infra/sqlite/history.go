package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── History Store ──────────────────────────────────────────────────────────
// Persisted layout: id, channel, profile, full nested program scores as
// JSON, totals, iteration counters, time blocks and the optional AI
// response.

// SaveResult persists a completed run.
func (db *DB) SaveResult(ctx context.Context, result *domain.StoredResult) error {
	programs, err := json.Marshal(result.Programs)
	if err != nil {
		return fmt.Errorf("marshal programs: %w", err)
	}
	iterations, err := json.Marshal(result.AllIterations)
	if err != nil {
		return fmt.Errorf("marshal iterations: %w", err)
	}
	timeBlocks, err := json.Marshal(result.TimeBlocks)
	if err != nil {
		return fmt.Errorf("marshal time blocks: %w", err)
	}

	_, err = db.db.ExecContext(ctx, `
		INSERT INTO programming_results
			(id, channel_id, profile_id, programs_json, total_score, average_score,
			 total_duration_min, iteration, total_iterations, iterations_json,
			 time_blocks_json, ai_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			programs_json      = excluded.programs_json,
			total_score        = excluded.total_score,
			average_score      = excluded.average_score,
			total_duration_min = excluded.total_duration_min,
			iteration          = excluded.iteration,
			total_iterations   = excluded.total_iterations,
			iterations_json    = excluded.iterations_json,
			time_blocks_json   = excluded.time_blocks_json,
			ai_response        = excluded.ai_response
	`, result.ID, result.ChannelID, result.ProfileID, string(programs),
		result.TotalScore, result.AverageScore, result.TotalDurationMin,
		result.Iteration, result.TotalIterations, string(iterations),
		string(timeBlocks), result.AIResponse, result.CreatedAt.Format(time.RFC3339))
	return err
}

// GetResult loads one stored run.
func (db *DB) GetResult(ctx context.Context, id string) (*domain.StoredResult, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, channel_id, profile_id, programs_json, total_score, average_score,
		       total_duration_min, iteration, total_iterations, iterations_json,
		       time_blocks_json, ai_response, created_at
		FROM programming_results WHERE id = ?
	`, id)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrResultNotFound
	}
	return result, err
}

// ListResults returns recent runs, newest first. An empty channelID
// lists across channels.
func (db *DB) ListResults(ctx context.Context, channelID string, limit int) ([]*domain.StoredResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, channel_id, profile_id, programs_json, total_score, average_score,
		       total_duration_min, iteration, total_iterations, iterations_json,
		       time_blocks_json, ai_response, created_at
		FROM programming_results`
	args := []any{}
	if channelID != "" {
		query += ` WHERE channel_id = ?`
		args = append(args, channelID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.StoredResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// DeleteResult removes one stored run.
func (db *DB) DeleteResult(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM programming_results WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrResultNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*domain.StoredResult, error) {
	var (
		result                                    domain.StoredResult
		programsJSON, iterationsJSON, blocksJSON  string
		aiResponse                                sql.NullString
		createdStr                                string
	)
	err := row.Scan(&result.ID, &result.ChannelID, &result.ProfileID, &programsJSON,
		&result.TotalScore, &result.AverageScore, &result.TotalDurationMin,
		&result.Iteration, &result.TotalIterations, &iterationsJSON,
		&blocksJSON, &aiResponse, &createdStr)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(programsJSON), &result.Programs); err != nil {
		return nil, fmt.Errorf("unmarshal programs: %w", err)
	}
	if iterationsJSON != "" {
		if err := json.Unmarshal([]byte(iterationsJSON), &result.AllIterations); err != nil {
			return nil, fmt.Errorf("unmarshal iterations: %w", err)
		}
	}
	if blocksJSON != "" {
		if err := json.Unmarshal([]byte(blocksJSON), &result.TimeBlocks); err != nil {
			return nil, fmt.Errorf("unmarshal time blocks: %w", err)
		}
	}
	if aiResponse.Valid {
		result.AIResponse = aiResponse.String
	}
	result.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	return &result, nil
}
