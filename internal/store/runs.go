package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SaveRun stores a scan and its hits in one transaction.
func (s *SQLiteDB) SaveRun(ctx context.Context, run *Run, hits []Hit) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.ParamsJSON == "" {
		run.ParamsJSON = "{}"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
		id, game, server_seed_hash, client_seed, nonce_start, nonce_end, params_json,
		target_op, target_val, hit_limit, timed_out, hit_count, total_evaluated, rtp, engine_version
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Game, run.ServerSeedHash, run.ClientSeed, int64(run.NonceStart), int64(run.NonceEnd),
		run.ParamsJSON, run.TargetOp, run.TargetVal, run.HitLimit, boolInt(run.TimedOut),
		run.HitCount, int64(run.TotalEvaluated), run.RTP, run.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(hits) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO hits (run_id, nonce, metric) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, hit := range hits {
			if _, err := stmt.ExecContext(ctx, run.ID, int64(hit.Nonce), hit.Metric); err != nil {
				return fmt.Errorf("insert hit: %w", err)
			}
		}
	}

	return tx.Commit()
}

const runColumns = `id, game, server_seed_hash, client_seed, nonce_start, nonce_end, params_json,
	target_op, target_val, hit_limit, timed_out, hit_count, total_evaluated, rtp, engine_version, created_at`

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var start, end, evaluated int64
	var timedOut int
	err := row.Scan(&run.ID, &run.Game, &run.ServerSeedHash, &run.ClientSeed, &start, &end,
		&run.ParamsJSON, &run.TargetOp, &run.TargetVal, &run.HitLimit, &timedOut, &run.HitCount,
		&evaluated, &run.RTP, &run.EngineVersion, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.NonceStart, run.NonceEnd, run.TotalEvaluated = uint64(start), uint64(end), uint64(evaluated)
	run.TimedOut = timedOut == 1
	return &run, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteDB) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns returns runs newest first.
func (s *SQLiteDB) ListRuns(ctx context.Context, page, perPage int) (*RunsList, error) {
	page, perPage, offset := paginate(page, perPage, 50)

	var totalCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`, perPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, perPage)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return &RunsList{
		Runs:       runs,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages(totalCount, perPage),
	}, nil
}

// GetRunHits returns a page of hits ordered by nonce, each with the distance
// to the previous hit (across page boundaries).
func (s *SQLiteDB) GetRunHits(ctx context.Context, runID string, page, perPage int) (*HitsPage, error) {
	page, perPage, offset := paginate(page, perPage, 100)

	var totalCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hits WHERE run_id = ?`, runID).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get hits count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, nonce, metric FROM hits WHERE run_id = ?
		ORDER BY nonce LIMIT ? OFFSET ?`, runID, perPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query hits: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		var nonce int64
		if err := rows.Scan(&hit.ID, &hit.RunID, &nonce, &hit.Metric); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hit.Nonce = uint64(nonce)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hits: %w", err)
	}

	out := make([]HitWithDelta, len(hits))
	for i, hit := range hits {
		out[i] = HitWithDelta{Hit: hit}
		switch {
		case i > 0:
			delta := hit.Nonce - hits[i-1].Nonce
			out[i].DeltaNonce = &delta
		case page > 1:
			var prev int64
			err := s.db.QueryRowContext(ctx, `SELECT nonce FROM hits WHERE run_id = ? AND nonce < ?
				ORDER BY nonce DESC LIMIT 1`, runID, int64(hit.Nonce)).Scan(&prev)
			if err == nil {
				delta := hit.Nonce - uint64(prev)
				out[i].DeltaNonce = &delta
			}
		}
	}

	return &HitsPage{
		Hits:       out,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages(totalCount, perPage),
	}, nil
}
