package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

const insertTrialResult = `
	INSERT INTO trial_results (
		table_name, position, trial_id, run_id, formula_id, formula_name, params,
		sharpe_ratio, sortino_ratio, calmar_ratio, profit_factor, win_rate,
		max_drawdown, total_return, volatility, periods,
		score, status, failure, origin, base_trial_id
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11, $12,
		$13, $14, $15, $16,
		$17, $18, $19, $20, $21
	)
`

// SaveResults replaces the contents of a table in one transaction.
// Other tables are untouched.
func (s *ResultStore) SaveResults(ctx context.Context, table domain.ResultTable, results []*domain.TrialResult) error {
	if table == "" {
		return storage.ErrInvalidInput
	}
	for _, r := range results {
		if r == nil || r.FormulaID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO result_tables (table_name, row_count, saved_at)
		VALUES ($1, $2, now())
		ON CONFLICT (table_name) DO UPDATE
		SET row_count = EXCLUDED.row_count, saved_at = EXCLUDED.saved_at
	`, string(table), len(results))
	if err != nil {
		return fmt.Errorf("upsert result table %s: %w", table, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM trial_results WHERE table_name = $1`, string(table)); err != nil {
		return fmt.Errorf("clear result table %s: %w", table, err)
	}

	batch := &pgx.Batch{}
	for i, r := range results {
		m := r.Metrics
		batch.Queue(insertTrialResult,
			string(table), i, r.TrialID, r.RunID, r.FormulaID, r.FormulaName, r.Params.String(),
			m.SharpeRatio, m.SortinoRatio, m.CalmarRatio, m.ProfitFactor, m.WinRate,
			m.MaxDrawdown, m.TotalReturn, m.Volatility, m.Periods,
			r.Score, string(r.Status), r.Failure, string(r.Origin), r.BaseTrialID,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range results {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert trial result: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LoadResults returns a table's rows in saved order. Returns ErrNotFound if never saved.
func (s *ResultStore) LoadResults(ctx context.Context, table domain.ResultTable) ([]*domain.TrialResult, error) {
	var rowCount int
	err := s.pool.QueryRow(ctx, `SELECT row_count FROM result_tables WHERE table_name = $1`, string(table)).Scan(&rowCount)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get result table %s: %w", table, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
			trial_id, run_id, formula_id, formula_name, params,
			sharpe_ratio, sortino_ratio, calmar_ratio, profit_factor, win_rate,
			max_drawdown, total_return, volatility, periods,
			score, status, failure, origin, base_trial_id
		FROM trial_results
		WHERE table_name = $1
		ORDER BY position ASC
	`, string(table))
	if err != nil {
		return nil, fmt.Errorf("query result table %s: %w", table, err)
	}
	defer rows.Close()

	results := make([]*domain.TrialResult, 0, rowCount)
	for rows.Next() {
		r, err := scanTrialResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trial results: %w", err)
	}
	return results, nil
}

func scanTrialResult(row pgx.Row) (*domain.TrialResult, error) {
	var r domain.TrialResult
	var params, status, origin string
	m := &r.Metrics
	err := row.Scan(
		&r.TrialID, &r.RunID, &r.FormulaID, &r.FormulaName, &params,
		&m.SharpeRatio, &m.SortinoRatio, &m.CalmarRatio, &m.ProfitFactor, &m.WinRate,
		&m.MaxDrawdown, &m.TotalReturn, &m.Volatility, &m.Periods,
		&r.Score, &status, &r.Failure, &origin, &r.BaseTrialID,
	)
	if err != nil {
		return nil, fmt.Errorf("scan trial result: %w", err)
	}

	r.Params, err = domain.ParseParameterSet(r.FormulaID, params)
	if err != nil {
		return nil, fmt.Errorf("parse params of trial %s: %w", r.TrialID, err)
	}
	r.Status = domain.TrialStatus(status)
	r.Origin = domain.Origin(origin)
	return &r, nil
}
