// Package csvstore keeps search results and input series as CSV files.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
)

var resultHeader = []string{
	"formula_id", "formula_name", "params",
	"sharpe_ratio", "profit_factor", "win_rate", "max_drawdown", "total_return",
	"volatility", "sortino_ratio", "calmar_ratio", "periods", "score",
	"status", "failure", "origin", "trial_id", "run_id", "base_trial_id",
}

// ResultStore implements storage.ResultStore with one CSV file per table.
type ResultStore struct {
	dir string
}

// NewResultStore creates a store rooted at dir. The directory is created on first save.
func NewResultStore(dir string) *ResultStore {
	return &ResultStore{dir: dir}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// Path returns the file backing a table.
func (s *ResultStore) Path(table domain.ResultTable) string {
	return filepath.Join(s.dir, string(table)+".csv")
}

// SaveResults replaces a table's file. The write goes to a temp file that is
// renamed into place, so readers see either the old or the new snapshot.
func (s *ResultStore) SaveResults(_ context.Context, table domain.ResultTable, results []*domain.TrialResult) error {
	if table == "" {
		return storage.ErrInvalidInput
	}
	for _, r := range results {
		if r == nil || r.FormulaID == "" {
			return storage.ErrInvalidInput
		}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, string(table)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(resultHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		if err := w.Write(encodeResult(r)); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", table, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path(table)); err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}
	return nil
}

// LoadResults returns a table's rows in saved order. Returns ErrNotFound if never saved.
func (s *ResultStore) LoadResults(_ context.Context, table domain.ResultTable) ([]*domain.TrialResult, error) {
	f, err := os.Open(s.Path(table))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", table, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	cols, err := readHeader(r, resultHeader...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	results := []*domain.TrialResult{}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", table, line, err)
		}
		res, err := decodeResult(cols, rec)
		if err != nil {
			return nil, fmt.Errorf("decode %s line %d: %w", table, line, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func encodeResult(r *domain.TrialResult) []string {
	m := r.Metrics
	return []string{
		r.FormulaID,
		r.FormulaName,
		r.Params.String(),
		formatFloat(m.SharpeRatio),
		formatFloat(m.ProfitFactor),
		formatFloat(m.WinRate),
		formatFloat(m.MaxDrawdown),
		formatFloat(m.TotalReturn),
		formatFloat(m.Volatility),
		formatFloat(m.SortinoRatio),
		formatFloat(m.CalmarRatio),
		strconv.Itoa(m.Periods),
		formatFloat(r.Score),
		string(r.Status),
		r.Failure,
		string(r.Origin),
		r.TrialID,
		r.RunID,
		r.BaseTrialID,
	}
}

func decodeResult(cols columns, rec []string) (*domain.TrialResult, error) {
	p := parser{cols: cols, rec: rec}
	r := &domain.TrialResult{
		FormulaID:   p.str("formula_id"),
		FormulaName: p.str("formula_name"),
		Status:      domain.TrialStatus(p.str("status")),
		Failure:     p.str("failure"),
		Origin:      domain.Origin(p.str("origin")),
		TrialID:     p.str("trial_id"),
		RunID:       p.str("run_id"),
		BaseTrialID: p.str("base_trial_id"),
		Score:       p.float("score"),
		Metrics: domain.PerformanceMetrics{
			SharpeRatio:  p.float("sharpe_ratio"),
			ProfitFactor: p.float("profit_factor"),
			WinRate:      p.float("win_rate"),
			MaxDrawdown:  p.float("max_drawdown"),
			TotalReturn:  p.float("total_return"),
			Volatility:   p.float("volatility"),
			SortinoRatio: p.float("sortino_ratio"),
			CalmarRatio:  p.float("calmar_ratio"),
			Periods:      int(p.int("periods")),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	params, err := domain.ParseParameterSet(r.FormulaID, p.str("params"))
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	r.Params = params
	return r, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
