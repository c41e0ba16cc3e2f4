package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"formula-lab/internal/simulation"
)

// Validation artifact file names.
const (
	TradesFile     = "backtest_trades.csv"
	EquityFile     = "equity_curve.csv"
	MetricsFile    = "performance_metrics.json"
	ValidationFile = "validation_report.md"
	SearchFile     = "search_report.md"
	BoardFile      = "leaderboard.csv"
)

// WriteValidation writes the trade ledger, equity curve, metrics JSON and
// Markdown report of a validator run into dir. Returns the written paths.
func WriteValidation(dir string, generatedAt time.Time, cfg simulation.Config, res *simulation.Result) ([]string, error) {
	metrics, err := json.MarshalIndent(res.Metrics, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}

	return writeFiles(dir, []artifact{
		{TradesFile, []byte(RenderTradesCSV(res.Trades))},
		{EquityFile, []byte(RenderEquityCSV(res.Equity))},
		{MetricsFile, append(metrics, '\n')},
		{ValidationFile, []byte(RenderValidationMarkdown(generatedAt, cfg, res))},
	})
}

// WriteSearch writes the Markdown search report and leaderboard CSV into dir.
func WriteSearch(dir string, r *SearchReport) ([]string, error) {
	return writeFiles(dir, []artifact{
		{SearchFile, []byte(RenderSearchMarkdown(r))},
		{BoardFile, []byte(RenderLeaderboardCSV(r.Leaderboard))},
	})
}

type artifact struct {
	name string
	data []byte
}

func writeFiles(dir string, files []artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
