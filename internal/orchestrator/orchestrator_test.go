package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"formula-lab/internal/catalog"
	"formula-lab/internal/config"
	"formula-lab/internal/domain"
	"formula-lab/internal/reporting"
	"formula-lab/internal/search"
	"formula-lab/internal/storage/csvstore"
	"formula-lab/internal/storage/memory"
	"formula-lab/internal/synthetic"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Start = "2024-01-01"
	cfg.Data.End = "2024-01-04"
	cfg.Data.SyntheticBars = 3 * 24 * 60
	cfg.Search.CoarseSearch.SamplesPerFormula = 4
	cfg.Search.CoarseSearch.TopCandidates = 2
	cfg.Search.FineTune.TopCandidates = 2
	cfg.Search.LeaderboardSize = 5
	cfg.Search.FineTuneTopSize = 2
	cfg.Search.Workers = 2
	cfg.Search.Formulas = []string{"F01", "F05"}
	cfg.Results.Dir = t.TempDir()
	return cfg
}

func TestOrchestrator_Run_Synthetic(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	source, closeSource, err := OpenSource(ctx, cfg)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer closeSource()
	results := memory.NewResultStore()

	var events int
	orch := New(Options{
		Config:   cfg,
		Source:   source,
		Results:  results,
		Progress: func(p search.Progress) { events++ },
	})

	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no phase errors, got: %v", result.Errors)
	}
	if result.DataUnavailable {
		t.Fatal("expected data to be available")
	}
	if result.Bars != 3*24*60 {
		t.Errorf("expected %d bars, got %d", 3*24*60, result.Bars)
	}
	if result.CoarseTrials != 8 {
		t.Errorf("expected 8 coarse trials, got %d", result.CoarseTrials)
	}
	if result.FineTuneTrials == 0 {
		t.Error("expected fine-tune trials")
	}
	if result.Best == nil {
		t.Fatal("expected a best strategy")
	}
	if result.Best.Origin != domain.OriginFineTune {
		t.Errorf("expected best from fine_tune, got %s", result.Best.Origin)
	}
	if result.Validation == nil {
		t.Fatal("expected validation result")
	}
	if events == 0 {
		t.Error("expected progress events")
	}

	for _, table := range []domain.ResultTable{
		domain.TableCoarseResults,
		domain.TableFineTuneResults,
		domain.TableFineTuneTop,
		domain.TableLeaderboard,
	} {
		if _, err := results.LoadResults(ctx, table); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}

	for _, name := range []string{
		reporting.TradesFile,
		reporting.EquityFile,
		reporting.MetricsFile,
		reporting.ValidationFile,
		reporting.SearchFile,
		reporting.BoardFile,
	} {
		if _, err := os.Stat(filepath.Join(cfg.Results.Dir, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}
	if len(result.Files) != 6 {
		t.Errorf("expected 6 files, got %d", len(result.Files))
	}
}

// fineTuneFailingStore rejects writes of the fine-tune results table.
type fineTuneFailingStore struct {
	*memory.ResultStore
}

func (s fineTuneFailingStore) SaveResults(ctx context.Context, table domain.ResultTable, results []*domain.TrialResult) error {
	if table == domain.TableFineTuneResults {
		return errors.New("disk full")
	}
	return s.ResultStore.SaveResults(ctx, table, results)
}

func TestOrchestrator_Run_FineTuneFailureIgnoresStoredTables(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	source, closeSource, err := OpenSource(ctx, cfg)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer closeSource()

	// Left over from an earlier run on another frame.
	mem := memory.NewResultStore()
	params := catalog.Must().GenerateRandomParams("F09", 1, rand.New(rand.NewSource(1)))[0]
	stale := &domain.TrialResult{
		TrialID:   "stale",
		FormulaID: "F09",
		Params:    params,
		Score:     99,
		Status:    domain.TrialStatusOK,
		Origin:    domain.OriginFineTune,
	}
	if err := mem.SaveResults(ctx, domain.TableFineTuneResults, []*domain.TrialResult{stale}); err != nil {
		t.Fatalf("seed stale table: %v", err)
	}

	orch := New(Options{Config: cfg, Source: source, Results: fineTuneFailingStore{mem}})
	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected only the fine-tune error, got: %v", result.Errors)
	}
	if result.FineTuneTrials != 0 {
		t.Errorf("expected no fine-tune trials, got %d", result.FineTuneTrials)
	}
	if result.Best == nil {
		t.Fatal("expected a best strategy from the coarse leaderboard")
	}
	if result.Best.TrialID == "stale" || result.Best.FormulaID == "F09" {
		t.Fatalf("validated a stored strategy from an earlier run: %s", result.Best.FormulaID)
	}
	if result.Best.Origin != domain.OriginCoarse {
		t.Errorf("expected coarse origin, got %s", result.Best.Origin)
	}
	if result.Validation == nil {
		t.Error("expected validation to run")
	}
}

func TestOrchestrator_Run_DataUnavailable(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	results := memory.NewResultStore()

	orch := New(Options{Config: cfg, Source: memory.NewMarketStore(), Results: results})

	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !result.DataUnavailable {
		t.Error("expected DataUnavailable")
	}
	if _, err := results.LoadResults(ctx, domain.TableCoarseResults); err == nil {
		t.Error("expected no coarse results to be saved")
	}
	entries, err := os.ReadDir(cfg.Results.Dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files, got %d", len(entries))
	}
}

func TestOrchestrator_Run_SignalsFile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	path := filepath.Join(t.TempDir(), "signals.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	start := int64(1704067200000) // 2024-01-01T00:00:00Z
	signals := []domain.TradeSignal{
		{TimestampMs: start + 3_600_000*10, Direction: domain.DirectionLong, Confidence: 0.8, IV: 0.5, Price: 100},
		{TimestampMs: start + 3_600_000*30, Direction: domain.DirectionShort, Confidence: 0.6, IV: 0.5, Price: 101},
	}
	if err := csvstore.WriteSignals(f, signals); err != nil {
		t.Fatalf("write signals: %v", err)
	}
	f.Close()
	cfg.Validation.SignalsPath = path

	source, closeSource, err := OpenSource(ctx, cfg)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer closeSource()

	orch := New(Options{Config: cfg, Source: source, Results: memory.NewResultStore()})
	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Signals != 2 {
		t.Errorf("expected 2 signals, got %d", result.Signals)
	}
	if result.Best != nil {
		t.Error("expected no best strategy when signals come from a file")
	}
}

func TestOrchestrator_Run_MissingSignalsFile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Validation.SignalsPath = filepath.Join(t.TempDir(), "missing.csv")

	source, closeSource, err := OpenSource(ctx, cfg)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer closeSource()

	orch := New(Options{Config: cfg, Source: source, Results: memory.NewResultStore()})
	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("expected coarse results to survive, got: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 phase error, got %v", result.Errors)
	}
	if result.Validation != nil {
		t.Error("expected no validation result")
	}
	if _, err := os.Stat(filepath.Join(cfg.Results.Dir, reporting.SearchFile)); err != nil {
		t.Errorf("expected search report despite validation failure: %v", err)
	}
}

func TestOpenSource_Unknown(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Source = "parquet"
	_, closeFn, err := OpenSource(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
	closeFn()
}

func TestOpenResultStore_CSVByDefault(t *testing.T) {
	cfg := config.Default()
	cfg.Results.Dir = t.TempDir()

	store, closeFn, err := OpenResultStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open result store: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*csvstore.ResultStore); !ok {
		t.Errorf("expected *csvstore.ResultStore, got %T", store)
	}
}

func TestOrchestrator_Validate_AfterSearch(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	source, closeSource, err := OpenSource(ctx, cfg)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer closeSource()
	results := memory.NewResultStore()

	orch := New(Options{Config: cfg, Source: source, Results: results})
	if _, err := orch.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	result, err := orch.Validate(ctx)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Best == nil || result.Best.Origin != domain.OriginFineTune {
		t.Errorf("expected fine-tune best strategy, got %+v", result.Best)
	}
	if len(result.Files) != 4 {
		t.Errorf("expected 4 validation files, got %d", len(result.Files))
	}
}

func TestOrchestrator_Validate_NoSearchResults(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	source, closeSource, err := OpenSource(ctx, cfg)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer closeSource()

	orch := New(Options{Config: cfg, Source: source, Results: memory.NewResultStore()})
	if _, err := orch.Validate(ctx); err == nil {
		t.Fatal("expected error without persisted search results")
	}
}

func TestFillFromFrame(t *testing.T) {
	frame, err := synthetic.Frame(synthetic.Options{StartMs: 1704067200000, Bars: 600, Seed: 1})
	if err != nil {
		t.Fatalf("frame: %v", err)
	}

	signals := []domain.TradeSignal{
		{TimestampMs: frame.Timestamps[100] + 30_000, Direction: domain.DirectionLong},
		{TimestampMs: frame.Timestamps[200], Direction: domain.DirectionShort, Price: 123, IV: 0.4},
	}
	if n := fillFromFrame(signals, frame); n != 1 {
		t.Errorf("expected 1 filled signal, got %d", n)
	}
	if signals[0].Price != frame.Spot[100] {
		t.Errorf("expected price %v from row 100, got %v", frame.Spot[100], signals[0].Price)
	}
	if signals[0].IV != frame.IV[100] {
		t.Errorf("expected iv %v from row 100, got %v", frame.IV[100], signals[0].IV)
	}
	if signals[1].Price != 123 || signals[1].IV != 0.4 {
		t.Errorf("expected complete signal untouched, got %+v", signals[1])
	}

	if n := fillFromFrame(signals, nil); n != 0 {
		t.Errorf("expected nothing filled without a frame, got %d", n)
	}
}
