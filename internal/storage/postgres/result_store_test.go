package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
)

func createTestResult(t *testing.T, formulaID string, score float64, origin domain.Origin) *domain.TrialResult {
	t.Helper()
	params, err := domain.NewParameterSet(formulaID, []string{"w", "alpha"}, []float64{30, score / 10})
	require.NoError(t, err)
	return &domain.TrialResult{
		TrialID:     formulaID + "-trial",
		RunID:       "run-1",
		FormulaID:   formulaID,
		FormulaName: "name " + formulaID,
		Params:      params,
		Metrics: domain.PerformanceMetrics{
			SharpeRatio:  score,
			SortinoRatio: score * 1.2,
			CalmarRatio:  0.7,
			ProfitFactor: 1.4,
			WinRate:      0.52,
			MaxDrawdown:  0.11,
			TotalReturn:  0.08,
			Volatility:   0.3,
			Periods:      999,
		},
		Score:  score,
		Status: domain.TrialStatusOK,
		Origin: origin,
	}
}

func TestResultStore_SaveAndLoad(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewResultStore(pool)
	ctx := context.Background()

	results := []*domain.TrialResult{
		createTestResult(t, "F03", 2.5, domain.OriginCoarse),
		createTestResult(t, "F01", 1.5, domain.OriginCoarse),
	}
	results[1].BaseTrialID = "base-1"

	require.NoError(t, store.SaveResults(ctx, domain.TableCoarseResults, results))

	got, err := store.LoadResults(ctx, domain.TableCoarseResults)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Saved order is preserved
	assert.Equal(t, "F03", got[0].FormulaID)
	assert.Equal(t, "F01", got[1].FormulaID)

	assert.Equal(t, results[0].Metrics, got[0].Metrics)
	assert.Equal(t, []string{"w", "alpha"}, got[0].Params.Names())
	assert.True(t, results[0].Params.Equal(got[0].Params))
	assert.Equal(t, "F03", got[0].Params.FormulaID)
	assert.Equal(t, domain.TrialStatusOK, got[0].Status)
	assert.Equal(t, domain.OriginCoarse, got[0].Origin)
	assert.Equal(t, "base-1", got[1].BaseTrialID)
}

func TestResultStore_LoadNeverSaved(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewResultStore(pool)

	_, err := store.LoadResults(context.Background(), domain.TableLeaderboard)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResultStore_SaveReplacesOnlyThatTable(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewResultStore(pool)
	ctx := context.Background()

	require.NoError(t, store.SaveResults(ctx, domain.TableLeaderboard, []*domain.TrialResult{
		createTestResult(t, "F01", 1, domain.OriginCoarse),
		createTestResult(t, "F02", 0.5, domain.OriginCoarse),
	}))
	require.NoError(t, store.SaveResults(ctx, domain.TableFineTuneTop, []*domain.TrialResult{
		createTestResult(t, "F05", 3, domain.OriginFineTune),
	}))

	// Replace the leaderboard with a single row
	require.NoError(t, store.SaveResults(ctx, domain.TableLeaderboard, []*domain.TrialResult{
		createTestResult(t, "F09", 4, domain.OriginFineTune),
	}))

	board, err := store.LoadResults(ctx, domain.TableLeaderboard)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "F09", board[0].FormulaID)

	top, err := store.LoadResults(ctx, domain.TableFineTuneTop)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "F05", top[0].FormulaID)

	// Saving an empty table is distinct from never saving it
	require.NoError(t, store.SaveResults(ctx, domain.TableFineTuneResults, nil))
	empty, err := store.LoadResults(ctx, domain.TableFineTuneResults)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResultStore_ResaveSameTrialsReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewResultStore(pool)
	ctx := context.Background()

	r := createTestResult(t, "F04", 1.1, domain.OriginCoarse)
	// The same trial may appear twice in one table; rows are keyed by position.
	results := []*domain.TrialResult{r, r}

	require.NoError(t, store.SaveResults(ctx, domain.TableCoarseResults, results))
	err := store.SaveResults(ctx, domain.TableCoarseResults, results)
	require.NoError(t, err)
	assert.NotErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.LoadResults(ctx, domain.TableCoarseResults)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, r.TrialID, got[0].TrialID)
	assert.Equal(t, r.TrialID, got[1].TrialID)
}

func TestResultStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewResultStore(pool)
	ctx := context.Background()

	err := store.SaveResults(ctx, "", nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.SaveResults(ctx, domain.TableLeaderboard, []*domain.TrialResult{nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
