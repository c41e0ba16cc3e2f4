package memory

import (
	"context"
	"errors"
	"testing"

	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
)

func TestMarketStore_InsertAndRange(t *testing.T) {
	store := NewMarketStore()
	ctx := context.Background()

	bars := []*domain.SpotBar{
		{Symbol: "BTC", TimestampMs: 3000, Close: 103},
		{Symbol: "BTC", TimestampMs: 1000, Close: 101},
		{Symbol: "BTC", TimestampMs: 2000, Close: 102},
		{Symbol: "SOL", TimestampMs: 1000, Close: 20},
	}
	if err := store.InsertSpotBars(ctx, bars); err != nil {
		t.Fatalf("InsertSpotBars failed: %v", err)
	}

	// half-open range excludes 3000
	result, err := store.GetSpotBars(ctx, "BTC", 1000, 3000)
	if err != nil {
		t.Fatalf("GetSpotBars failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(result))
	}
	if result[0].TimestampMs != 1000 || result[1].TimestampMs != 2000 {
		t.Errorf("Bars not sorted: %d, %d", result[0].TimestampMs, result[1].TimestampMs)
	}
}

func TestMarketStore_DuplicateKey(t *testing.T) {
	store := NewMarketStore()
	ctx := context.Background()

	points := []*domain.IVPoint{{Symbol: "BTC", TimestampMs: 1000, IV30d: 0.5}}
	if err := store.InsertIVPoints(ctx, points); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertIVPoints(ctx, points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestMarketStore_IntraBatchDuplicate(t *testing.T) {
	store := NewMarketStore()
	ctx := context.Background()

	points := []*domain.BasisPoint{
		{Symbol: "BTC", TimestampMs: 1000, BasisRel: 0.01},
		{Symbol: "BTC", TimestampMs: 1000, BasisRel: 0.02},
	}
	err := store.InsertBasisPoints(ctx, points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Nothing from the failed batch is visible
	result, _ := store.GetBasisPoints(ctx, "BTC", 0, 10000)
	if len(result) != 0 {
		t.Errorf("Expected 0 points after failed batch, got %d", len(result))
	}
}

func TestMarketStore_InvalidInput(t *testing.T) {
	store := NewMarketStore()

	err := store.InsertSpotBars(context.Background(), []*domain.SpotBar{{TimestampMs: 1}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestMarketStore_ReturnsCopies(t *testing.T) {
	store := NewMarketStore()
	ctx := context.Background()

	_ = store.InsertSpotBars(ctx, []*domain.SpotBar{{Symbol: "BTC", TimestampMs: 1, Close: 10}})

	got, _ := store.GetSpotBars(ctx, "BTC", 0, 10)
	got[0].Close = 999

	again, _ := store.GetSpotBars(ctx, "BTC", 0, 10)
	if again[0].Close != 10 {
		t.Errorf("store mutated through returned pointer: %v", again[0].Close)
	}
}
