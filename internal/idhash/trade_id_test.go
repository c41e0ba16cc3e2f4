package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name        string
		runID       string
		direction   string
		entryTimeMs int64
		signalIndex int
		wantLen     int // hash length should be 64
	}{
		{
			name:        "long trade",
			runID:       "run-1",
			direction:   "LONG",
			entryTimeMs: 1704067234567,
			signalIndex: 0,
			wantLen:     64,
		},
		{
			name:        "short trade",
			runID:       "run-2",
			direction:   "SHORT",
			entryTimeMs: 1704067300000,
			signalIndex: 7,
			wantLen:     64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.runID, tt.direction, tt.entryTimeMs, tt.signalIndex)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism
			got2 := ComputeTradeID(tt.runID, tt.direction, tt.entryTimeMs, tt.signalIndex)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("run", "LONG", 1000, 0)

	if ComputeTradeID("run", "SHORT", 1000, 0) == base {
		t.Error("direction change should change trade id")
	}
	if ComputeTradeID("run", "LONG", 1001, 0) == base {
		t.Error("entry time change should change trade id")
	}
	if ComputeTradeID("run", "LONG", 1000, 1) == base {
		t.Error("signal index change should change trade id")
	}
}

func TestComputeTrialID_OriginMatters(t *testing.T) {
	coarse := ComputeTrialID("F01", "abc", "coarse")
	fine := ComputeTrialID("F01", "abc", "fine_tune")
	if coarse == fine {
		t.Error("origin should be part of the trial id")
	}
}
