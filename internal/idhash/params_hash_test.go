package idhash

import "testing"

func TestComputeParamsHash_OrderIndependent(t *testing.T) {
	h1 := ComputeParamsHash("F01", []string{"a", "b", "c"}, []float64{1.5, 0.2, 0.7})
	h2 := ComputeParamsHash("F01", []string{"c", "a", "b"}, []float64{0.7, 1.5, 0.2})

	if h1 != h2 {
		t.Fatalf("hash depends on parameter order: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64-char hash, got %d", len(h1))
	}
}

func TestComputeParamsHash_ValueSensitive(t *testing.T) {
	h1 := ComputeParamsHash("F01", []string{"a"}, []float64{1.0})
	h2 := ComputeParamsHash("F01", []string{"a"}, []float64{1.0000000001})
	h3 := ComputeParamsHash("F02", []string{"a"}, []float64{1.0})

	if h1 == h2 {
		t.Error("tiny value change should change hash")
	}
	if h1 == h3 {
		t.Error("formula id should be part of hash")
	}
}

func TestComputeFrameFingerprint(t *testing.T) {
	ts := []int64{0, 60000, 120000}
	spot := []float64{100, 101, 102}

	f1 := ComputeFrameFingerprint("BTC", ts, spot)
	f2 := ComputeFrameFingerprint("BTC", ts, spot)
	if f1 != f2 {
		t.Fatal("fingerprint not deterministic")
	}

	if ComputeFrameFingerprint("SOL", ts, spot) == f1 {
		t.Error("symbol should change fingerprint")
	}
	if ComputeFrameFingerprint("BTC", ts, []float64{100, 101, 103}) == f1 {
		t.Error("spot change should change fingerprint")
	}

	iv := []float64{0.5, 0.5, 0.5}
	withIV := ComputeFrameFingerprint("BTC", ts, spot, iv)
	if withIV == f1 {
		t.Error("extra column should change fingerprint")
	}
	if ComputeFrameFingerprint("BTC", ts, spot, []float64{0.5, 0.6, 0.5}) == withIV {
		t.Error("iv change should change fingerprint")
	}
	if ComputeFrameFingerprint("BTC", ts, nil, append(spot, iv...)) == withIV {
		t.Error("column boundaries should be part of fingerprint")
	}
}
