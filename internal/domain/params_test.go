package domain

import "testing"

func TestParameterSet_WithDoesNotMutate(t *testing.T) {
	p, err := NewParameterSet("F02", []string{"a", "b", "c"}, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("NewParameterSet: %v", err)
	}

	q := p.With("b", 9)

	if v, _ := p.Get("b"); v != 2 {
		t.Errorf("original mutated: b = %v", v)
	}
	if v, _ := q.Get("b"); v != 9 {
		t.Errorf("copy not updated: b = %v", v)
	}
	if p.Equal(q) {
		t.Error("expected sets to differ")
	}
}

func TestParameterSet_JSONKeepsOrder(t *testing.T) {
	p, _ := NewParameterSet("F01", []string{"d", "a", "c"}, []float64{0.5, 1.25, -0.75})

	raw := p.String()
	if raw != `{"d":0.5,"a":1.25,"c":-0.75}` {
		t.Fatalf("unexpected JSON: %s", raw)
	}

	back, err := ParseParameterSet("F01", raw)
	if err != nil {
		t.Fatalf("ParseParameterSet: %v", err)
	}
	if !back.Equal(p) {
		t.Errorf("decoded set differs: %s", back.String())
	}
	if back.Hash() != p.Hash() {
		t.Error("hash changed after decode")
	}
}

func TestParameterSet_MismatchedLengths(t *testing.T) {
	if _, err := NewParameterSet("F01", []string{"a"}, nil); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}

func TestFormula_Validate(t *testing.T) {
	f := Formula{
		ID:         "F99",
		ParamNames: []string{"a"},
		Bounds:     map[string]Bound{"a": {Min: 2, Max: 1}},
	}
	if err := f.Validate(); err == nil {
		t.Fatal("expected inverted bound to fail validation")
	}

	f.Bounds["a"] = Bound{Min: 1, Max: 2}
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
