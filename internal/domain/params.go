package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"formula-lab/internal/idhash"
)

// ParameterSet is one concrete assignment of values to a formula's parameters.
// Values are held in declaration order. A ParameterSet is never mutated;
// With returns a modified copy.
type ParameterSet struct {
	FormulaID string
	names     []string
	values    []float64
}

// NewParameterSet creates a ParameterSet. Slices are copied.
func NewParameterSet(formulaID string, names []string, values []float64) (ParameterSet, error) {
	if len(names) != len(values) {
		return ParameterSet{}, fmt.Errorf("parameter set %s: %d names but %d values", formulaID, len(names), len(values))
	}
	n := make([]string, len(names))
	copy(n, names)
	v := make([]float64, len(values))
	copy(v, values)
	return ParameterSet{FormulaID: formulaID, names: n, values: v}, nil
}

// Len returns the number of parameters.
func (p ParameterSet) Len() int { return len(p.names) }

// Name returns the i-th parameter name.
func (p ParameterSet) Name(i int) string { return p.names[i] }

// Value returns the i-th parameter value.
func (p ParameterSet) Value(i int) float64 { return p.values[i] }

// Names returns a copy of the parameter names.
func (p ParameterSet) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Values returns a copy of the parameter values.
func (p ParameterSet) Values() []float64 {
	out := make([]float64, len(p.values))
	copy(out, p.values)
	return out
}

// Get returns the value of a named parameter.
func (p ParameterSet) Get(name string) (float64, bool) {
	for i, n := range p.names {
		if n == name {
			return p.values[i], true
		}
	}
	return 0, false
}

// With returns a copy with one parameter replaced.
// Unknown names leave the copy unchanged.
func (p ParameterSet) With(name string, v float64) ParameterSet {
	out := ParameterSet{FormulaID: p.FormulaID, names: p.Names(), values: p.Values()}
	for i, n := range out.names {
		if n == name {
			out.values[i] = v
			break
		}
	}
	return out
}

// Equal reports whether both sets assign identical values to identical names.
func (p ParameterSet) Equal(o ParameterSet) bool {
	if p.FormulaID != o.FormulaID || len(p.names) != len(o.names) {
		return false
	}
	for i := range p.names {
		if p.names[i] != o.names[i] || p.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// Hash returns a deterministic hash over the sorted (name, value) pairs.
func (p ParameterSet) Hash() string {
	return idhash.ComputeParamsHash(p.FormulaID, p.names, p.values)
}

// String renders the set as its JSON object form.
func (p ParameterSet) String() string {
	b, _ := p.MarshalJSON()
	return string(b)
}

// MarshalJSON encodes the set as a JSON object in declaration order.
func (p ParameterSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(p.values[i], 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order.
// FormulaID is left untouched.
func (p *ParameterSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode parameter set: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode parameter set: expected object")
	}

	var names []string
	var values []float64
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode parameter name: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decode parameter set: non-string key")
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode parameter %q: %w", name, err)
		}
		names = append(names, name)
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode parameter set: %w", err)
	}

	p.names = names
	p.values = values
	return nil
}

// ParseParameterSet decodes the JSON form of a parameter set for a formula.
func ParseParameterSet(formulaID, raw string) (ParameterSet, error) {
	var p ParameterSet
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return ParameterSet{}, err
	}
	p.FormulaID = formulaID
	return p, nil
}
