package domain

import "fmt"

// Bound is an inclusive [Min, Max] sampling range.
type Bound struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the bound.
func (b Bound) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Clip clamps v into the bound.
func (b Bound) Clip(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Formula is a parameterized scoring expression from the catalog.
// Immutable once the catalog is built.
type Formula struct {
	ID          string           // "F01".."F20"
	Name        string           // snake_case human name
	Description string           // free-text description
	ParamNames  []string         // declaration order
	Bounds      map[string]Bound // per-parameter sampling range
	ThLong      Bound            // long threshold sampling range
	ThShort     Bound            // short threshold sampling range
}

// Bound returns the sampling range for a parameter.
func (f *Formula) Bound(name string) (Bound, bool) {
	b, ok := f.Bounds[name]
	return b, ok
}

// Validate checks that every declared parameter has a well-formed bound.
func (f *Formula) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("formula id is empty")
	}
	if len(f.ParamNames) == 0 {
		return fmt.Errorf("formula %s: no parameters", f.ID)
	}
	seen := make(map[string]struct{}, len(f.ParamNames))
	for _, name := range f.ParamNames {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("formula %s: duplicate parameter %q", f.ID, name)
		}
		seen[name] = struct{}{}

		b, ok := f.Bounds[name]
		if !ok {
			return fmt.Errorf("formula %s: parameter %q has no bound", f.ID, name)
		}
		if b.Min > b.Max {
			return fmt.Errorf("formula %s: parameter %q bound min %.4f > max %.4f", f.ID, name, b.Min, b.Max)
		}
	}
	if len(f.Bounds) != len(f.ParamNames) {
		return fmt.Errorf("formula %s: bounds declare %d parameters, expected %d", f.ID, len(f.Bounds), len(f.ParamNames))
	}
	if f.ThLong.Min > f.ThLong.Max || f.ThShort.Min > f.ThShort.Max {
		return fmt.Errorf("formula %s: malformed threshold bounds", f.ID)
	}
	return nil
}
