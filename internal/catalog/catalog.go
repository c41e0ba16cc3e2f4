// Package catalog holds the immutable registry of parameterized formulas
// and the parameter samplers used by the search phases.
package catalog

import (
	"fmt"
	"math/rand"
	"sort"

	"formula-lab/internal/domain"
)

// Catalog is an immutable formula registry. Safe for concurrent use.
type Catalog struct {
	formulas map[string]domain.Formula
	ids      []string // sorted
}

// New builds the catalog with every built-in formula.
// Returns an error if any declaration is malformed.
func New() (*Catalog, error) {
	return newFromSpecs(builtin)
}

// Must is like New but panics if the built-in declarations are malformed.
func Must() *Catalog {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
}

func newFromSpecs(specs []spec) (*Catalog, error) {
	c := &Catalog{formulas: make(map[string]domain.Formula, len(specs))}
	for _, s := range specs {
		f := s.toFormula()
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("build catalog: %w", err)
		}
		if _, dup := c.formulas[f.ID]; dup {
			return nil, fmt.Errorf("build catalog: duplicate formula %s", f.ID)
		}
		c.formulas[f.ID] = f
		c.ids = append(c.ids, f.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// Get returns the formula with the given id.
func (c *Catalog) Get(id string) (domain.Formula, bool) {
	f, ok := c.formulas[id]
	return f, ok
}

// All returns every formula keyed by id.
func (c *Catalog) All() map[string]domain.Formula {
	out := make(map[string]domain.Formula, len(c.formulas))
	for id, f := range c.formulas {
		out[id] = f
	}
	return out
}

// IDs returns formula ids in sorted order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Len returns the number of formulas.
func (c *Catalog) Len() int { return len(c.ids) }

// GenerateRandomParams draws n parameter sets, each parameter uniform over its bound.
// Parameters are drawn in declaration order so a fixed rng seed reproduces the sequence.
// Unknown ids return nil.
func (c *Catalog) GenerateRandomParams(id string, n int, rng *rand.Rand) []domain.ParameterSet {
	f, ok := c.formulas[id]
	if !ok || n <= 0 {
		return nil
	}

	out := make([]domain.ParameterSet, 0, n)
	for i := 0; i < n; i++ {
		values := make([]float64, len(f.ParamNames))
		for j, name := range f.ParamNames {
			b := f.Bounds[name]
			values[j] = b.Min + rng.Float64()*(b.Max-b.Min)
		}
		ps, _ := domain.NewParameterSet(id, f.ParamNames, values)
		out = append(out, ps)
	}
	return out
}

// CreateGridAround perturbs one parameter at a time by -step, 0 and +step,
// clipping to the formula bound. A k-parameter base yields exactly 3k sets,
// duplicates included. Unknown formulas or foreign parameter names return nil.
func (c *Catalog) CreateGridAround(base domain.ParameterSet, step float64) []domain.ParameterSet {
	f, ok := c.formulas[base.FormulaID]
	if !ok {
		return nil
	}

	out := make([]domain.ParameterSet, 0, 3*base.Len())
	for i := 0; i < base.Len(); i++ {
		name := base.Name(i)
		b, ok := f.Bounds[name]
		if !ok {
			return nil
		}
		for _, offset := range []float64{-step, 0, step} {
			out = append(out, base.With(name, b.Clip(base.Value(i)+offset)))
		}
	}
	return out
}

// Dedupe removes repeated parameter sets, keeping first occurrences in order.
func Dedupe(sets []domain.ParameterSet) []domain.ParameterSet {
	seen := make(map[string]struct{}, len(sets))
	out := make([]domain.ParameterSet, 0, len(sets))
	for _, s := range sets {
		h := s.Hash()
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, s)
	}
	return out
}
