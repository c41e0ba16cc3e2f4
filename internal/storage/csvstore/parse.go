package csvstore

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// columns maps a header name to its index.
type columns map[string]int

// readHeader reads the first record and checks that every required column is present.
func readHeader(r *csv.Reader, required ...string) (columns, error) {
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(columns, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

// parser reads typed fields from one record and keeps the first error.
type parser struct {
	cols columns
	rec  []string
	err  error
}

func (p *parser) str(name string) string {
	i, ok := p.cols[name]
	if !ok || i >= len(p.rec) {
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *parser) float(name string) float64 {
	s := p.str(name)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", name, err)
	}
	return v
}

func (p *parser) int(name string) int64 {
	s := p.str(name)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", name, err)
	}
	return v
}
