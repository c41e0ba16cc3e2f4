package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"formula-lab/internal/domain"
)

// Market holds the series read from one market CSV file.
type Market struct {
	Spot  []*domain.SpotBar
	IV    []*domain.IVPoint
	Basis []*domain.BasisPoint
}

// LoadMarket reads a market CSV for symbol. The file needs a timestamp
// column; each series is read only when all of its columns are present:
//
//	spot:  close, volume
//	iv:    iv_30d, skew_30d
//	basis: basis_rel, funding_rate, open_interest
func LoadMarket(path, symbol string) (*Market, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market file: %w", err)
	}
	defer f.Close()
	return ReadMarket(f, symbol)
}

// ReadMarket parses a market CSV from r. See LoadMarket.
func ReadMarket(r io.Reader, symbol string) (*Market, error) {
	cr := csv.NewReader(r)
	cols, err := readHeader(cr, "timestamp")
	if err != nil {
		return nil, fmt.Errorf("read market: %w", err)
	}

	has := func(names ...string) bool {
		for _, n := range names {
			if _, ok := cols[n]; !ok {
				return false
			}
		}
		return true
	}
	hasSpot := has("close", "volume")
	hasIV := has("iv_30d", "skew_30d")
	hasBasis := has("basis_rel", "funding_rate", "open_interest")
	if !hasSpot && !hasIV && !hasBasis {
		return nil, fmt.Errorf("read market: no spot, iv or basis columns")
	}

	m := &Market{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read market line %d: %w", line, err)
		}

		p := parser{cols: cols, rec: rec}
		ts, err := parseTimestamp(p.str("timestamp"))
		if err != nil {
			return nil, fmt.Errorf("market line %d: %w", line, err)
		}
		if hasSpot {
			m.Spot = append(m.Spot, &domain.SpotBar{
				Symbol: symbol, TimestampMs: ts,
				Close: p.float("close"), Volume: p.float("volume"),
			})
		}
		if hasIV {
			m.IV = append(m.IV, &domain.IVPoint{
				Symbol: symbol, TimestampMs: ts,
				IV30d: p.float("iv_30d"), Skew30d: p.float("skew_30d"),
			})
		}
		if hasBasis {
			m.Basis = append(m.Basis, &domain.BasisPoint{
				Symbol: symbol, TimestampMs: ts,
				BasisRel: p.float("basis_rel"), FundingRate: p.float("funding_rate"), OpenInterest: p.float("open_interest"),
			})
		}
		if p.err != nil {
			return nil, fmt.Errorf("market line %d: %w", line, p.err)
		}
	}
	return m, nil
}
