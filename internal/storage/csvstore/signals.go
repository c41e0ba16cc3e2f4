package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"formula-lab/internal/domain"
)

var signalHeader = []string{"timestamp", "direction", "confidence", "iv", "session", "price"}

// LoadSignals reads validator signals from a CSV file with columns
// timestamp,direction,confidence,iv,session,price. Timestamps are Unix
// milliseconds or RFC 3339. An empty session is derived from the UTC hour.
// Only timestamp and direction are required; missing numeric columns read
// as zero.
func LoadSignals(path string) ([]domain.TradeSignal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signals: %w", err)
	}
	defer f.Close()
	return ReadSignals(f)
}

// ReadSignals parses signals from r. See LoadSignals.
func ReadSignals(r io.Reader) ([]domain.TradeSignal, error) {
	cr := csv.NewReader(r)
	cols, err := readHeader(cr, "timestamp", "direction")
	if err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}

	var out []domain.TradeSignal
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read signals line %d: %w", line, err)
		}

		p := parser{cols: cols, rec: rec}
		ts, err := parseTimestamp(p.str("timestamp"))
		if err != nil {
			return nil, fmt.Errorf("signals line %d: %w", line, err)
		}
		sig := domain.TradeSignal{
			TimestampMs: ts,
			Direction:   domain.Direction(strings.ToUpper(p.str("direction"))),
			Confidence:  p.float("confidence"),
			IV:          p.float("iv"),
			Session:     domain.Session(strings.ToLower(p.str("session"))),
			Price:       p.float("price"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("signals line %d: %w", line, p.err)
		}
		if sig.Session == "" {
			sig.Session = domain.SessionForHour(time.UnixMilli(ts).UTC().Hour())
		}
		out = append(out, sig)
	}
	return out, nil
}

// WriteSignals writes signals in the format LoadSignals reads.
func WriteSignals(w io.Writer, signals []domain.TradeSignal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(signalHeader); err != nil {
		return err
	}
	for _, s := range signals {
		err := cw.Write([]string{
			strconv.FormatInt(s.TimestampMs, 10),
			string(s.Direction),
			formatFloat(s.Confidence),
			formatFloat(s.IV),
			string(s.Session),
			formatFloat(s.Price),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// parseTimestamp accepts Unix milliseconds or an RFC 3339 time.
func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: want unix ms or RFC 3339", s)
	}
	return t.UnixMilli(), nil
}
