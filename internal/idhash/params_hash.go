package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ComputeParamsHash computes a deterministic hash of a parameter assignment.
// Parameters are sorted by name so declaration order does not matter.
// Formula: SHA256(formula_id|name1=value1|name2=value2|...)
// Values are encoded with the shortest representation that round-trips.
func ComputeParamsHash(formulaID string, names []string, values []float64) string {
	idx := make([]int, len(names))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return names[idx[a]] < names[idx[b]] })

	var sb strings.Builder
	sb.WriteString(formulaID)
	for _, i := range idx {
		sb.WriteByte('|')
		sb.WriteString(names[i])
		sb.WriteByte('=')
		var v float64
		if i < len(values) {
			v = values[i]
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}

// ComputeFrameFingerprint hashes a frame's symbol, timestamps and raw columns.
// Columns are hashed in the order given; an empty column still adds a separator.
func ComputeFrameFingerprint(symbol string, timestamps []int64, columns ...[]float64) string {
	h := sha256.New()
	h.Write([]byte(symbol))
	h.Write([]byte{'|'})

	var buf [8]byte
	for _, ts := range timestamps {
		binary.LittleEndian.PutUint64(buf[:], uint64(ts))
		h.Write(buf[:])
	}
	for _, col := range columns {
		h.Write([]byte{'|'})
		for _, v := range col {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
