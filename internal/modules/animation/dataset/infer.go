package dataset

import (
	"strings"
)

// DefaultThreshold is the parseable fraction of non-null values needed to type a column.
const DefaultThreshold = 0.80

type inferStats struct {
	nonNull   int
	numeric   int
	years     int
	dates     int
	yearRange int
}

func collect(values []string) inferStats {
	var s inferStats
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if IsNull(v) {
			continue
		}
		s.nonNull++
		if f, ok := ParseNumber(v); ok {
			s.numeric++
			if f == float64(int64(f)) && f >= 1900 && f <= 2100 {
				s.yearRange++
			}
		}
		if IsYear(v) {
			s.years++
		}
		if _, ok := ParseDate(v); ok {
			s.dates++
		}
	}
	return s
}

// Infer types one column. Names that hint at time promote year-like or date values to
// temporal; otherwise dates are temporal and numbers numeric when at least threshold of
// the non-null values parse.
func Infer(name string, values []string, threshold float64) SemanticType {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	s := collect(values)
	if s.nonNull == 0 {
		return Categorical
	}
	frac := func(n int) float64 { return float64(n) / float64(s.nonNull) }

	hinted := NameHintsTime(name)
	if hinted && (frac(s.years+s.dates) >= threshold || frac(s.yearRange) >= threshold) {
		return Temporal
	}
	if frac(s.dates) >= threshold {
		return Temporal
	}
	if frac(s.numeric) >= threshold {
		return Numeric
	}
	return Categorical
}

func columnValues(rows [][]string, col int) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if col < len(row) {
			out = append(out, row[col])
		} else {
			out = append(out, "")
		}
	}
	return out
}

// ProfileColumns infers every column. Types in pinned win over inference.
func ProfileColumns(columns []string, rows [][]string, threshold float64, pinned map[string]SemanticType) []ColumnProfile {
	out := make([]ColumnProfile, len(columns))
	for i, name := range columns {
		typ, ok := pinned[name]
		if !ok {
			typ = Infer(name, columnValues(rows, i), threshold)
		}
		out[i] = ColumnProfile{
			Name:    name,
			Type:    typ,
			Samples: distinctSamples(rows, i, 5),
			Unique:  uniqueCount(rows, i),
		}
	}
	return out
}
