package dataset

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var nullTokens = map[string]bool{
	"": true, "null": true, "none": true, "nan": true, "na": true, "n/a": true, "-": true,
}

func IsNull(v string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(v))]
}

var numberNoise = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", "¥", "", "Rp", "", " ", "")

// ParseNumber accepts plain numbers plus currency symbols, thousands separators and a
// trailing percent sign. The value is returned as written, never rescaled.
func ParseNumber(v string) (float64, bool) {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0, false
	}
	s = strings.TrimSuffix(s, "%")
	s = numberNoise.Replace(s)
	if s == "" || s == "-" || s == "+" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var yearRe = regexp.MustCompile(`^[12][0-9]{3}$`)

// IsYear matches four-digit years 1000..2999.
func IsYear(v string) bool {
	return yearRe.MatchString(strings.TrimSpace(v))
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"02-Jan-2006",
	"January 2, 2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01",
	"Jan 2006",
}

// ParseDate tries the supported layouts in order. Bare years are not dates.
func ParseDate(v string) (time.Time, bool) {
	s := strings.TrimSpace(v)
	if len(s) < 6 {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TimeKey orders temporal tokens: years and numbers by value, dates by unix time.
func TimeKey(v string) (float64, bool) {
	s := strings.TrimSpace(v)
	if IsYear(s) {
		f, _ := strconv.ParseFloat(s, 64)
		return f, true
	}
	if t, ok := ParseDate(s); ok {
		return float64(t.Unix()), true
	}
	return ParseNumber(s)
}

var timeHints = []string{"time", "year", "date", "period", "month", "tahun", "periode", "bulan", "tanggal", "waktu", "day", "week", "quarter"}

// NameHintsTime reports whether a column name suggests a time axis.
func NameHintsTime(name string) bool {
	for _, tok := range Tokens(name) {
		for _, h := range timeHints {
			if tok == h || tok == h+"s" {
				return true
			}
		}
	}
	return false
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// Tokens lowercases and splits an identifier on non-alphanumerics and camelCase boundaries.
func Tokens(name string) []string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		isUpper := r >= 'A' && r <= 'Z'
		if isUpper && prevLower {
			b.WriteByte(' ')
		}
		prevLower = (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		b.WriteRune(r)
	}
	parts := tokenSplit.Split(strings.ToLower(b.String()), -1)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func distinctSamples(rows [][]string, col, n int) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if IsNull(v) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) >= n {
			break
		}
	}
	return out
}

func uniqueCount(rows [][]string, col int) int {
	seen := map[string]struct{}{}
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if IsNull(v) {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}
