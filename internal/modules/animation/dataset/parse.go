package dataset

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmptyFile = errors.New("dataset file is empty")
	ErrTooLarge  = errors.New("dataset file exceeds size limit")
)

type ParseOptions struct {
	Name string
	// MaxBytes bounds the upload. Zero means 50 MiB.
	MaxBytes int64
	// Delimiter forces a delimiter instead of sniffing.
	Delimiter rune
}

var candidateDelims = []rune{',', ';', '\t', '|'}

// Parse reads a delimited file with a header row. Ragged rows are padded to the header width.
func Parse(r io.Reader, opts ParseOptions) (*Raw, error) {
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = 50 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return ParseBytes(data, opts)
}

func ParseBytes(data []byte, opts ParseOptions) (*Raw, error) {
	sum := sha256.Sum256(data)
	size := int64(len(data))
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = SniffDelimiter(data)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	raw := &Raw{
		Name:      opts.Name,
		Columns:   headerNames(records[0]),
		Delimiter: delim,
		Hash:      hex.EncodeToString(sum[:]),
		Size:      size,
	}
	width := len(raw.Columns)
	truncated := 0
	for _, rec := range records[1:] {
		if isBlankRecord(rec) {
			continue
		}
		row := make([]string, width)
		for i := 0; i < width && i < len(rec); i++ {
			row[i] = strings.TrimSpace(rec[i])
		}
		if len(rec) > width {
			truncated++
		}
		raw.Rows = append(raw.Rows, row)
	}
	if truncated > 0 {
		raw.Warnings = append(raw.Warnings, fmt.Sprintf("%d rows had more cells than the header; extra cells were dropped", truncated))
	}
	return raw, nil
}

func isBlankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func headerNames(rec []string) []string {
	out := make([]string, len(rec))
	seen := map[string]int{}
	for i, h := range rec {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name]++
		out[i] = name
	}
	return out
}

// SniffDelimiter picks the candidate that splits the first lines most consistently.
func SniffDelimiter(data []byte) rune {
	lines := strings.Split(string(data), "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	best, bestScore := ',', -1
	for _, d := range candidateDelims {
		counts := []int{}
		for _, l := range lines {
			l = strings.TrimRight(l, "\r")
			if strings.TrimSpace(l) == "" {
				continue
			}
			counts = append(counts, strings.Count(l, string(d)))
		}
		if len(counts) == 0 || counts[0] == 0 {
			continue
		}
		consistent := 0
		for _, c := range counts {
			if c == counts[0] {
				consistent++
			}
		}
		score := consistent*100 + counts[0]
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}
