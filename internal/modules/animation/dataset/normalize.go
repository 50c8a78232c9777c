package dataset

import (
	"fmt"
	"strings"
)

type Options struct {
	// Threshold is the parseable fraction used by type inference.
	Threshold float64
	// MinWideColumns is the shortest run of time-valued headers treated as wide.
	MinWideColumns int
	// Pinned types skip inference for the named columns.
	Pinned map[string]SemanticType
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 || o.Threshold > 1 {
		o.Threshold = DefaultThreshold
	}
	if o.MinWideColumns < 2 {
		o.MinWideColumns = 3
	}
	return o
}

type headerKind int

const (
	headerOther headerKind = iota
	headerYear
	headerDate
)

func classifyHeader(h string) headerKind {
	if IsYear(h) {
		return headerYear
	}
	if _, ok := ParseDate(h); ok {
		return headerDate
	}
	return headerOther
}

type wideRun struct {
	start, end int // [start, end)
	kind       headerKind
}

// detectWide finds the longest contiguous run of same-kind time headers. The dataset is
// wide only when the run is long enough and at least one other column remains.
func detectWide(columns []string, minRun int) (wideRun, bool) {
	var best wideRun
	i := 0
	for i < len(columns) {
		k := classifyHeader(columns[i])
		if k == headerOther {
			i++
			continue
		}
		j := i + 1
		for j < len(columns) && classifyHeader(columns[j]) == k {
			j++
		}
		if j-i > best.end-best.start {
			best = wideRun{start: i, end: j, kind: k}
		}
		i = j
	}
	n := best.end - best.start
	if n < minRun || n == len(columns) {
		return wideRun{}, false
	}
	return best, true
}

// Normalize melts wide data into long form and profiles every column. Long input passes
// through unchanged.
func Normalize(raw *Raw, opts Options) (*Normalized, Summary) {
	opts = opts.withDefaults()
	sum := Summary{Transform: TransformNone, InputRows: len(raw.Rows)}

	warnings := append([]string(nil), raw.Warnings...)
	if len(raw.Rows) == 0 {
		warnings = append(warnings, "dataset has no rows")
		n := &Normalized{
			Columns:  append([]string(nil), raw.Columns...),
			Rows:     [][]string{},
			Profiles: ProfileColumns(raw.Columns, nil, opts.Threshold, opts.Pinned),
			Warnings: warnings,
		}
		sum.Warnings = warnings
		return n, sum
	}

	run, wide := detectWide(raw.Columns, opts.MinWideColumns)
	if !wide {
		n := &Normalized{
			Columns:  append([]string(nil), raw.Columns...),
			Rows:     copyRows(raw.Rows),
			Profiles: ProfileColumns(raw.Columns, raw.Rows, opts.Threshold, opts.Pinned),
			Warnings: warnings,
		}
		sum.OutputRows = len(n.Rows)
		sum.Warnings = warnings
		return n, sum
	}

	n := melt(raw, run, opts)
	n.Warnings = append(warnings, n.Warnings...)
	sum.Transform = TransformMelt
	sum.OutputRows = len(n.Rows)
	sum.Collapsed = run.end - run.start
	sum.Warnings = n.Warnings
	return n, sum
}

// Renormalize runs Normalize over already-normalized data with its types pinned. For long
// input it returns an equal dataset.
func Renormalize(n *Normalized, opts Options) (*Normalized, Summary) {
	opts.Pinned = n.Types()
	raw := &Raw{Columns: n.Columns, Rows: n.Rows}
	out, sum := Normalize(raw, opts)
	if sum.Transform == TransformNone {
		out.Melted = n.Melted
		out.Melt = n.Melt
		out.Derived = n.Derived
		out.Warnings = n.Warnings
	}
	return out, sum
}

func melt(raw *Raw, run wideRun, opts Options) *Normalized {
	var idIdx []int
	var ids []string
	for i, c := range raw.Columns {
		if i < run.start || i >= run.end {
			idIdx = append(idIdx, i)
			ids = append(ids, c)
		}
	}
	collapsed := append([]string(nil), raw.Columns[run.start:run.end]...)

	timeBase := "year"
	if run.kind == headerDate {
		timeBase = "date"
	}
	timeCol := uniqueName(timeBase, ids)
	valueCol := uniqueName("value", append(append([]string(nil), ids...), timeCol))

	rows := make([][]string, 0, len(raw.Rows)*len(collapsed))
	allNumeric := true
	for _, src := range raw.Rows {
		for k, header := range collapsed {
			row := make([]string, 0, len(ids)+2)
			for _, i := range idIdx {
				row = append(row, src[i])
			}
			cell := src[run.start+k]
			if !IsNull(cell) {
				if _, ok := ParseNumber(cell); !ok {
					allNumeric = false
				}
			}
			row = append(row, strings.TrimSpace(header), cell)
			rows = append(rows, row)
		}
	}

	// Identifier columns keep the type they had before the melt.
	pinned := map[string]SemanticType{}
	for k, v := range opts.Pinned {
		pinned[k] = v
	}
	for j, i := range idIdx {
		if _, ok := pinned[ids[j]]; !ok {
			pinned[ids[j]] = Infer(ids[j], columnValues(raw.Rows, i), opts.Threshold)
		}
	}
	pinned[timeCol] = Temporal
	if allNumeric {
		pinned[valueCol] = Numeric
	} else {
		pinned[valueCol] = Categorical
	}

	columns := append(append([]string(nil), ids...), timeCol, valueCol)
	n := &Normalized{
		Columns:  columns,
		Rows:     rows,
		Profiles: ProfileColumns(columns, rows, opts.Threshold, pinned),
		Melted:   true,
		Melt: &MeltInfo{
			Group:     ids,
			Time:      timeCol,
			Value:     valueCol,
			TimeType:  Temporal,
			Collapsed: collapsed,
		},
	}
	if !allNumeric {
		n.Warnings = append(n.Warnings, fmt.Sprintf("column %q holds non-numeric values and was typed categorical", valueCol))
	}
	return n
}

func uniqueName(base string, taken []string) string {
	used := map[string]bool{}
	for _, t := range taken {
		used[strings.ToLower(t)] = true
	}
	if !used[base] {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if !used[name] {
			return name
		}
	}
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
