package dataset

import "strconv"

// CountTransform derives a numeric "count" column for datasets with no numeric or temporal
// column: one row per distinct value of the first column, in first-seen order. It returns
// false and leaves n untouched when the dataset does not qualify.
func CountTransform(n *Normalized) (*Normalized, bool) {
	if n == nil || len(n.Rows) == 0 || len(n.Columns) == 0 || n.HasQuantitative() {
		return n, false
	}
	key := n.Columns[0]
	countCol := uniqueName("count", []string{key})

	order := []string{}
	counts := map[string]int{}
	for _, row := range n.Rows {
		v := row[0]
		if IsNull(v) {
			continue
		}
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	if len(order) == 0 {
		return n, false
	}

	rows := make([][]string, 0, len(order))
	for _, v := range order {
		rows = append(rows, []string{v, strconv.Itoa(counts[v])})
	}
	columns := []string{key, countCol}
	out := &Normalized{
		Columns: columns,
		Rows:    rows,
		Profiles: ProfileColumns(columns, rows, DefaultThreshold, map[string]SemanticType{
			key:      Categorical,
			countCol: Numeric,
		}),
		Melted:   n.Melted,
		Melt:     n.Melt,
		Warnings: append([]string(nil), n.Warnings...),
		Derived:  append(append([]string(nil), n.Derived...), countCol),
	}
	return out, true
}
