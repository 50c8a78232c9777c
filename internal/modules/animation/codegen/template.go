package codegen

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/mapping"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
)

const (
	timeAxis  = "time_column"
	valueAxis = "value_column"
)

// FromTemplate fills a template skeleton. It is deterministic and never calls a model.
func FromTemplate(def templates.Definition, m mapping.Mapping, n *dataset.Normalized, opts Options) (Output, error) {
	if def.Skeleton == nil {
		return Output{}, fmt.Errorf("template %s has no skeleton", def.ID)
	}
	if err := mapping.Validate(def, m, n); err != nil {
		return Output{}, err
	}
	cols := m.Columns()

	records := buildRecords(def, cols, n)
	if col := cols[timeAxis]; col != "" {
		sortByTime(records, col)
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = def.DefaultTopN
	}
	if topN > 0 && cols[valueAxis] != "" {
		records = truncate(records, cols[valueAxis], cols[timeAxis], topN)
	}

	labels := ResolveLabels(def, opts.Labels)
	if err := checkLabels(def, labels); err != nil {
		return Output{}, err
	}

	rows := make([]map[string]interface{}, len(records))
	for i, r := range records {
		rows[i] = r.values
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return Output{}, fmt.Errorf("encode %s data: %w", def.ID, err)
	}

	src, err := def.Skeleton(templates.SkeletonInput{
		Title:    ResolveTitle(def, opts.Title),
		Columns:  cols,
		Labels:   labels,
		DataJSON: string(data),
		TopN:     topN,
		Style:    templates.ResolveStyle(opts.Theme, opts.Palette),
	})
	if err != nil {
		return Output{}, err
	}
	out := Output{Source: src, EntryPoint: EntryPoint, TemplateID: def.ID}
	if err := Validate(out.Source); err != nil {
		return Output{}, fmt.Errorf("template %s produced invalid source: %w", def.ID, err)
	}
	return out, nil
}

// ResolveLabels picks a display label for every axis: the caller's label, then the catalog
// label, then DefaultLabel. Caller keys may use short aliases.
func ResolveLabels(def templates.Definition, user map[string]string) map[string]string {
	given := map[string]string{}
	for k, v := range user {
		if v = strings.TrimSpace(v); v != "" {
			given[mapping.CanonicalKey(k)] = v
		}
	}
	out := make(map[string]string, len(def.Axes))
	for _, a := range def.Axes {
		switch {
		case given[a.Key] != "":
			out[a.Key] = given[a.Key]
		case strings.TrimSpace(a.DisplayLabel) != "":
			out[a.Key] = strings.TrimSpace(a.DisplayLabel)
		default:
			out[a.Key] = DefaultLabel
		}
	}
	return out
}

func checkLabels(def templates.Definition, labels map[string]string) error {
	for _, a := range def.Axes {
		if strings.TrimSpace(labels[a.Key]) == "" {
			return fmt.Errorf("%w: %s.%s", ErrEmptyLabel, def.ID, a.Key)
		}
	}
	return nil
}

func ResolveTitle(def templates.Definition, title string) string {
	for _, t := range []string{title, def.DefaultTitle, def.Name} {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return "Animation"
}

type record struct {
	index  int
	values map[string]interface{}
}

// buildRecords projects rows onto the mapped columns. Numeric axes are parsed as numbers;
// unparseable cells become null rather than zero.
func buildRecords(def templates.Definition, cols map[string]string, n *dataset.Normalized) []record {
	numeric := map[string]bool{}
	for _, a := range def.Axes {
		if c := cols[a.Key]; c != "" && a.Type == templates.AxisNumeric {
			numeric[c] = true
		}
	}
	type colRef struct {
		name string
		idx  int
	}
	var refs []colRef
	seen := map[string]bool{}
	for _, a := range def.Axes {
		c := cols[a.Key]
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		refs = append(refs, colRef{name: c, idx: n.Index(c)})
	}
	out := make([]record, 0, len(n.Rows))
	for i, row := range n.Rows {
		vals := make(map[string]interface{}, len(refs))
		for _, ref := range refs {
			cell := ""
			if ref.idx >= 0 && ref.idx < len(row) {
				cell = strings.TrimSpace(row[ref.idx])
			}
			switch {
			case dataset.IsNull(cell):
				vals[ref.name] = nil
			case numeric[ref.name]:
				if f, ok := dataset.ParseNumber(cell); ok {
					vals[ref.name] = f
				} else {
					vals[ref.name] = nil
				}
			default:
				vals[ref.name] = cell
			}
		}
		out = append(out, record{index: i, values: vals})
	}
	return out
}

func timeKey(r record, col string) (float64, bool) {
	s, ok := r.values[col].(string)
	if !ok {
		return 0, false
	}
	return dataset.TimeKey(s)
}

// sortByTime orders records by time; unparseable times keep their order after the rest.
func sortByTime(rs []record, col string) {
	sort.SliceStable(rs, func(i, j int) bool {
		ki, oki := timeKey(rs[i], col)
		kj, okj := timeKey(rs[j], col)
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		return ki < kj
	})
}

func value(r record, col string) (float64, bool) {
	f, ok := r.values[col].(float64)
	return f, ok
}

// truncate keeps the topN records by value, per time period when timeCol is set. Ties
// go to the earlier row; null values rank last. Surviving records keep their order.
func truncate(rs []record, valueCol, timeCol string, topN int) []record {
	groups := map[string][]record{}
	var order []string
	for _, r := range rs {
		g := ""
		if timeCol != "" {
			g = fmt.Sprint(r.values[timeCol])
		}
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], r)
	}
	keep := map[int]bool{}
	for _, g := range order {
		members := append([]record(nil), groups[g]...)
		sort.SliceStable(members, func(i, j int) bool {
			vi, oki := value(members[i], valueCol)
			vj, okj := value(members[j], valueCol)
			if oki != okj {
				return oki
			}
			if !oki || vi == vj {
				return members[i].index < members[j].index
			}
			return vi > vj
		})
		for i := 0; i < len(members) && i < topN; i++ {
			keep[members[i].index] = true
		}
	}
	out := rs[:0:0]
	for _, r := range rs {
		if keep[r.index] {
			out = append(out, r)
		}
	}
	return out
}
