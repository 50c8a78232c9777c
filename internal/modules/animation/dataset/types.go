package dataset

// SemanticType is the inferred role of a column.
type SemanticType string

const (
	Numeric     SemanticType = "numeric"
	Categorical SemanticType = "categorical"
	Temporal    SemanticType = "temporal"
)

// ColumnProfile describes one column. It is derived from content and never stored on its own.
type ColumnProfile struct {
	Name    string       `json:"name"`
	Type    SemanticType `json:"type"`
	Samples []string     `json:"samples"`
	Unique  int          `json:"unique"`
}

// Raw is a parsed delimited file before normalization.
type Raw struct {
	Name      string
	Columns   []string
	Rows      [][]string
	Delimiter rune
	Hash      string
	Size      int64
	Warnings  []string
}

// Samples returns up to n distinct non-null values per column.
func (r *Raw) Samples(n int) [][]string {
	out := make([][]string, len(r.Columns))
	for i := range r.Columns {
		out[i] = distinctSamples(r.Rows, i, n)
	}
	return out
}

type MeltInfo struct {
	Group    []string     `json:"group"`
	Time     string       `json:"time"`
	Value    string       `json:"value"`
	TimeType SemanticType `json:"time_type"`
	// Collapsed lists the original time-valued headers.
	Collapsed []string `json:"collapsed"`
}

// Normalized is long-form data: one observation per row.
type Normalized struct {
	Columns  []string        `json:"columns"`
	Rows     [][]string      `json:"-"`
	Profiles []ColumnProfile `json:"profiles"`
	Melted   bool            `json:"melted"`
	Melt     *MeltInfo       `json:"melt,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Derived  []string        `json:"derived,omitempty"`
}

func (n *Normalized) Index(column string) int {
	for i, c := range n.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

func (n *Normalized) Profile(column string) (ColumnProfile, bool) {
	for _, p := range n.Profiles {
		if p.Name == column {
			return p, true
		}
	}
	return ColumnProfile{}, false
}

// HasQuantitative reports whether any column is numeric or temporal.
func (n *Normalized) HasQuantitative() bool {
	for _, p := range n.Profiles {
		if p.Type == Numeric || p.Type == Temporal {
			return true
		}
	}
	return false
}

// Types returns the profile types keyed by column, used to pin types on re-normalization.
func (n *Normalized) Types() map[string]SemanticType {
	out := make(map[string]SemanticType, len(n.Profiles))
	for _, p := range n.Profiles {
		out[p.Name] = p.Type
	}
	return out
}

// Transform names what Normalize did.
type Transform string

const (
	TransformNone  Transform = "none"
	TransformMelt  Transform = "melt"
	TransformCount Transform = "count"
)

// Summary is a log-friendly account of a normalization.
type Summary struct {
	Transform  Transform `json:"transform"`
	InputRows  int       `json:"input_rows"`
	OutputRows int       `json:"output_rows"`
	Collapsed  int       `json:"collapsed_columns"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// KV flattens the summary into logger key/value pairs.
func (s Summary) KV() []interface{} {
	return []interface{}{
		"transform", s.Transform,
		"input_rows", s.InputRows,
		"output_rows", s.OutputRows,
		"collapsed_columns", s.Collapsed,
	}
}
