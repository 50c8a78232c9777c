package mapping

import (
	"sort"
	"strings"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
)

// Mapping assigns dataset columns to axis keys. A nil value leaves an optional axis unmapped.
type Mapping map[string]*string

// Col returns the mapped column or "".
func (m Mapping) Col(key string) string {
	if v := m[key]; v != nil {
		return *v
	}
	return ""
}

func (m Mapping) Set(key, column string) {
	c := column
	m[key] = &c
}

// Columns drops unmapped axes.
func (m Mapping) Columns() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil && *v != "" {
			out[k] = *v
		}
	}
	return out
}

func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = nil
			continue
		}
		out.Set(k, *v)
	}
	return out
}

// FromColumns builds a mapping from plain strings; empty values become nil.
func FromColumns(cols map[string]string) Mapping {
	out := make(Mapping, len(cols))
	for k, v := range cols {
		if strings.TrimSpace(v) == "" {
			out[k] = nil
			continue
		}
		out.Set(k, v)
	}
	return out
}

var keyAliases = map[string]string{
	"x_col":        "x_column",
	"y_col":        "y_column",
	"size_col":     "size_column",
	"time_col":     "time_column",
	"entity_col":   "entity_column",
	"value_col":    "value_column",
	"group_col":    "group_column",
	"category_col": "category_column",
	"label_col":    "label_column",
	"change_col":   "change_column",
}

// CanonicalKey maps short axis aliases ("time_col") to their registry keys.
func CanonicalKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if c, ok := keyAliases[k]; ok {
		return c
	}
	return k
}

// Canonical rewrites alias keys. When an alias and its canonical key are both present the
// canonical key wins.
func (m Mapping) Canonical() Mapping {
	out := make(Mapping, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ck := CanonicalKey(k)
		if _, taken := out[ck]; taken && ck != strings.ToLower(strings.TrimSpace(k)) {
			continue
		}
		out[ck] = m[k]
	}
	return out
}

// AxisPrompt asks for one axis. Suggestions are compatible columns, name matches first.
type AxisPrompt struct {
	Key         string             `json:"key"`
	Label       string             `json:"label"`
	Description string             `json:"description,omitempty"`
	Required    bool               `json:"required"`
	Type        templates.AxisType `json:"type"`
	Suggestions []string           `json:"suggestions"`
	Suggested   *string            `json:"suggested,omitempty"`
	// Ambiguous is set when more than one column was plausible.
	Ambiguous bool `json:"ambiguous"`
}

// Resolved reports whether the prompt already holds an unambiguous answer.
func (p AxisPrompt) Resolved() bool {
	return p.Suggested != nil && !p.Ambiguous
}

func compatibleColumns(n *dataset.Normalized, a templates.AxisRequirement) []string {
	var exact, loose []string
	for _, p := range n.Profiles {
		if !a.Type.Accepts(p.Type) {
			continue
		}
		if string(a.Type) == string(p.Type) {
			exact = append(exact, p.Name)
		} else {
			loose = append(loose, p.Name)
		}
	}
	return append(exact, loose...)
}

// AutoFill proposes a mapping. Each axis takes, in order: the unused compatible column
// whose name matches the axis, or the single unused compatible column, or nothing. A
// temporal axis treats temporal columns as a closer fit than numeric ones.
func AutoFill(def templates.Definition, n *dataset.Normalized) (Mapping, []AxisPrompt) {
	m := Mapping{}
	used := map[string]bool{}
	prompts := make([]AxisPrompt, 0, len(def.Axes))
	for _, a := range def.Axes {
		all := compatibleColumns(n, a)
		var unused, named []string
		for _, c := range all {
			if used[c] {
				continue
			}
			unused = append(unused, c)
			if templates.NameHints(a.Key, c) {
				named = append(named, c)
			}
		}
		p := AxisPrompt{
			Key:         a.Key,
			Label:       a.Label,
			Description: a.Description,
			Required:    a.Required,
			Type:        a.Type,
			Suggestions: rank(all, named),
		}
		pick := ""
		switch {
		case len(named) > 0:
			pick = named[0]
			p.Ambiguous = len(named) > 1
		case len(unused) == 1:
			pick = unused[0]
		case a.Type == templates.AxisTemporal:
			if t := onlyTyped(n, unused, dataset.Temporal); t != "" {
				pick = t
			}
		}
		if pick != "" {
			used[pick] = true
			m.Set(a.Key, pick)
			p.Suggested = m[a.Key]
		} else {
			m[a.Key] = nil
			p.Ambiguous = len(unused) > 1
		}
		prompts = append(prompts, p)
	}
	return m, prompts
}

func onlyTyped(n *dataset.Normalized, cols []string, t dataset.SemanticType) string {
	found := ""
	for _, c := range cols {
		if p, ok := n.Profile(c); ok && p.Type == t {
			if found != "" {
				return ""
			}
			found = c
		}
	}
	return found
}

func rank(all, named []string) []string {
	out := make([]string, 0, len(all))
	seen := map[string]bool{}
	for _, c := range named {
		out = append(out, c)
		seen[c] = true
	}
	for _, c := range all {
		if !seen[c] {
			out = append(out, c)
		}
	}
	return out
}

// Duplicates lists warnings for columns mapped to more than one axis.
func Duplicates(def templates.Definition, m Mapping) []string {
	byCol := map[string][]string{}
	var order []string
	for _, a := range def.Axes {
		c := m.Col(a.Key)
		if c == "" {
			continue
		}
		if _, ok := byCol[c]; !ok {
			order = append(order, c)
		}
		byCol[c] = append(byCol[c], a.Label)
	}
	var out []string
	for _, c := range order {
		if labels := byCol[c]; len(labels) > 1 {
			out = append(out, "column \""+c+"\" is used for: "+strings.Join(labels, ", "))
		}
	}
	return out
}
