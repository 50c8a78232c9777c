package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/intent"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
)

// NoMatchMessage is surfaced when nothing is recommended for a dataset without any
// numeric or temporal column.
const NoMatchMessage = "no template matches; consider a count-based transform"

// LowConfidenceMessage is surfaced when templates are feasible but none clears the bar.
const LowConfidenceMessage = "no template is a confident match; pick one or map the columns manually"

type Config struct {
	MinRecommend float64
	// HintBonus is added when a template's category matches the request's chart hint.
	HintBonus float64
	// NameBonus scales the fraction of axes with a name-matching column.
	NameBonus float64
}

func DefaultConfig() Config {
	return Config{MinRecommend: 0.35, HintBonus: 0.15, NameBonus: 0.2}
}

const (
	baseScore     = 0.5
	optionalShare = 0.3
)

type Candidate struct {
	Template    templates.Definition `json:"template"`
	Confidence  float64              `json:"confidence"`
	Recommended bool                 `json:"recommended"`
	Feasible    bool                 `json:"feasible"`
	Reasons     []string             `json:"reasons"`

	hintMatch bool
	order     int
}

// Score ranks every registered template against the dataset, highest confidence first.
// At most the top candidate is recommended.
func Score(n *dataset.Normalized, reg *templates.Registry, hint string, cfg Config) []Candidate {
	if cfg.MinRecommend <= 0 {
		cfg.MinRecommend = DefaultConfig().MinRecommend
	}
	hintCat := intent.HintCategory(hint)
	defs := reg.List()
	out := make([]Candidate, 0, len(defs))
	for i, def := range defs {
		c := scoreOne(n, def, hintCat, cfg)
		c.order = i
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > 0 && out[0].Feasible && out[0].Confidence >= cfg.MinRecommend {
		out[0].Recommended = true
		out[0].Reasons = append(out[0].Reasons, "recommended")
	}
	return out
}

func less(a, b Candidate) bool {
	if a.Feasible != b.Feasible {
		return a.Feasible
	}
	if d := a.Confidence - b.Confidence; math.Abs(d) > 1e-9 {
		return d > 0
	}
	if a.hintMatch != b.hintMatch {
		return a.hintMatch
	}
	ra, rb := len(a.Template.RequiredAxes()), len(b.Template.RequiredAxes())
	if ra != rb {
		return ra < rb
	}
	return a.order < b.order
}

func compatible(n *dataset.Normalized, t templates.AxisType) []string {
	var out []string
	for _, p := range n.Profiles {
		if t.Accepts(p.Type) {
			out = append(out, p.Name)
		}
	}
	return out
}

func scoreOne(n *dataset.Normalized, def templates.Definition, hintCat string, cfg Config) Candidate {
	c := Candidate{Template: def, hintMatch: hintCat != "" && string(def.Category) == hintCat}

	required := def.RequiredAxes()
	options := make([][]string, len(required))
	for i, a := range required {
		options[i] = compatible(n, a.Type)
		if len(options[i]) == 0 {
			c.Reasons = append(c.Reasons, fmt.Sprintf("no %s column for %q", a.Type, a.Label))
		}
	}
	if len(c.Reasons) > 0 {
		return c
	}
	if !distinctAssignment(options) {
		c.Reasons = append(c.Reasons, fmt.Sprintf("needs %d distinct columns for its required axes", len(required)))
		return c
	}
	c.Feasible = true

	optional := def.OptionalAxes()
	optFrac := 1.0
	if len(optional) > 0 {
		hit := 0
		for _, a := range optional {
			if len(compatible(n, a.Type)) > 0 {
				hit++
			} else {
				c.Reasons = append(c.Reasons, fmt.Sprintf("optional %q unavailable", a.Label))
			}
		}
		optFrac = float64(hit) / float64(len(optional))
	}

	named := 0
	for _, a := range def.Axes {
		for _, col := range compatible(n, a.Type) {
			if templates.NameHints(a.Key, col) {
				named++
				c.Reasons = append(c.Reasons, fmt.Sprintf("%q fits %q by name", col, a.Label))
				break
			}
		}
	}
	nameFrac := 0.0
	if len(def.Axes) > 0 {
		nameFrac = float64(named) / float64(len(def.Axes))
	}

	score := baseScore + optionalShare*optFrac + cfg.NameBonus*nameFrac
	if c.hintMatch {
		score += cfg.HintBonus
		c.Reasons = append(c.Reasons, fmt.Sprintf("matches requested %s chart", hintCat))
	}
	c.Confidence = round(math.Min(score, 1))
	c.Reasons = append([]string{fmt.Sprintf("all %d required axes satisfiable", len(required))}, c.Reasons...)
	return c
}

// distinctAssignment reports whether each slot can take a different column.
func distinctAssignment(options [][]string) bool {
	used := map[string]bool{}
	var try func(i int) bool
	try = func(i int) bool {
		if i == len(options) {
			return true
		}
		for _, col := range options[i] {
			if used[col] {
				continue
			}
			used[col] = true
			if try(i + 1) {
				return true
			}
			used[col] = false
		}
		return false
	}
	return try(0)
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Recommended returns the flagged candidate, if any.
func Recommended(cands []Candidate) (Candidate, bool) {
	for _, c := range cands {
		if c.Recommended {
			return c, true
		}
	}
	return Candidate{}, false
}

// Message explains an empty recommendation; "" when something is recommended.
func Message(n *dataset.Normalized, cands []Candidate) string {
	if _, ok := Recommended(cands); ok {
		return ""
	}
	if n == nil || !n.HasQuantitative() {
		return NoMatchMessage
	}
	return LowConfidenceMessage
}

// Summary is a compact "id=confidence" listing for logs.
func Summary(cands []Candidate) string {
	parts := make([]string, 0, len(cands))
	for _, c := range cands {
		s := fmt.Sprintf("%s=%.2f", c.Template.ID, c.Confidence)
		if c.Recommended {
			s += "*"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
