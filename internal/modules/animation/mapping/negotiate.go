package mapping

import (
	"fmt"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/scoring"
)

type Config struct {
	// AutoConfirm is the minimum candidate confidence for confirming without asking.
	AutoConfirm float64
}

func DefaultConfig() Config {
	return Config{AutoConfirm: 0.6}
}

type Decision struct {
	AutoConfirmed bool         `json:"auto_confirmed"`
	TemplateID    string       `json:"template_id"`
	Mapping       Mapping      `json:"mapping"`
	Prompts       []AxisPrompt `json:"prompts,omitempty"`
	Reasons       []string     `json:"reasons,omitempty"`
	Warnings      []string     `json:"warnings,omitempty"`
}

// Pending returns the first required axis still needing a decision.
func (d Decision) Pending() (AxisPrompt, bool) {
	for _, p := range d.Prompts {
		if p.Required && !p.Resolved() {
			return p, true
		}
	}
	return AxisPrompt{}, false
}

// Negotiate confirms the auto-filled mapping when the candidate is confident and every
// required axis had exactly one plausible column; otherwise it returns prompts for the user.
func Negotiate(cand scoring.Candidate, n *dataset.Normalized, cfg Config) Decision {
	if cfg.AutoConfirm <= 0 {
		cfg.AutoConfirm = DefaultConfig().AutoConfirm
	}
	def := cand.Template
	m, prompts := AutoFill(def, n)
	d := Decision{TemplateID: def.ID, Mapping: m, Prompts: prompts, Warnings: Duplicates(def, m)}

	if cand.Confidence < cfg.AutoConfirm {
		d.Reasons = append(d.Reasons, fmt.Sprintf("confidence %.2f below %.2f", cand.Confidence, cfg.AutoConfirm))
	}
	for _, p := range prompts {
		if !p.Required {
			continue
		}
		switch {
		case p.Suggested == nil:
			d.Reasons = append(d.Reasons, fmt.Sprintf("%q has no unambiguous column", p.Label))
		case p.Ambiguous:
			d.Reasons = append(d.Reasons, fmt.Sprintf("%q has several plausible columns", p.Label))
		}
	}
	if err := Validate(def, m, n); err != nil {
		d.Reasons = append(d.Reasons, err.Error())
	}
	d.AutoConfirmed = len(d.Reasons) == 0
	return d
}
