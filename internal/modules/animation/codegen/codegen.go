package codegen

import (
	"errors"
	"strings"
)

// EntryPoint is the scene class every generated source defines and the renderer invokes.
const EntryPoint = "GenScene"

// DefaultLabel is the last-resort axis label.
const DefaultLabel = "Value"

var (
	ErrEmptyLabel  = errors.New("axis label resolved to empty")
	ErrNoBackend   = errors.New("no generative backend configured")
	ErrEmptySource = errors.New("generated source is empty")
)

type Options struct {
	Title   string            `json:"title,omitempty"`
	TopN    int               `json:"top_n,omitempty"`
	Aspect  string            `json:"aspect,omitempty"`
	Quality string            `json:"quality,omitempty"`
	Labels  map[string]string `json:"labels,omitempty"`
	// Theme and Palette name entries of templates.Themes and templates.Palettes.
	Theme   string `json:"theme,omitempty"`
	Palette string `json:"palette,omitempty"`
	// Style is a free-text styling request, used only on the generative path.
	Style string `json:"style,omitempty"`
}

type Output struct {
	Source     string `json:"source"`
	EntryPoint string `json:"entry_point"`
	TemplateID string `json:"template_id"`
	Generative bool   `json:"generative"`
}

func (o Output) Empty() bool {
	return strings.TrimSpace(o.Source) == ""
}
