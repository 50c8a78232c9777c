package codegen

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/mapping"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// Backend produces text from a prompt. Implementations make one call and never retry.
type Backend interface {
	Name() string
	DefaultModel() string
	GenerateText(ctx context.Context, system, user, model string) (string, error)
}

// maxPromptRows bounds the rows embedded in generated sources.
const maxPromptRows = 2000

const (
	dataBegin = "# --- data ---"
	dataEnd   = "# --- end data ---"
)

const systemPrompt = `You write Python scenes for the Manim Community animation engine.
Return ONLY valid Python code. No explanations, no markdown, no backticks.

Rules:
1) Start with: from manim import *
2) Define exactly one class, written as: class GenScene(Scene):
3) Put all animation logic in GenScene.construct(self) and run animations with self.play(...).
4) A list named DATA is already defined before your code: one dict per row, keyed by column name. Read it; never redefine it and never read files.
5) Every Text or axis label must be a non-empty string literal or a variable assigned a non-empty string.
6) Numeric columns hold floats or None. Skip None values; never clamp values.
7) Prefer stable primitives (Text, Rectangle, Circle, Axes, VGroup, Create, Write, FadeIn, Transform).
8) Do not change config, frame size or frame rate.`

// Request describes a generative fallback job.
type Request struct {
	Dataset *dataset.Normalized
	Mapping mapping.Mapping
	// TemplateID is the template the user leaned toward, if any.
	TemplateID string
	Hint       string
	Message    string
	Options    Options
}

type Generator struct {
	backend Backend
	model   string
	checker SyntaxChecker
	timeout time.Duration
	log     *logger.Logger
}

// NewGenerator wraps a backend. backend may be nil, in which case every call fails with
// ErrNoBackend. checker is optional.
func NewGenerator(log *logger.Logger, backend Backend, model string, checker SyntaxChecker) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{
		backend: backend,
		model:   strings.TrimSpace(model),
		checker: checker,
		timeout: 120 * time.Second,
		log:     log.With("component", "CodeGenerator"),
	}
}

func (g *Generator) Available() bool {
	return g != nil && g.backend != nil
}

func (g *Generator) modelName() string {
	if g.model != "" {
		return g.model
	}
	return g.backend.DefaultModel()
}

// Generate asks the backend for a scene and enforces the structural contract.
func (g *Generator) Generate(ctx context.Context, req Request) (Output, error) {
	if !g.Available() {
		return Output{}, ErrNoBackend
	}
	if req.Dataset == nil {
		return Output{}, fmt.Errorf("generative request needs a dataset")
	}
	prelude, err := dataPrelude(req.Dataset, req.Mapping)
	if err != nil {
		return Output{}, err
	}
	body, err := g.call(ctx, buildPrompt(req))
	if err != nil {
		return Output{}, err
	}
	out := Output{
		Source:     joinData(prelude, body),
		EntryPoint: EntryPoint,
		TemplateID: templates.GenerativeFallbackID,
		Generative: true,
	}
	if err := g.accept(ctx, out.Source); err != nil {
		return Output{}, err
	}
	return out, nil
}

// Regenerate asks for a corrected version of prior given the classified failure.
func (g *Generator) Regenerate(ctx context.Context, prior Output, failure string) (Output, error) {
	if !g.Available() {
		return Output{}, ErrNoBackend
	}
	prelude, body := splitData(prior.Source)
	user := fixPrompt(body, failure, prelude != "")
	fixed, err := g.call(ctx, user)
	if err != nil {
		return Output{}, err
	}
	out := Output{
		Source:     joinData(prelude, fixed),
		EntryPoint: EntryPoint,
		TemplateID: prior.TemplateID,
		Generative: true,
	}
	if err := g.accept(ctx, out.Source); err != nil {
		return Output{}, err
	}
	return out, nil
}

func (g *Generator) call(ctx context.Context, user string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()
	text, err := g.backend.GenerateText(ctx, systemPrompt, user, g.modelName())
	if err != nil {
		g.log.Warn("generative backend call failed", "backend", g.backend.Name(), "error", err)
		return "", fmt.Errorf("%s: %w", g.backend.Name(), err)
	}
	g.log.Debug("generative backend call done", "backend", g.backend.Name(), "model", g.modelName(), "chars", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptySource
	}
	return strings.TrimSpace(text) + "\n", nil
}

func (g *Generator) accept(ctx context.Context, source string) error {
	if err := Validate(source); err != nil {
		return err
	}
	if g.checker != nil {
		if err := g.checker.CheckSyntax(ctx, source); err != nil {
			return &StructuralError{Reason: err.Error()}
		}
	}
	return nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Create an animated data visualization.\n\n")
	b.WriteString("Columns in DATA (name: type; samples):\n")
	for _, p := range req.Dataset.Profiles {
		fmt.Fprintf(&b, "- %s: %s; %s\n", p.Name, p.Type, strings.Join(p.Samples, ", "))
	}
	fmt.Fprintf(&b, "Rows: %d\n", min(len(req.Dataset.Rows), maxPromptRows))
	if cols := req.Mapping.Columns(); len(cols) > 0 {
		b.WriteString("\nColumn roles:\n")
		for _, k := range sortedKeys(cols) {
			fmt.Fprintf(&b, "- %s = %s\n", k, cols[k])
		}
	}
	if req.Hint != "" {
		fmt.Fprintf(&b, "\nChart type requested: %s\n", req.Hint)
	}
	if req.TemplateID != "" && req.TemplateID != templates.GenerativeFallbackID {
		fmt.Fprintf(&b, "Closest known style: %s\n", req.TemplateID)
	}
	if t := strings.TrimSpace(req.Options.Title); t != "" {
		fmt.Fprintf(&b, "Title: %s\n", t)
	}
	if len(req.Options.Labels) > 0 {
		b.WriteString("Axis labels:\n")
		for _, k := range sortedKeys(req.Options.Labels) {
			fmt.Fprintf(&b, "- %s: %s\n", k, req.Options.Labels[k])
		}
	}
	if req.Options.TopN > 0 {
		fmt.Fprintf(&b, "Show at most %d items per frame, ranked by value descending.\n", req.Options.TopN)
	}
	if req.Options.Theme != "" || req.Options.Palette != "" {
		st := templates.ResolveStyle(req.Options.Theme, req.Options.Palette)
		fmt.Fprintf(&b, "\nTheme: %s. Background %s, text %s, series colors %s. Title font size %g.\n",
			st.Theme, st.Palette.Background, st.Palette.Text, strings.Join(st.Palette.Colors, " "), st.Typography.Title)
	}
	if s := strings.TrimSpace(req.Options.Style); s != "" {
		fmt.Fprintf(&b, "\nStyle request: %s\n", s)
	}
	if m := strings.TrimSpace(req.Message); m != "" {
		fmt.Fprintf(&b, "\nUser request: %s\n", m)
	}
	return b.String()
}

func fixPrompt(body, failure string, hasData bool) string {
	var b strings.Builder
	b.WriteString("The following Manim Python code fails to run. Fix it.\n\n")
	b.WriteString("Constraints:\n")
	b.WriteString("- Return ONLY valid Python code (no backticks, no explanations).\n")
	b.WriteString("- Must contain exactly one class: GenScene(Scene) with def construct(self).\n")
	b.WriteString("- Ensure all parentheses, brackets and braces are balanced.\n")
	if hasData {
		b.WriteString("- DATA is defined before this code; do not redefine it.\n")
	}
	b.WriteString("- Preserve the original animation intent.\n\n")
	fmt.Fprintf(&b, "Error observed:\n%s\n\nOriginal code:\n%s\n", strings.TrimSpace(failure), body)
	return b.String()
}

// dataPrelude embeds the rows (projected onto mapped columns when a mapping exists) as a
// Python DATA list.
func dataPrelude(n *dataset.Normalized, m mapping.Mapping) (string, error) {
	cols := n.Columns
	if mc := m.Columns(); len(mc) > 0 {
		seen := map[string]bool{}
		cols = nil
		for _, k := range sortedKeys(mc) {
			if c := mc[k]; !seen[c] && n.Index(c) >= 0 {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	types := n.Types()
	rows := n.Rows
	if len(rows) > maxPromptRows {
		rows = rows[:maxPromptRows]
	}
	recs := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]interface{}, len(cols))
		for _, c := range cols {
			idx := n.Index(c)
			cell := ""
			if idx < len(row) {
				cell = strings.TrimSpace(row[idx])
			}
			switch {
			case dataset.IsNull(cell):
				rec[c] = nil
			case types[c] == dataset.Numeric:
				if f, ok := dataset.ParseNumber(cell); ok {
					rec[c] = f
				} else {
					rec[c] = nil
				}
			default:
				rec[c] = cell
			}
		}
		recs = append(recs, rec)
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return "", fmt.Errorf("encode dataset: %w", err)
	}
	return dataBegin + "\nimport json\nDATA = json.loads(" + templates.PyString(string(data)) + ")\n" + dataEnd + "\n", nil
}

func joinData(prelude, body string) string {
	if prelude == "" {
		return body
	}
	return prelude + "\n" + body
}

func splitData(src string) (prelude, body string) {
	if !strings.HasPrefix(src, dataBegin) {
		return "", src
	}
	i := strings.Index(src, dataEnd)
	if i < 0 {
		return "", src
	}
	cut := i + len(dataEnd)
	return src[:cut] + "\n", strings.TrimLeft(src[cut:], "\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
