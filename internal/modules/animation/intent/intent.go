package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// Hints are the fixed chart-type vocabulary returned in Result.Hint.
const (
	HintBubble        = "bubble"
	HintDistribution  = "distribution"
	HintBarRace       = "bar race"
	HintLineEvolution = "line evolution"
	HintBentoGrid     = "bento grid"
)

// Signal weights.
const (
	strongWeight = 0.45
	weakWeight   = 0.20
	hintWeight   = 0.10
)

type Result struct {
	IsAnimation bool     `json:"is_animation"`
	Strength    float64  `json:"strength"`
	Hint        string   `json:"hint,omitempty"`
	Reasons     []string `json:"reasons,omitempty"`
	HasDataset  bool     `json:"has_dataset"`
	HasCode     bool     `json:"has_code"`
}

type Config struct {
	// WeakThreshold is the minimum strength a weak-only message needs, with a dataset
	// attached, to count as a request.
	WeakThreshold float64
}

func DefaultConfig() Config {
	return Config{WeakThreshold: 0.10}
}

type hintPattern struct {
	hint string
	re   *regexp.Regexp
}

type Classifier struct {
	cfg    Config
	strong *regexp.Regexp
	weak   *regexp.Regexp
	code   *regexp.Regexp
	hints  []hintPattern
}

func anyOf(patterns ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:` + strings.Join(patterns, `|`) + `)`)
}

func New(cfg Config) *Classifier {
	if cfg.WeakThreshold <= 0 {
		cfg.WeakThreshold = DefaultConfig().WeakThreshold
	}
	return &Classifier{
		cfg: cfg,
		strong: anyOf(
			`\banimasi\b`, `\banimasikan\b`, `\banimat(?:e|ed|ing|ion|ions)\b`,
			`\bgerakkan\b`, `\bbergerak\b`, `\bmanim\b`, `\bvideos?\b`, `\bmp4\b`, `\bgif\b`,
			`\brender(?:ing|ed)?\b`, `\bpreview\b`,
		),
		weak: anyOf(
			`\bframes?\b`, `\btimeline\b`, `\btime[\s-]?series\b`, `\btime[\s-]?lapse\b`,
			`\bover\s*time\b`, `\bper\s*year\b`, `\bper\s*tahun\b`, `\bper\s*waktu\b`,
		),
		code: anyOf(`\bclass\s+GenScene\b`, `\bfrom\s+manim\s+import\b`, `\(Scene\):`),
		hints: []hintPattern{
			{HintBubble, anyOf(`\bbubble\s*chart\b`, `\bbubble\b`, `\bgelembung\b`, `\bscatter\b`, `\bsebar\b`)},
			{HintDistribution, anyOf(`\bdistribution\b`, `\bdistribusi\b`, `\bhistogram\b`, `\bdensity\b`)},
			{HintBarRace, anyOf(`\bbar\s*(?:chart\s*)?race\b`, `\bracing\s*bars?\b`, `\branking\b`, `\bperingkat\b`, `\bleaderboard\b`, `\btop\s*\d+\b`)},
			{HintLineEvolution, anyOf(`\bline\s*(?:chart|evolution|graph)\b`, `\bgrafik\s*garis\b`, `\btrend\b`, `\btren\b`, `\bevolution\b`, `\bevolusi\b`)},
			{HintBentoGrid, anyOf(`\bbento(?:\s*(?:grid|box))?\b`, `\bdashboard\b`, `\bkpis?\b`)},
		},
	}
}

// Classify decides from text alone; a dataset marker in the text counts as attached.
func (c *Classifier) Classify(message string) Result {
	_, _, ok := ExtractDatasetRef(message)
	return c.ClassifyWithDataset(message, ok)
}

// ClassifyWithDataset is Classify for callers that attach a dataset out of band.
func (c *Classifier) ClassifyWithDataset(message string, hasDataset bool) Result {
	if _, _, ok := ExtractDatasetRef(message); ok {
		hasDataset = true
	}
	res := Result{HasDataset: hasDataset}
	text := strings.TrimSpace(message)
	if text == "" {
		return res
	}

	codeHits := c.code.FindAllString(text, 5)
	strongHits := c.strong.FindAllString(text, -1)
	weakHits := c.weak.FindAllString(text, -1)
	res.Hint = c.hint(text)
	res.HasCode = len(codeHits) > 0

	for _, h := range codeHits {
		res.Reasons = append(res.Reasons, "code:"+h)
	}
	for _, h := range limit(strongHits, 5) {
		res.Reasons = append(res.Reasons, "strong:"+strings.ToLower(h))
	}
	for _, h := range limit(weakHits, 5) {
		res.Reasons = append(res.Reasons, "weak:"+strings.ToLower(h))
	}
	if res.Hint != "" {
		res.Reasons = append(res.Reasons, "hint:"+res.Hint)
	}

	res.Strength = strength(len(strongHits), len(weakHits), res.Hint != "", res.HasCode)

	switch {
	case res.HasCode || len(strongHits) > 0:
		res.IsAnimation = true
	case (len(weakHits) > 0 || res.Hint != "") && hasDataset:
		res.IsAnimation = res.Strength >= c.cfg.WeakThreshold
		if res.IsAnimation {
			res.Reasons = append(res.Reasons, "dataset attached")
		}
	}
	return res
}

func strength(strong, weak int, hint, code bool) float64 {
	if code {
		return 1
	}
	s := float64(strong)*strongWeight + float64(weak)*weakWeight
	if hint {
		s += hintWeight
	}
	if s > 1 {
		return 1
	}
	return s
}

// hint returns the chart type whose keyword occurs earliest in text.
func (c *Classifier) hint(text string) string {
	best, bestAt := "", -1
	for _, hp := range c.hints {
		loc := hp.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestAt < 0 || loc[0] < bestAt {
			best, bestAt = hp.hint, loc[0]
		}
	}
	return best
}

func limit(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

var datasetRefRe = regexp.MustCompile(`(?i)\b(csv_path|dataset_id|dataset)\s*[=:]\s*("[^"]+"|'[^']+'|[^\s,;]+)`)

// ExtractDatasetRef parses the first dataset marker: csv_path=<name>, dataset=<id> or
// dataset_id=<id>. kind is "csv_path" or "dataset_id".
func ExtractDatasetRef(message string) (kind, value string, ok bool) {
	m := datasetRefRe.FindStringSubmatch(message)
	if m == nil {
		return "", "", false
	}
	kind = strings.ToLower(m[1])
	if kind == "dataset" {
		kind = "dataset_id"
	}
	value = strings.Trim(m[2], `"'`)
	if value == "" {
		return "", "", false
	}
	return kind, value, true
}

var hintCategories = map[string]string{
	HintBarRace:       "ranking",
	HintLineEvolution: "trend",
	HintBubble:        "correlation",
	HintDistribution:  "distribution",
	HintBentoGrid:     "dashboard",
}

// HintCategory maps a hint to the template category it prefers; "" when none.
func HintCategory(hint string) string {
	return hintCategories[strings.ToLower(strings.TrimSpace(hint))]
}

// String is a compact form for logs.
func (r Result) String() string {
	return fmt.Sprintf("animation=%t strength=%.2f hint=%q dataset=%t", r.IsAnimation, r.Strength, r.Hint, r.HasDataset)
}
