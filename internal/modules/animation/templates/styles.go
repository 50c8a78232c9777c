package templates

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultTheme   = "youtube_dark"
	DefaultPalette = "vibrant"
)

type Palette struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Primary    string   `json:"primary"`
	Background string   `json:"background"`
	Surface    string   `json:"surface"`
	Text       string   `json:"text"`
	TextMuted  string   `json:"text_muted"`
	Accent     string   `json:"accent"`
	Positive   string   `json:"positive"`
	Negative   string   `json:"negative"`
	Colors     []string `json:"colors"`
}

// Typography sizes are manim font sizes.
type Typography struct {
	ID       string  `json:"id"`
	Title    float64 `json:"title"`
	Subtitle float64 `json:"subtitle"`
	Body     float64 `json:"body"`
	Label    float64 `json:"label"`
	Caption  float64 `json:"caption"`
}

// Timing values are seconds.
type Timing struct {
	ID         string  `json:"id"`
	Intro      float64 `json:"intro"`
	Outro      float64 `json:"outro"`
	Transition float64 `json:"transition"`
	DataUpdate float64 `json:"data_update"`
	PauseShort float64 `json:"pause_short"`
	PauseLong  float64 `json:"pause_long"`
	Stagger    float64 `json:"stagger"`
}

type Theme struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	PaletteID      string   `json:"palette"`
	TypographyID   string   `json:"typography"`
	TimingID       string   `json:"timing"`
	RecommendedFor []string `json:"recommended_for,omitempty"`
}

// Style is a theme resolved into concrete values for a skeleton.
type Style struct {
	Theme      string
	Palette    Palette
	Typography Typography
	Timing     Timing
}

var palettes = map[string]Palette{
	"vibrant": {
		ID: "vibrant", Name: "Vibrant", Primary: "#6366F1", Background: "#0F0F1A", Surface: "#1A1A2E",
		Text: "#FFFFFF", TextMuted: "#A1A1AA", Accent: "#22D3EE", Positive: "#10B981", Negative: "#EF4444",
		Colors: []string{"#6366F1", "#EC4899", "#22D3EE", "#10B981", "#F59E0B", "#8B5CF6", "#F97316", "#14B8A6", "#EF4444", "#84CC16", "#06B6D4", "#D946EF"},
	},
	"corporate": {
		ID: "corporate", Name: "Corporate", Primary: "#2563EB", Background: "#FFFFFF", Surface: "#F8FAFC",
		Text: "#1E293B", TextMuted: "#64748B", Accent: "#0EA5E9", Positive: "#059669", Negative: "#DC2626",
		Colors: []string{"#2563EB", "#0891B2", "#059669", "#7C3AED", "#DB2777", "#EA580C", "#4F46E5", "#0D9488", "#9333EA", "#65A30D", "#0284C7", "#BE185D"},
	},
	"pastel": {
		ID: "pastel", Name: "Pastel", Primary: "#A78BFA", Background: "#FEFCE8", Surface: "#FFFFFF",
		Text: "#374151", TextMuted: "#6B7280", Accent: "#67E8F9", Positive: "#86EFAC", Negative: "#FCA5A5",
		Colors: []string{"#A78BFA", "#F9A8D4", "#67E8F9", "#86EFAC", "#FCD34D", "#C4B5FD", "#FBCFE8", "#A5F3FC", "#BBF7D0", "#FDE68A", "#DDD6FE", "#F5D0FE"},
	},
	"neon": {
		ID: "neon", Name: "Neon", Primary: "#00FF88", Background: "#000000", Surface: "#111111",
		Text: "#FFFFFF", TextMuted: "#888888", Accent: "#00FFFF", Positive: "#00FF88", Negative: "#FF0055",
		Colors: []string{"#00FF88", "#FF00FF", "#00FFFF", "#FFFF00", "#FF6600", "#FF0055", "#00AAFF", "#AA00FF", "#00FFAA", "#FF00AA", "#AAFF00", "#00AAAA"},
	},
	"earth": {
		ID: "earth", Name: "Earth", Primary: "#B45309", Background: "#FEF3C7", Surface: "#FFFBEB",
		Text: "#451A03", TextMuted: "#78350F", Accent: "#15803D", Positive: "#16A34A", Negative: "#B91C1C",
		Colors: []string{"#B45309", "#166534", "#9A3412", "#115E59", "#854D0E", "#3F6212", "#7C2D12", "#14532D", "#A16207", "#365314", "#78350F", "#1E3A2D"},
	},
	"ocean": {
		ID: "ocean", Name: "Ocean", Primary: "#0077B6", Background: "#03045E", Surface: "#023E8A",
		Text: "#CAF0F8", TextMuted: "#90E0EF", Accent: "#48CAE4", Positive: "#06D6A0", Negative: "#EF476F",
		Colors: []string{"#0077B6", "#00B4D8", "#48CAE4", "#90E0EF", "#06D6A0", "#FFD166", "#118AB2", "#073B4C", "#06A77D", "#EF476F", "#00A8E8", "#007EA7"},
	},
	"sunset": {
		ID: "sunset", Name: "Sunset", Primary: "#F97316", Background: "#18181B", Surface: "#27272A",
		Text: "#FAFAFA", TextMuted: "#A1A1AA", Accent: "#FACC15", Positive: "#22C55E", Negative: "#EF4444",
		Colors: []string{"#F97316", "#E11D48", "#FACC15", "#FB7185", "#FCD34D", "#F43F5E", "#FB923C", "#FBBF24", "#FDA4AF", "#FDE047", "#FF6B6B", "#FFE66D"},
	},
	"monochrome": {
		ID: "monochrome", Name: "Monochrome", Primary: "#3F3F46", Background: "#FAFAFA", Surface: "#FFFFFF",
		Text: "#18181B", TextMuted: "#52525B", Accent: "#27272A", Positive: "#3F3F46", Negative: "#18181B",
		Colors: []string{"#18181B", "#3F3F46", "#52525B", "#71717A", "#A1A1AA", "#D4D4D8", "#27272A", "#404040", "#525252", "#737373", "#A3A3A3", "#E5E5E5"},
	},
}

var typography = map[string]Typography{
	"default":      {ID: "default", Title: 48, Subtitle: 36, Body: 22, Label: 18, Caption: 14},
	"youtube":      {ID: "youtube", Title: 56, Subtitle: 42, Body: 26, Label: 22, Caption: 18},
	"presentation": {ID: "presentation", Title: 52, Subtitle: 40, Body: 24, Label: 20, Caption: 16},
	"compact":      {ID: "compact", Title: 36, Subtitle: 28, Body: 18, Label: 14, Caption: 12},
}

var timings = map[string]Timing{
	"default":      {ID: "default", Intro: 1.5, Outro: 1.0, Transition: 0.5, DataUpdate: 0.8, PauseShort: 0.5, PauseLong: 2.0, Stagger: 0.1},
	"fast":         {ID: "fast", Intro: 0.8, Outro: 0.5, Transition: 0.3, DataUpdate: 0.5, PauseShort: 0.3, PauseLong: 1.0, Stagger: 0.1},
	"cinematic":    {ID: "cinematic", Intro: 2.5, Outro: 2.0, Transition: 0.8, DataUpdate: 1.2, PauseShort: 1.0, PauseLong: 3.0, Stagger: 0.1},
	"presentation": {ID: "presentation", Intro: 1.2, Outro: 0.8, Transition: 0.5, DataUpdate: 0.8, PauseShort: 0.5, PauseLong: 1.5, Stagger: 0.1},
}

var themes = map[string]Theme{
	"youtube_dark": {
		ID: "youtube_dark", Name: "YouTube Dark", Description: "Bold, vibrant style for video",
		PaletteID: "vibrant", TypographyID: "youtube", TimingID: "default",
		RecommendedFor: []string{"bar_race", "line_evolution", "bubble"},
	},
	"presentation": {
		ID: "presentation", Name: "Presentation", Description: "Clean style for business slides",
		PaletteID: "corporate", TypographyID: "presentation", TimingID: "presentation",
		RecommendedFor: []string{"bar_race", "line_evolution", "distribution"},
	},
	"neon_glow": {
		ID: "neon_glow", Name: "Neon Glow", Description: "High-contrast neon on black",
		PaletteID: "neon", TypographyID: "youtube", TimingID: "fast",
		RecommendedFor: []string{"line_evolution", "bubble"},
	},
	"ocean_calm": {
		ID: "ocean_calm", Name: "Ocean Calm", Description: "Cool blues with slow transitions",
		PaletteID: "ocean", TypographyID: "default", TimingID: "cinematic",
		RecommendedFor: []string{"line_evolution", "bubble", "distribution"},
	},
	"sunset_energy": {
		ID: "sunset_energy", Name: "Sunset Energy", Description: "Warm sunset colors, quick pacing",
		PaletteID: "sunset", TypographyID: "youtube", TimingID: "fast",
		RecommendedFor: []string{"bar_race", "bubble"},
	},
	"minimal_light": {
		ID: "minimal_light", Name: "Minimal Light", Description: "Monochrome on a light background",
		PaletteID: "monochrome", TypographyID: "presentation", TimingID: "presentation",
		RecommendedFor: []string{"line_evolution", "distribution"},
	},
	"pastel_soft": {
		ID: "pastel_soft", Name: "Pastel Soft", Description: "Soft pastel colors",
		PaletteID: "pastel", TypographyID: "default", TimingID: "default",
		RecommendedFor: []string{"bubble", "distribution", "bento_grid"},
	},
}

func styleKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func Themes() []Theme {
	out := make([]Theme, 0, len(themes))
	for _, id := range sortedStyleIDs(themes) {
		t := themes[id]
		t.RecommendedFor = append([]string(nil), t.RecommendedFor...)
		out = append(out, t)
	}
	return out
}

func Palettes() []Palette {
	out := make([]Palette, 0, len(palettes))
	for _, id := range sortedStyleIDs(palettes) {
		p := palettes[id]
		p.Colors = append([]string(nil), p.Colors...)
		out = append(out, p)
	}
	return out
}

func ThemeByName(name string) (Theme, bool) {
	t, ok := themes[styleKey(name)]
	return t, ok
}

func PaletteByName(name string) (Palette, bool) {
	p, ok := palettes[styleKey(name)]
	if ok {
		p.Colors = append([]string(nil), p.Colors...)
	}
	return p, ok
}

// CheckStyle rejects unknown names. Empty names are allowed and mean the default.
func CheckStyle(theme, palette string) error {
	if theme = styleKey(theme); theme != "" {
		if _, ok := themes[theme]; !ok {
			return fmt.Errorf("unknown theme %q", theme)
		}
	}
	if palette = styleKey(palette); palette != "" {
		if _, ok := palettes[palette]; !ok {
			return fmt.Errorf("unknown palette %q", palette)
		}
	}
	return nil
}

// ResolveStyle expands a theme, with an optional palette override. Unknown or empty names
// fall back to the defaults.
func ResolveStyle(theme, palette string) Style {
	t, ok := themes[styleKey(theme)]
	if !ok {
		t = themes[DefaultTheme]
	}
	p, ok := PaletteByName(palette)
	if !ok {
		p, _ = PaletteByName(t.PaletteID)
	}
	return Style{
		Theme:      t.ID,
		Palette:    p,
		Typography: typography[t.TypographyID],
		Timing:     timings[t.TimingID],
	}
}

func sortedStyleIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
