package render

import "strings"

type Phase string

const (
	PhasePreview Phase = "preview"
	PhaseRender  Phase = "render"
	PhaseExport  Phase = "export"
)

type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

func ParseTier(s string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierMedium:
		return TierMedium
	case TierHigh:
		return TierHigh
	default:
		return TierLow
	}
}

// Preset is the renderer quality configuration for one phase.
type Preset struct {
	FPS         int
	Width       int
	Height      int
	FrameWidth  float64
	Tier        Tier
	SampleEvery int
	MaxFrames   int
	// Frames selects PNG frame output instead of a video file.
	Frames bool
}

type frameSize struct {
	w, h       int
	frameWidth float64
}

var aspects = map[string]frameSize{
	"16:9": {1280, 720, 14.22},
	"9:16": {720, 1280, 8.0},
	"1:1":  {720, 720, 8.0},
}

// NormalizeAspect returns one of 16:9, 9:16, 1:1.
func NormalizeAspect(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := aspects[s]; ok {
		return s
	}
	return "16:9"
}

// PresetFor maps a phase to renderer settings. Preview samples every 4th frame at 10 fps
// and keeps at most 50 frames; the final render runs at 24 fps; export is always high tier.
func PresetFor(phase Phase, aspect string, tier Tier) Preset {
	fs := aspects[NormalizeAspect(aspect)]
	p := Preset{FPS: 24, Width: fs.w, Height: fs.h, FrameWidth: fs.frameWidth, Tier: tier}
	switch phase {
	case PhasePreview:
		p.FPS = 10
		p.Tier = TierLow
		p.SampleEvery = 4
		p.MaxFrames = 50
		p.Frames = true
	case PhaseExport:
		p.Tier = TierHigh
	}
	if p.Tier == "" {
		p.Tier = TierMedium
	}
	return p
}
