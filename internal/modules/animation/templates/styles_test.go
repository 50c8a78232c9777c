package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemesReferenceKnownPresets(t *testing.T) {
	list := Themes()
	require.Len(t, list, 7)
	for i, th := range list {
		if i > 0 {
			assert.Less(t, list[i-1].ID, th.ID)
		}
		_, ok := palettes[th.PaletteID]
		assert.True(t, ok, "%s palette %s", th.ID, th.PaletteID)
		_, ok = typography[th.TypographyID]
		assert.True(t, ok, "%s typography %s", th.ID, th.TypographyID)
		_, ok = timings[th.TimingID]
		assert.True(t, ok, "%s timing %s", th.ID, th.TimingID)
	}
	for _, p := range Palettes() {
		assert.NotEmpty(t, p.Colors, p.ID)
		assert.NotEmpty(t, p.Background, p.ID)
	}
}

func TestResolveStyle(t *testing.T) {
	def := ResolveStyle("", "")
	assert.Equal(t, DefaultTheme, def.Theme)
	assert.Equal(t, DefaultPalette, def.Palette.ID)
	assert.Equal(t, 56.0, def.Typography.Title)

	ocean := ResolveStyle(" Ocean_Calm ", "")
	assert.Equal(t, "ocean_calm", ocean.Theme)
	assert.Equal(t, "ocean", ocean.Palette.ID)
	assert.Equal(t, 1.2, ocean.Timing.DataUpdate)

	override := ResolveStyle("presentation", "neon")
	assert.Equal(t, "presentation", override.Theme)
	assert.Equal(t, "neon", override.Palette.ID)
	assert.Equal(t, 52.0, override.Typography.Title)

	assert.Equal(t, DefaultTheme, ResolveStyle("nope", "").Theme)
}

func TestCheckStyle(t *testing.T) {
	require.NoError(t, CheckStyle("", ""))
	require.NoError(t, CheckStyle("NEON_GLOW", "earth"))
	require.Error(t, CheckStyle("glitter", ""))
	require.Error(t, CheckStyle("", "rainbow"))
}

func TestPaletteByNameReturnsCopy(t *testing.T) {
	p, ok := PaletteByName("vibrant")
	require.True(t, ok)
	p.Colors[0] = "#000000"
	again, _ := PaletteByName("vibrant")
	assert.Equal(t, "#6366F1", again.Colors[0])
}

func TestSkeletonRendersTheme(t *testing.T) {
	def, _ := NewRegistry(nil, "").Get("bar_race")
	in := SkeletonInput{
		Title:    "t",
		Columns:  map[string]string{"entity_column": "country", "value_column": "revenue", "time_column": "year"},
		Labels:   map[string]string{"entity_column": "Country", "value_column": "Revenue", "time_column": "Year", "group_column": "Group"},
		DataJSON: "[]",
		TopN:     12,
	}

	dark, err := def.Skeleton(in)
	require.NoError(t, err)
	assert.Contains(t, dark, `THEME = "youtube_dark"`+"\n")
	assert.Contains(t, dark, `BACKGROUND = "#0F0F1A"`+"\n")
	assert.Contains(t, dark, "TITLE_SIZE = 56\n")
	assert.Contains(t, dark, "self.camera.background_color = BACKGROUND")

	in.Style = ResolveStyle("minimal_light", "")
	light, err := def.Skeleton(in)
	require.NoError(t, err)
	assert.Contains(t, light, `BACKGROUND = "#FAFAFA"`+"\n")
	assert.Contains(t, light, `PALETTE = ["#18181B", "#3F3F46",`)
	assert.NotEqual(t, dark, light)
}
