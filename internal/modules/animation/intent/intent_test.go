package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := New(DefaultConfig())
	cases := []struct {
		name    string
		msg     string
		anim    bool
		hint    string
		dataset bool
	}{
		{"empty", "", false, "", false},
		{"whitespace", "   \n\t", false, "", false},
		{"strong with marker", "animate my sales data as a bar race, csv_path=sales.csv", true, HintBarRace, true},
		{"strong alone", "animate this", true, "", false},
		{"indonesian", "tolong animasikan data penduduk", true, "", false},
		{"chart type without dataset", "what is a bubble chart?", false, HintBubble, false},
		{"chart type with dataset", "bubble chart please dataset=3f9c", true, HintBubble, true},
		{"weak without dataset", "sales over time", false, "", false},
		{"weak with dataset", "sales over time csv_path=\"my file.csv\"", true, "", true},
		{"dataset mention only", "I uploaded csv_path=a.csv yesterday", false, "", true},
		{"code cue", "from manim import *\nclass GenScene(Scene):", true, "", false},
		{"earliest hint wins", "show a histogram then a line chart of gdp video", true, HintDistribution, false},
		{"trend is line evolution", "render the trend", true, HintLineEvolution, false},
		{"kpi", "make a dashboard video", true, HintBentoGrid, false},
		{"plural videos", "turn these numbers into videos", true, "", false},
		{"rendering", "start rendering my sales figures", true, "", false},
		{"rendered", "I want it rendered as a ranking", true, HintBarRace, false},
		{"renderer is not a cue", "which renderer do you use?", false, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := c.Classify(tc.msg)
			assert.Equal(t, tc.anim, r.IsAnimation, r.String())
			assert.Equal(t, tc.hint, r.Hint)
			assert.Equal(t, tc.dataset, r.HasDataset)
			assert.GreaterOrEqual(t, r.Strength, 0.0)
			assert.LessOrEqual(t, r.Strength, 1.0)
		})
	}
}

func TestClassifyWithDatasetOutOfBand(t *testing.T) {
	c := New(DefaultConfig())
	assert.False(t, c.ClassifyWithDataset("line chart of revenue", false).IsAnimation)
	r := c.ClassifyWithDataset("line chart of revenue", true)
	assert.True(t, r.IsAnimation)
	assert.Equal(t, HintLineEvolution, r.Hint)
	assert.Contains(t, r.Reasons, "dataset attached")
}

func TestWeakThreshold(t *testing.T) {
	c := New(Config{WeakThreshold: 0.5})
	assert.False(t, c.ClassifyWithDataset("bubble", true).IsAnimation)
	assert.True(t, c.ClassifyWithDataset("bubble frames over time", true).IsAnimation)
}

func TestStrength(t *testing.T) {
	c := New(DefaultConfig())
	assert.InDelta(t, 0.45, c.Classify("animate").Strength, 1e-9)
	assert.InDelta(t, 1.0, c.Classify("animate the video render").Strength, 1e-9)
	assert.InDelta(t, 0.55, c.Classify("animate as bubble").Strength, 1e-9)
	assert.InDelta(t, 1.0, c.Classify("class GenScene(Scene):").Strength, 1e-9)
}

func TestExtractDatasetRef(t *testing.T) {
	kind, v, ok := ExtractDatasetRef("please use csv_path=data/sales.csv, thanks")
	assert.True(t, ok)
	assert.Equal(t, "csv_path", kind)
	assert.Equal(t, "data/sales.csv", v)

	kind, v, ok = ExtractDatasetRef("dataset: 'abc-123'")
	assert.True(t, ok)
	assert.Equal(t, "dataset_id", kind)
	assert.Equal(t, "abc-123", v)

	_, _, ok = ExtractDatasetRef("my dataset is great")
	assert.False(t, ok)
}

func TestHintCategory(t *testing.T) {
	assert.Equal(t, "ranking", HintCategory(HintBarRace))
	assert.Equal(t, "trend", HintCategory("Line Evolution"))
	assert.Equal(t, "", HintCategory(""))
}
