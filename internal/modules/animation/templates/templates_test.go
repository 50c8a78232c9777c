package templates

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
)

func TestAxisTypeAccepts(t *testing.T) {
	cases := []struct {
		axis AxisType
		col  dataset.SemanticType
		want bool
	}{
		{AxisNumeric, dataset.Numeric, true},
		{AxisNumeric, dataset.Temporal, false},
		{AxisCategorical, dataset.Categorical, true},
		{AxisCategorical, dataset.Numeric, false},
		{AxisTemporal, dataset.Temporal, true},
		{AxisTemporal, dataset.Numeric, true},
		{AxisTemporal, dataset.Categorical, false},
		{AxisAny, dataset.Categorical, true},
		{AxisAny, dataset.Numeric, true},
		{AxisAny, dataset.Temporal, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.axis.Accepts(c.col), "%s accepts %s", c.axis, c.col)
	}
}

func TestRegistryBuiltins(t *testing.T) {
	reg := NewRegistry(nil, "")
	defs := reg.List()
	require.Len(t, defs, 6)
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
		assert.NotEmpty(t, d.Name, d.ID)
		assert.NotEmpty(t, d.DefaultTitle, d.ID)
		assert.NotEmpty(t, d.RequiredAxes(), d.ID)
		for _, a := range d.Axes {
			assert.NotEmpty(t, a.Label, "%s.%s", d.ID, a.Key)
			assert.NotEmpty(t, a.DisplayLabel, "%s.%s", d.ID, a.Key)
		}
	}
	assert.Equal(t, []string{"bar_race", "bubble", "line_evolution", "distribution", "bento_grid", "single_numeric"}, ids)

	bar, ok := reg.Get("bar_race")
	require.True(t, ok)
	assert.Equal(t, "Bar Chart Race", bar.Name)
	assert.Equal(t, CategoryRanking, bar.Category)
	assert.Equal(t, "Data Race", bar.DefaultTitle)
	assert.Equal(t, 12, bar.DefaultTopN)
	axis, _ := bar.Axis("entity_column")
	assert.Equal(t, "Who/what is racing?", axis.Label)

	_, ok = reg.Get(GenerativeFallbackID)
	assert.False(t, ok)
}

func TestRegisterRejectsDuplicatesAndReserved(t *testing.T) {
	reg := NewRegistry(nil, "")
	def := Definition{ID: "bar_race", Skeleton: skeleton("bar_race")}
	assert.Error(t, reg.Register(def))
	def.ID = GenerativeFallbackID
	assert.Error(t, reg.Register(def))
	def.ID = "custom"
	def.Axes = []AxisRequirement{{Key: "a"}, {Key: "a"}}
	assert.Error(t, reg.Register(def))
	def.Axes = []AxisRequirement{{Key: "value_column", Required: true, Type: AxisNumeric}}
	require.NoError(t, reg.Register(def))
	got, ok := reg.Get("custom")
	require.True(t, ok)
	assert.Equal(t, "Custom", got.Name)
	assert.Equal(t, CategoryGeneral, got.Category)
	assert.Equal(t, "Value", got.Axes[0].DisplayLabel)
}

func TestCatalogOverrideKeepsAxisTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := `
version: 2
templates:
  - id: bar_race
    name: Racing Bars
    category: trend
    axes:
      value_column:
        display_label: Revenue
      not_an_axis:
        prompt: ignored
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	reg := NewRegistry(nil, path)
	bar, _ := reg.Get("bar_race")
	assert.Equal(t, "Racing Bars", bar.Name)
	assert.Equal(t, CategoryTrend, bar.Category)
	v, _ := bar.Axis("value_column")
	assert.Equal(t, "Revenue", v.DisplayLabel)
	assert.Equal(t, AxisNumeric, v.Type)
	assert.True(t, v.Required)
	assert.False(t, bar.HasAxis("not_an_axis"))

	// Templates missing from the override fall back to code defaults.
	bubble, _ := reg.Get("bubble")
	assert.Equal(t, "Bubble", bubble.Name)
}

func TestParseCatalogErrors(t *testing.T) {
	_, err := ParseCatalog([]byte("templates: []"))
	assert.Error(t, err)
	_, err = ParseCatalog([]byte("templates:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)
	_, err = ParseCatalog([]byte("templates:\n  - id: a\n    category: nope\n"))
	assert.Error(t, err)
	_, err = ParseCatalog([]byte("templates:\n  - name: x\n"))
	assert.Error(t, err)
}

func TestBrokenCatalogFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":::"), 0o644))
	reg := NewRegistry(nil, path)
	bar, ok := reg.Get("bar_race")
	require.True(t, ok)
	assert.Equal(t, "Bar Race", bar.Name)
	for _, a := range bar.Axes {
		assert.NotEmpty(t, a.Label)
	}
}

func TestWatchReloadsCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	write := func(name string) {
		body := "templates:\n  - id: single_numeric\n    name: " + name + "\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write("First")
	reg := NewRegistry(nil, path)
	def, _ := reg.Get("single_numeric")
	require.Equal(t, "First", def.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, reg.Watch(ctx, path))
	write("Second")

	require.Eventually(t, func() bool {
		def, _ := reg.Get("single_numeric")
		return def.Name == "Second"
	}, 3*time.Second, 20*time.Millisecond)

	// An invalid edit keeps the last good catalog.
	require.NoError(t, os.WriteFile(path, []byte(":::"), 0o644))
	time.Sleep(200 * time.Millisecond)
	def, _ = reg.Get("single_numeric")
	assert.Equal(t, "Second", def.Name)
}

func TestSkeletonsRenderEveryLabel(t *testing.T) {
	reg := NewRegistry(nil, "")
	for _, def := range reg.List() {
		in := SkeletonInput{
			Title:    `Title "quoted" ü`,
			Columns:  map[string]string{},
			Labels:   map[string]string{},
			DataJSON: `[{"a":1}]`,
			TopN:     def.DefaultTopN,
		}
		for _, a := range def.Axes {
			if a.Required {
				in.Columns[a.Key] = "col_" + a.Key
			}
			in.Labels[a.Key] = "LBL_" + a.Key
		}
		src, err := def.Skeleton(in)
		require.NoError(t, err, def.ID)
		assert.Contains(t, src, "class GenScene(Scene):", def.ID)
		assert.Contains(t, src, "def construct(self):", def.ID)
		assert.Contains(t, src, `"Title \"quoted\" \u00fc"`, def.ID)
		assert.Contains(t, src, `json.loads("[{\"a\":1}]")`, def.ID)
		for _, a := range def.Axes {
			assert.Contains(t, src, `"LBL_`+a.Key+`"`, "%s label %s", def.ID, a.Key)
			if a.Required {
				assert.Contains(t, src, `"col_`+a.Key+`"`, "%s column %s", def.ID, a.Key)
			}
		}
		assert.NotContains(t, src, "<no value>", def.ID)
		assert.False(t, strings.Contains(src, "```"), def.ID)
	}
}

func TestOptionalColumnRendersNone(t *testing.T) {
	def, _ := NewRegistry(nil, "").Get("bar_race")
	src, err := def.Skeleton(SkeletonInput{
		Title:   "t",
		Columns: map[string]string{"entity_column": "country", "value_column": "revenue", "time_column": "year"},
		Labels: map[string]string{
			"entity_column": "Country", "value_column": "Revenue", "time_column": "Year", "group_column": "Group",
		},
		DataJSON: "[]",
		TopN:     12,
	})
	require.NoError(t, err)
	assert.Contains(t, src, "GROUP = None\n")
	assert.Contains(t, src, "SLOTS = 12\n")
}

func TestNameHints(t *testing.T) {
	cases := []struct {
		axis, col string
		want      bool
	}{
		{"time_column", "year", true},
		{"time_column", "Tahun", true},
		{"time_column", "ReportDate", true},
		{"time_col", "time", true},
		{"entity_column", "country_name", true},
		{"value_column", "revenue", true},
		{"value_column", "Values", true},
		{"group_column", "Region_name", true},
		{"value_column", "country", false},
		{"x_column", "gdp", false},
		{"size_column", "populations", true},
		{"time_column", "yearr", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NameHints(c.axis, c.col), "%s ~ %s", c.axis, c.col)
	}
}
