package mapping

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/scoring"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
)

func profiles(cols ...string) *dataset.Normalized {
	n := &dataset.Normalized{}
	for i := 0; i+1 < len(cols); i += 2 {
		n.Columns = append(n.Columns, cols[i])
		n.Profiles = append(n.Profiles, dataset.ColumnProfile{Name: cols[i], Type: dataset.SemanticType(cols[i+1])})
	}
	return n
}

func def(t *testing.T, id string) templates.Definition {
	t.Helper()
	d, ok := templates.NewRegistry(nil, "").Get(id)
	require.True(t, ok)
	return d
}

func TestAutoFillBarRaceScenario(t *testing.T) {
	n := profiles("country", "categorical", "year", "temporal", "revenue", "numeric")
	m, prompts := AutoFill(def(t, "bar_race"), n)
	assert.Equal(t, "country", m.Col("entity_column"))
	assert.Equal(t, "revenue", m.Col("value_column"))
	assert.Equal(t, "year", m.Col("time_column"))
	assert.Nil(t, m["group_column"])
	require.Len(t, prompts, 4)
	for _, p := range prompts[:3] {
		assert.True(t, p.Resolved(), p.Key)
	}
}

func TestAutoFillDoesNotReuseColumns(t *testing.T) {
	n := profiles("a", "numeric", "b", "numeric", "c", "numeric", "t", "temporal", "who", "categorical")
	m, prompts := AutoFill(def(t, "bubble"), n)
	seen := map[string]bool{}
	for _, c := range m.Columns() {
		assert.False(t, seen[c], "column %s used twice", c)
		seen[c] = true
	}
	// Three anonymous numeric columns: x is ambiguous and stays open.
	assert.Nil(t, m["x_column"])
	assert.True(t, prompts[0].Ambiguous)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, prompts[0].Suggestions)
	assert.Equal(t, "t", m.Col("time_column"))
	assert.Equal(t, "who", m.Col("entity_column"))
}

func TestAutoFillPrefersTemporalForTimeAxis(t *testing.T) {
	n := profiles("when", "temporal", "amount", "numeric", "other", "numeric")
	m, _ := AutoFill(def(t, "line_evolution"), n)
	assert.Equal(t, "amount", m.Col("value_column"))
	assert.Equal(t, "when", m.Col("time_column"))
}

func TestNegotiate(t *testing.T) {
	reg := templates.NewRegistry(nil, "")
	n := profiles("country", "categorical", "year", "temporal", "revenue", "numeric")
	cands := scoring.Score(n, reg, "bar race", scoring.DefaultConfig())
	top, ok := scoring.Recommended(cands)
	require.True(t, ok)

	d := Negotiate(top, n, DefaultConfig())
	assert.True(t, d.AutoConfirmed, d.Reasons)
	assert.Equal(t, "bar_race", d.TemplateID)
	_, pending := d.Pending()
	assert.False(t, pending)

	low := top
	low.Confidence = 0.4
	d = Negotiate(low, n, DefaultConfig())
	assert.False(t, d.AutoConfirmed)
	assert.NotEmpty(t, d.Reasons)
}

func TestNegotiateAmbiguousBlocks(t *testing.T) {
	n := profiles("a", "numeric", "b", "numeric", "when", "temporal")
	cand := scoring.Candidate{Template: def(t, "line_evolution"), Confidence: 0.9, Feasible: true}
	d := Negotiate(cand, n, DefaultConfig())
	assert.False(t, d.AutoConfirmed)
	p, pending := d.Pending()
	require.True(t, pending)
	assert.Equal(t, "value_column", p.Key)
	assert.Equal(t, []string{"a", "b"}, p.Suggestions)
}

func TestValidate(t *testing.T) {
	d := def(t, "bar_race")
	n := profiles("country", "categorical", "year", "temporal", "revenue", "numeric")

	m := FromColumns(map[string]string{"entity_column": "country", "value_column": "revenue", "time_column": "year"})
	require.NoError(t, Validate(d, m, n))

	m = FromColumns(map[string]string{"entity_column": "country", "value_column": "", "group_column": ""})
	err := Validate(d, m, n)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"What value determines bar length?", "Over what time period?"}, ve.Missing)
	assert.Contains(t, err.Error(), "missing mapping for")

	m = FromColumns(map[string]string{"entity_column": "revenue", "value_column": "gone", "time_column": "year", "bogus": "x"})
	err = Validate(d, m, n)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"gone"}, ve.Unknown)
	assert.Len(t, ve.Mismatched, 1)
	assert.Equal(t, []string{"bogus"}, ve.UnknownAxes)
}

func TestCanonicalKeys(t *testing.T) {
	m := FromColumns(map[string]string{"time_col": "year", "Value_Col": "v", "entity_column": "e", "entity_col": "ignored"})
	c := m.Canonical()
	assert.Equal(t, "year", c.Col("time_column"))
	assert.Equal(t, "v", c.Col("value_column"))
	assert.Equal(t, "e", c.Col("entity_column"))
	assert.Len(t, c, 3)
}

func TestDuplicatesWarn(t *testing.T) {
	d := def(t, "bubble")
	m := FromColumns(map[string]string{"x_column": "gdp", "y_column": "gdp", "size_column": "pop"})
	w := Duplicates(d, m)
	require.Len(t, w, 1)
	assert.Contains(t, w[0], `"gdp"`)
}

func TestValidatePayload(t *testing.T) {
	assert.NoError(t, ValidatePayload([]byte(`{"mapping":{"time_col":"year","group_column":null},"aspect":"9:16","top_n":5}`)))
	assert.Error(t, ValidatePayload([]byte(`{"mapping":{}}`)))
	assert.Error(t, ValidatePayload([]byte(`{"labels":{}}`)))
	assert.Error(t, ValidatePayload([]byte(`{"mapping":{"a":1}}`)))
	assert.Error(t, ValidatePayload([]byte(`{"mapping":{"a":"b"},"aspect":"4:3"}`)))
	assert.Error(t, ValidatePayload([]byte(`{"mapping":{"a":"b"},"extra":true}`)))
	assert.Error(t, ValidatePayload([]byte(`not json`)))
	assert.NoError(t, ValidatePayload([]byte(`{"mapping":{"a":"b"},"theme":"ocean_calm","palette":"neon"}`)))
	assert.Error(t, ValidatePayload([]byte(`{"mapping":{"a":"b"},"theme":"glitter"}`)))
	assert.Error(t, ValidatePayload([]byte(`{"mapping":{"a":"b"},"palette":"rainbow"}`)))
}
