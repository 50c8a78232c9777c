package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWritePrometheusIncludesRenderOutcomes(t *testing.T) {
	m := newMetrics()
	m.ObserveRender("preview", "failed", "SceneSyntax", 2*time.Second)
	m.ObserveRender("render", "succeeded", "", 40*time.Second)
	m.IncRenderRetry()
	m.SetObjectStorageModeActive("s3")

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`cm_render_outcomes_total{phase="preview",outcome="failed",category="SceneSyntax"} 1.000000`,
		`cm_render_outcomes_total{phase="render",outcome="succeeded",category="none"} 1.000000`,
		`cm_render_retries_total 1.000000`,
		`cm_object_storage_mode_active{mode="s3"} 1.000000`,
		`cm_render_duration_seconds_bucket{phase="render",outcome="succeeded",le="60"} 1`,
		"# TYPE cm_render_duration_seconds histogram",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveRender("preview", "succeeded", "", time.Second)
	m.IncHeartbeat()
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a"}, []string{"x\"y\n"})
	if got != `{a="x\"y\n"}` {
		t.Fatalf("escaped labels: %s", got)
	}
	if withLe("", "+Inf") != `{le="+Inf"}` {
		t.Fatalf("withLe on empty labels")
	}
}

func TestHistogramIsCumulativeAndSorted(t *testing.T) {
	h := NewHistogramVec("cm_test_seconds", "test", []string{"stage"}, []float64{5, 1})
	h.Observe(0.5, "b")
	h.Observe(3, "b")
	h.Observe(9, "b")
	h.Observe(1, "a")

	var buf bytes.Buffer
	if err := h.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := strings.Join([]string{
		"# HELP cm_test_seconds test",
		"# TYPE cm_test_seconds histogram",
		`cm_test_seconds_bucket{stage="a",le="1"} 1`,
		`cm_test_seconds_bucket{stage="a",le="5"} 1`,
		`cm_test_seconds_bucket{stage="a",le="+Inf"} 1`,
		`cm_test_seconds_sum{stage="a"} 1.000000`,
		`cm_test_seconds_count{stage="a"} 1`,
		`cm_test_seconds_bucket{stage="b",le="1"} 1`,
		`cm_test_seconds_bucket{stage="b",le="5"} 2`,
		`cm_test_seconds_bucket{stage="b",le="+Inf"} 3`,
		`cm_test_seconds_sum{stage="b"} 12.500000`,
		`cm_test_seconds_count{stage="b"} 3`,
	}, "\n") + "\n"
	if got := buf.String(); got != want {
		t.Fatalf("histogram output:\n%s\nwant:\n%s", got, want)
	}
}

func TestCounterIgnoresNegativeAdd(t *testing.T) {
	c := NewCounterVec("cm_test_total", "test", []string{"k"})
	c.Add(2, "x")
	c.Add(-5, "x")
	var buf bytes.Buffer
	_ = c.WritePrometheus(&buf)
	if !strings.Contains(buf.String(), `cm_test_total{k="x"} 2.000000`) {
		t.Fatalf("counter output: %s", buf.String())
	}
}
