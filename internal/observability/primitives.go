package observability

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Prometheus text exposition (format 0.0.4) for the handful of metric kinds the
// service exports. Series are written in label order so scrapes diff cleanly.

type family struct {
	name   string
	help   string
	kind   string
	labels []string
}

func (f family) header(w io.Writer) error {
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)
	return err
}

// floatVec backs counters and gauges, labeled or not.
type floatVec struct {
	family
	mu     sync.Mutex
	series map[string]float64
}

func newFloatVec(name, help, kind string, labels []string) *floatVec {
	return &floatVec{family: family{name: name, help: help, kind: kind, labels: labels}, series: map[string]float64{}}
}

func (v *floatVec) update(values []string, fn func(float64) float64) {
	if v == nil {
		return
	}
	key := labelString(v.labels, values)
	v.mu.Lock()
	v.series[key] = fn(v.series[key])
	v.mu.Unlock()
}

func (v *floatVec) WritePrometheus(w io.Writer) error {
	if v == nil {
		return nil
	}
	if err := v.header(w); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, key := range sortedKeys(v.series) {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", v.name, key, v.series[key]); err != nil {
			return err
		}
	}
	return nil
}

type CounterVec struct{ *floatVec }

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{newFloatVec(name, help, "counter", labels)}
}

func (c *CounterVec) Inc(values ...string) { c.Add(1, values...) }

func (c *CounterVec) Add(d float64, values ...string) {
	if c == nil || d < 0 {
		return
	}
	c.update(values, func(cur float64) float64 { return cur + d })
}

type Counter struct{ vec *CounterVec }

func NewCounter(name, help string) *Counter {
	return &Counter{NewCounterVec(name, help, nil)}
}

func (c *Counter) Inc() {
	if c != nil {
		c.vec.Inc()
	}
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	return c.vec.WritePrometheus(w)
}

type GaugeVec struct{ *floatVec }

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{newFloatVec(name, help, "gauge", labels)}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	g.update(values, func(float64) float64 { return v })
}

type Gauge struct{ vec *GaugeVec }

func NewGauge(name, help string) *Gauge {
	return &Gauge{NewGaugeVec(name, help, nil)}
}

func (g *Gauge) Set(v float64) {
	if g != nil {
		g.vec.Set(v)
	}
}

func (g *Gauge) Inc() { g.add(1) }
func (g *Gauge) Dec() { g.add(-1) }

func (g *Gauge) add(d float64) {
	if g != nil {
		g.vec.update(nil, func(cur float64) float64 { return cur + d })
	}
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	return g.vec.WritePrometheus(w)
}

var defaultBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

type HistogramVec struct {
	family
	buckets []float64
	mu      sync.Mutex
	series  map[string]*histogram
}

// histogram keeps per-bucket (non-cumulative) counts; the writer accumulates.
type histogram struct {
	counts []uint64
	sum    float64
	total  uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	return &HistogramVec{
		family:  family{name: name, help: help, kind: "histogram", labels: labels},
		buckets: b,
		series:  map[string]*histogram{},
	}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	key := labelString(h.labels, values)
	// First bucket with an upper bound >= v; len(buckets) is +Inf.
	idx := sort.SearchFloat64s(h.buckets, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	hist := h.series[key]
	if hist == nil {
		hist = &histogram{counts: make([]uint64, len(h.buckets)+1)}
		h.series[key] = hist
	}
	hist.counts[idx]++
	hist.sum += v
	hist.total++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if err := h.header(w); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range sortedKeys(h.series) {
		hist := h.series[key]
		var cum uint64
		for i, bound := range h.buckets {
			cum += hist.counts[i]
			le := strconv.FormatFloat(bound, 'g', -1, 64)
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(key, le), cum); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n%s_sum%s %f\n%s_count%s %d\n",
			h.name, withLe(key, "+Inf"), hist.total,
			h.name, key, hist.sum,
			h.name, key, hist.total,
		); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// labelString renders {a="x",b="y"}. Missing values are "unknown".
func labelString(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, len(names))
	for i, name := range names {
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		parts[i] = name + `="` + escapeLabel(val) + `"`
	}
	return "{" + strings.Join(parts, ",") + "}"
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escapeLabel(v string) string { return labelEscaper.Replace(v) }

func withLe(labels, le string) string {
	pair := `le="` + escapeLabel(le) + `"`
	if !strings.HasSuffix(labels, "}") || labels == "{}" {
		return "{" + pair + "}"
	}
	return strings.TrimSuffix(labels, "}") + "," + pair + "}"
}
