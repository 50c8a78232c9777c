package render

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		raw  string
		want FailureCategory
	}{
		{"AttributeError: 'NoneType' object has no attribute 'find' in Text(", MissingAxisLabel},
		{"KeyError: 'value'", MissingDataColumn},
		{"ValueError: could not convert string to float: 'abc'", DataTypeIssue},
		{"ValueError: cannot plot nan value", DataTypeIssue},
		{"ModuleNotFoundError: No module named 'foo'", UnknownRuntime},
		{"MemoryError: killed", UnknownRuntime},
		{"  File \"scene.py\", line 3\nSyntaxError: invalid syntax", SceneSyntax},
		{"NameError: name 'Axes3' is not defined", SceneSyntax},
		{"Manim preview timed out after 600s", PerformanceTimeout},
		{"Random obscure error", UnknownRuntime},
		{"", UnknownRuntime},
	}
	for _, tc := range cases {
		if got := Classify(tc.raw); got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestOnlySceneSyntaxRetries(t *testing.T) {
	for _, c := range AllCategories {
		if c.RetryEligible() != (c == SceneSyntax) {
			t.Fatalf("%s: RetryEligible=%v", c, c.RetryEligible())
		}
		if c.Summary() == "" {
			t.Fatalf("%s: empty summary", c)
		}
	}
	if FailureCategory("EnvironmentDependency").Valid() {
		t.Fatalf("categories outside the closed set must be invalid")
	}
}

func TestPresetFor(t *testing.T) {
	p := PresetFor(PhasePreview, "9:16", TierHigh)
	if p.FPS != 10 || p.SampleEvery != 4 || p.MaxFrames != 50 || !p.Frames || p.Tier != TierLow {
		t.Fatalf("preview preset: %+v", p)
	}
	if p.Width != 720 || p.Height != 1280 {
		t.Fatalf("9:16 size: %dx%d", p.Width, p.Height)
	}
	r := PresetFor(PhaseRender, "bogus", TierMedium)
	if r.FPS != 24 || r.Width != 1280 || r.Height != 720 || r.Frames || r.Tier != TierMedium {
		t.Fatalf("render preset: %+v", r)
	}
	if e := PresetFor(PhaseExport, "1:1", TierLow); e.Tier != TierHigh || e.Width != 720 {
		t.Fatalf("export preset: %+v", e)
	}
}

func TestCapMessage(t *testing.T) {
	long := make([]byte, 0, 600)
	for len(long) < 598 {
		long = append(long, 'a')
	}
	long = append(long, []byte("é")...)
	got := CapMessage(string(long))
	if len(got) > maxMessageLen {
		t.Fatalf("len=%d", len(got))
	}
	if CapMessage("short") != "short" {
		t.Fatalf("short message changed")
	}
}
