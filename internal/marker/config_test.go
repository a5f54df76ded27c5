package marker

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.RelativePath != "omr_marker.jpg" {
		t.Errorf("RelativePath = %q", opts.RelativePath)
	}
	if opts.MinMatchingThreshold != 0.30 {
		t.Errorf("MinMatchingThreshold = %v", opts.MinMatchingThreshold)
	}
	if opts.MaxMatchingVariation != 0.41 {
		t.Errorf("MaxMatchingVariation = %v", opts.MaxMatchingVariation)
	}
	if opts.MarkerRescaleRange != [2]int{35, 100} {
		t.Errorf("MarkerRescaleRange = %v", opts.MarkerRescaleRange)
	}
	if opts.MarkerRescaleSteps != 10 {
		t.Errorf("MarkerRescaleSteps = %v", opts.MarkerRescaleSteps)
	}
	if !opts.ApplyErodeSubtract {
		t.Error("ApplyErodeSubtract should default to true")
	}

	if err := opts.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestParseSearchMode(t *testing.T) {
	cases := []struct {
		in   string
		want SearchMode
		ok   bool
	}{
		{"global", SearchGlobal, true},
		{"full", SearchGlobal, true},
		{"all", SearchGlobal, true},
		{"quadrants", SearchQuadrants, true},
		{"auto", SearchAuto, true},
		{"fallback", SearchAuto, true},
		{"bogus", SearchGlobal, false},
		{"", SearchGlobal, false},
	}

	for _, tc := range cases {
		got, err := ParseSearchMode(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseSearchMode(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("ParseSearchMode(%q) expected error", tc.in)
			}
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSearchMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestModeLegacyGlobalSearch(t *testing.T) {
	opts := DefaultOptions()

	opts.GlobalSearch = true
	if mode, _ := opts.Mode(); mode != SearchGlobal {
		t.Errorf("globalSearch=true should resolve to global, got %v", mode)
	}

	opts.GlobalSearch = false
	if mode, _ := opts.Mode(); mode != SearchQuadrants {
		t.Errorf("globalSearch=false should resolve to quadrants, got %v", mode)
	}

	// Explicit searchMode wins over the deprecated boolean.
	opts.GlobalSearch = true
	opts.SearchMode = "auto"
	if mode, _ := opts.Mode(); mode != SearchAuto {
		t.Errorf("explicit searchMode should win, got %v", mode)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"threshold above one", func(o *Options) { o.MinMatchingThreshold = 1.5 }},
		{"negative threshold", func(o *Options) { o.MinMatchingThreshold = -0.1 }},
		{"zero variation", func(o *Options) { o.MaxMatchingVariation = 0 }},
		{"inverted rescale range", func(o *Options) { o.MarkerRescaleRange = [2]int{90, 40} }},
		{"zero rescale bound", func(o *Options) { o.MarkerRescaleRange = [2]int{0, 100} }},
		{"zero steps", func(o *Options) { o.MarkerRescaleSteps = 0 }},
		{"negative width ratio", func(o *Options) { o.SheetToMarkerWidthRatio = -1 }},
		{"unknown search mode", func(o *Options) { o.SearchMode = "sideways" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.mutate(&opts)
			if err := opts.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadOptionsMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	data := `{"searchMode": "auto", "min_matching_threshold": 0.5, "relativePath": "marker.png"}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("LoadOptions failed: %v", err)
	}

	if opts.SearchMode != "auto" || opts.MinMatchingThreshold != 0.5 || opts.RelativePath != "marker.png" {
		t.Errorf("explicit fields not applied: %+v", opts)
	}
	// Absent fields keep defaults.
	if opts.MaxMatchingVariation != 0.41 || opts.MarkerRescaleRange != [2]int{35, 100} || !opts.ApplyErodeSubtract {
		t.Errorf("defaulted fields lost: %+v", opts)
	}
}

func TestLoadOptionsMissingFile(t *testing.T) {
	if _, err := LoadOptions(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing options file")
	}
}

func TestLoadOptionsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOptions(path); err == nil {
		t.Error("expected error for malformed options file")
	}
}
