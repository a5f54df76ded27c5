package marker

import (
	"encoding/json"
	"fmt"
	"os"
)

// SearchMode selects the marker localization strategy.
type SearchMode int

const (
	// SearchGlobal scans the whole sheet and picks the best four of all
	// suppressed correlation peaks.
	SearchGlobal SearchMode = iota
	// SearchQuadrants assumes exactly one marker per image quadrant.
	SearchQuadrants
	// SearchAuto starts in quadrant mode and promotes the whole image to
	// global search when any quadrant fails.
	SearchAuto
)

func (m SearchMode) String() string {
	switch m {
	case SearchGlobal:
		return "global"
	case SearchQuadrants:
		return "quadrants"
	case SearchAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseSearchMode accepts the spellings found in sheet templates,
// including the legacy aliases.
func ParseSearchMode(s string) (SearchMode, error) {
	switch s {
	case "global", "full", "all":
		return SearchGlobal, nil
	case "quadrants":
		return SearchQuadrants, nil
	case "auto", "fallback":
		return SearchAuto, nil
	default:
		return SearchGlobal, fmt.Errorf("unknown search mode %q", s)
	}
}

// Options mirrors the marker-detection block of a sheet template file.
// Field names match the JSON the template editor writes.
type Options struct {
	RelativePath            string  `json:"relativePath"`
	MinMatchingThreshold    float64 `json:"min_matching_threshold"`
	MaxMatchingVariation    float64 `json:"max_matching_variation"`
	MarkerRescaleRange      [2]int  `json:"marker_rescale_range"`
	MarkerRescaleSteps      int     `json:"marker_rescale_steps"`
	ApplyErodeSubtract      bool    `json:"apply_erode_subtract"`
	SearchMode              string  `json:"searchMode"`
	GlobalSearch            bool    `json:"globalSearch"` // deprecated, feeds the SearchMode default
	SheetToMarkerWidthRatio int     `json:"sheetToMarkerWidthRatio"`
}

func DefaultOptions() Options {
	return Options{
		RelativePath:         "omr_marker.jpg",
		MinMatchingThreshold: 0.30,
		MaxMatchingVariation: 0.41,
		MarkerRescaleRange:   [2]int{35, 100},
		MarkerRescaleSteps:   10,
		ApplyErodeSubtract:   true,
	}
}

// LoadOptions reads a JSON options file over the defaults, so absent
// fields keep their documented default values.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read options file: %w", err)
	}

	if err := json.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse options file: %w", err)
	}

	return opts, nil
}

// Mode resolves the effective search mode. An explicit searchMode wins;
// otherwise the deprecated globalSearch boolean decides between global
// and quadrant search.
func (o Options) Mode() (SearchMode, error) {
	if o.SearchMode == "" {
		if o.GlobalSearch {
			return SearchGlobal, nil
		}
		return SearchQuadrants, nil
	}
	return ParseSearchMode(o.SearchMode)
}

func (o Options) Validate() error {
	if o.MinMatchingThreshold < 0 || o.MinMatchingThreshold > 1 {
		return fmt.Errorf("min_matching_threshold must be within [0,1], got: %f", o.MinMatchingThreshold)
	}

	if o.MaxMatchingVariation <= 0 {
		return fmt.Errorf("max_matching_variation must be positive, got: %f", o.MaxMatchingVariation)
	}

	low, high := o.MarkerRescaleRange[0], o.MarkerRescaleRange[1]
	if low <= 0 || high <= 0 || low > high {
		return fmt.Errorf("marker_rescale_range must satisfy 0 < low <= high, got: [%d,%d]", low, high)
	}

	if o.MarkerRescaleSteps < 1 {
		return fmt.Errorf("marker_rescale_steps must be at least 1, got: %d", o.MarkerRescaleSteps)
	}

	if o.SheetToMarkerWidthRatio < 0 {
		return fmt.Errorf("sheetToMarkerWidthRatio must not be negative, got: %d", o.SheetToMarkerWidthRatio)
	}

	if _, err := o.Mode(); err != nil {
		return err
	}

	return nil
}

// Dimensions holds the sheet geometry the surrounding system processes at.
type Dimensions struct {
	ProcessingWidth  int `json:"processing_width"`
	ProcessingHeight int `json:"processing_height"`
	DisplayWidth     int `json:"display_width"`
}

func DefaultDimensions() Dimensions {
	return Dimensions{
		ProcessingWidth:  666,
		ProcessingHeight: 820,
		DisplayWidth:     640,
	}
}
