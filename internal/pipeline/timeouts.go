package pipeline

import (
	"time"

	"omr-rectify/internal/marker"
)

// Timeouts bound the worst case of one sheet. Global search dominates:
// up to 20 suppression iterations plus the exhaustive 495-combination
// quad selection on top of the scale scan.
type Timeouts struct {
	QuadrantSearch time.Duration
	GlobalSearch   time.Duration
	PerScaleStep   time.Duration
}

var DefaultTimeouts = Timeouts{
	QuadrantSearch: 10 * time.Second,
	GlobalSearch:   20 * time.Second,
	PerScaleStep:   2 * time.Second,
}

func calculateTimeout(mode marker.SearchMode, opts marker.Options) time.Duration {
	base := DefaultTimeouts.QuadrantSearch
	if mode != marker.SearchQuadrants {
		// Auto mode may fall back to global search, budget for it.
		base = DefaultTimeouts.GlobalSearch
	}

	return base + time.Duration(opts.MarkerRescaleSteps)*DefaultTimeouts.PerScaleStep
}
