package marker

import "errors"

// Detection failures are recoverable at the batch level: the sheet is
// skipped and processing continues. Callers match them with errors.Is.
var (
	// ErrScaleBelowThreshold means no tested marker scale produced a
	// correlation peak above the configured minimum.
	ErrScaleBelowThreshold = errors.New("no marker scale cleared the matching threshold")

	// ErrMarkerNotInQuadrant means a quadrant's best score was below the
	// threshold or drifted too far from the whole-image best.
	ErrMarkerNotInQuadrant = errors.New("no marker found in quadrant")

	// ErrNotEnoughCandidates means global search found fewer than four
	// distinct peaks above the threshold.
	ErrNotEnoughCandidates = errors.New("not enough marker candidates in global search")
)
