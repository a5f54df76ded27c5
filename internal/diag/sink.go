// Package diag decouples the detection pipeline from any display
// environment. The pipeline hands labeled images to a Sink together with
// the minimum verbosity level they belong to; sinks decide what to do
// with them.
package diag

import (
	"gocv.io/x/gocv"
)

// Sink receives diagnostic images from the pipeline.
type Sink interface {
	// Enabled reports whether the sink would act on an image at the
	// given level, so callers can skip building overlays nobody sees.
	Enabled(level int) bool

	// Show hands one labeled image to the sink.
	Show(label string, mat gocv.Mat, level int)

	// ShowPair hands a side-by-side comparison, typically the working
	// image next to the rectified result.
	ShowPair(label string, left, right gocv.Mat, level int)
}

// NullSink drops everything. It is the default when diagnostics are off.
type NullSink struct{}

func (NullSink) Enabled(int) bool                         { return false }
func (NullSink) Show(string, gocv.Mat, int)               {}
func (NullSink) ShowPair(string, gocv.Mat, gocv.Mat, int) {}
