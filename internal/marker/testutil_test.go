package marker

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// Synthetic fixtures: sheets are white mats, markers are black squares with
// a white border, the classic OMR fiducial shape.

func newWhiteMat(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
}

// stampMarker draws the marker pattern with its top-left at (x, y).
func stampMarker(dst *gocv.Mat, x, y, size int) {
	margin := size / 5
	gocv.Rectangle(dst, image.Rect(x+margin, y+margin, x+size-margin, y+size-margin), color.RGBA{A: 255}, -1)
}

// stampBar draws a thin dark bar. It shares no structure with the marker
// and keeps correlation well defined in regions that must not match.
func stampBar(dst *gocv.Mat, x, y int) {
	gocv.Rectangle(dst, image.Rect(x, y, x+60, y+6), color.RGBA{A: 255}, -1)
}

func syntheticMarker(size int) gocv.Mat {
	m := newWhiteMat(size, size)
	stampMarker(&m, 0, 0, size)
	return m
}

// testOptions disables erode-subtract so the synthetic sheet and the
// prepared marker stay directly comparable.
func testOptions() Options {
	opts := DefaultOptions()
	opts.ApplyErodeSubtract = false
	return opts
}

func makeTemplate(size int, opts Options) *Template {
	raw := syntheticMarker(size)
	defer raw.Close()
	return PrepareTemplate(raw, opts, DefaultDimensions())
}

// maxCenterError returns the largest distance from any expected center to
// its nearest detected center.
func maxCenterError(det *Detection, truth []gocv.Point2f) float64 {
	worst := 0.0
	for _, want := range truth {
		best := math.Inf(1)
		for _, got := range det.Centers {
			d := math.Hypot(float64(got.X-want.X), float64(got.Y-want.Y))
			if d < best {
				best = d
			}
		}
		if best > worst {
			worst = best
		}
	}
	return worst
}
