package marker

import (
	"image"

	"gocv.io/x/gocv"
)

// Candidate is one detected marker instance: the correlation score at a
// peak plus the top-left location and size of the matched patch.
type Candidate struct {
	Score  float64
	Loc    image.Point
	Width  int
	Height int
}

// Center is the sub-pixel marker center: top-left plus half the scaled
// marker extent.
func (c Candidate) Center() gocv.Point2f {
	return gocv.Point2f{
		X: float32(c.Loc.X) + float32(c.Width)/2,
		Y: float32(c.Loc.Y) + float32(c.Height)/2,
	}
}

// Rect is the axis-aligned box of the matched patch, used for diagnostic
// overlays.
func (c Candidate) Rect() image.Rectangle {
	return image.Rect(c.Loc.X, c.Loc.Y, c.Loc.X+c.Width, c.Loc.Y+c.Height)
}

// Detection is the accepted set of four markers, one per physical sheet
// corner, in full-image coordinates.
type Detection struct {
	Centers  [4]gocv.Point2f
	Rects    [4]image.Rectangle
	AvgScore float64
	Scale    float64
	Mode     SearchMode // strategy that actually produced the set
}

func newDetection(cands []Candidate, scale float64, mode SearchMode) *Detection {
	det := &Detection{Scale: scale, Mode: mode}

	sum := 0.0
	for i, c := range cands {
		det.Centers[i] = c.Center()
		det.Rects[i] = c.Rect()
		sum += c.Score
	}
	det.AvgScore = sum / 4

	return det
}
