package marker

import (
	"fmt"

	"omr-rectify/internal/imgproc"

	"gocv.io/x/gocv"
)

// bestScale scans candidate marker scales from the high bound of the
// rescale range down to the low bound in fixed integer-percent steps,
// matching the rescaled marker against the whole working image at each
// step. It returns the scale with the highest correlation peak and that
// peak value. Equal peaks keep the first (larger) scale: the scan is
// descending and the update is a strict improvement.
//
// A range where low == high still evaluates exactly one scale.
func bestScale(working, markerMat gocv.Mat, opts Options) (float64, float64, error) {
	low, high := opts.MarkerRescaleRange[0], opts.MarkerRescaleRange[1]

	step := (high - low) / opts.MarkerRescaleSteps
	if step < 1 {
		step = 1
	}

	best := 0.0
	allMax := 0.0
	found := false

	for r := high; r >= low; r -= step {
		scale := float64(r) / 100

		height := int(float64(markerMat.Rows()) * scale)
		if height < 1 {
			continue
		}

		rescaled := imgproc.ResizeToHeight(markerMat, height)
		if !fitsWithin(working, rescaled) {
			rescaled.Close()
			continue
		}

		res := matchTemplate(working, rescaled)
		_, maxVal, _, _ := gocv.MinMaxLoc(res)
		res.Close()
		rescaled.Close()

		if float64(maxVal) > allMax {
			allMax = float64(maxVal)
			best = scale
			found = true
		}
	}

	if !found || allMax < opts.MinMatchingThreshold {
		return 0, allMax, fmt.Errorf(
			"%w: best score %.3f, threshold %.3f, rescale range [%d,%d]",
			ErrScaleBelowThreshold, allMax, opts.MinMatchingThreshold, low, high)
	}

	return best, allMax, nil
}
