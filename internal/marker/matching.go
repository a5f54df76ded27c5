package marker

import (
	"gocv.io/x/gocv"
)

// matchTemplate runs normalized cross-correlation of tpl against src and
// returns the response matrix. The caller owns the result.
func matchTemplate(src, tpl gocv.Mat) gocv.Mat {
	result := gocv.NewMat()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(src, tpl, &result, gocv.TmCcoeffNormed, mask)
	return result
}

// fitsWithin reports whether tpl can be matched against src at all. OpenCV
// aborts when the template exceeds the searched image.
func fitsWithin(src, tpl gocv.Mat) bool {
	return tpl.Rows() <= src.Rows() && tpl.Cols() <= src.Cols()
}
