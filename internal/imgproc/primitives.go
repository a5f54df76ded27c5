package imgproc

import (
	"image"

	"gocv.io/x/gocv"
)

// ToGray returns a single-channel copy of src. Single-channel inputs are
// cloned so the caller always owns the result.
func ToGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	return dst
}

// Normalize stretches pixel intensities linearly to the full 0..255 range.
// Correlation scores stay comparable across scans with different lighting.
func Normalize(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Normalize(src, &dst, 0, 255, gocv.NormMinMax)
	return dst
}

// ErodeSubtract returns src - erode(src). Erosion is a running minimum, so
// the subtraction never underflows; what survives is the edge and ring
// structure that makes a fiducial marker distinctive.
func ErodeSubtract(src gocv.Mat, kernelSize, iterations int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(kernelSize, kernelSize))
	defer kernel.Close()

	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.ErodeWithParams(src, &eroded, kernel, image.Pt(-1, -1), iterations, int(gocv.BorderConstant))

	dst := gocv.NewMat()
	gocv.Subtract(src, eroded, &dst)
	return dst
}

// ResizeToHeight scales src to the given height preserving aspect ratio.
func ResizeToHeight(src gocv.Mat, height int) gocv.Mat {
	if height <= 0 || src.Rows() == 0 {
		return src.Clone()
	}
	width := int(float64(src.Cols()) * float64(height) / float64(src.Rows()))
	if width < 1 {
		width = 1
	}
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return dst
}

// ResizeToWidth scales src to the given width preserving aspect ratio.
func ResizeToWidth(src gocv.Mat, width int) gocv.Mat {
	if width <= 0 || src.Cols() == 0 {
		return src.Clone()
	}
	height := int(float64(src.Rows()) * float64(width) / float64(src.Cols()))
	if height < 1 {
		height = 1
	}
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return dst
}
