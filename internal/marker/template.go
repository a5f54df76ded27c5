package marker

import (
	"fmt"
	"image"

	"omr-rectify/internal/imgproc"

	"gocv.io/x/gocv"
)

const (
	markerBlurKernel = 5

	erosionKernelSize = 5
	erosionIterations = 5
)

// Template is the prepared fiducial marker. It is built once per run and
// must be treated as read-only afterwards, so concurrent sheet workers can
// share it without coordination.
type Template struct {
	mat  gocv.Mat
	path string
}

// LoadTemplate reads the marker image from disk and prepares it. A missing
// or unreadable marker file is a configuration error: the whole run cannot
// proceed without it.
func LoadTemplate(path string, opts Options, dims Dimensions) (*Template, error) {
	raw := gocv.IMRead(path, gocv.IMReadGrayScale)
	if raw.Empty() {
		return nil, fmt.Errorf("marker image not found or unreadable: %s", path)
	}
	defer raw.Close()

	tpl := PrepareTemplate(raw, opts, dims)
	tpl.path = path
	return tpl, nil
}

// PrepareTemplate builds a prepared marker from an already decoded
// grayscale image. The input is not modified; the returned Template owns a
// new buffer.
func PrepareTemplate(raw gocv.Mat, opts Options, dims Dimensions) *Template {
	working := raw.Clone()

	if opts.SheetToMarkerWidthRatio > 0 {
		resized := imgproc.ResizeToWidth(working, dims.ProcessingWidth/opts.SheetToMarkerWidthRatio)
		working.Close()
		working = resized
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(working, &blurred, image.Pt(markerBlurKernel, markerBlurKernel), 0, 0, gocv.BorderDefault)
	working.Close()

	normalized := imgproc.Normalize(blurred)
	blurred.Close()

	if !opts.ApplyErodeSubtract {
		return &Template{mat: normalized}
	}

	subtracted := imgproc.ErodeSubtract(normalized, erosionKernelSize, erosionIterations)
	normalized.Close()
	return &Template{mat: subtracted}
}

// Mat exposes the prepared marker buffer. Callers must not mutate it.
func (t *Template) Mat() gocv.Mat {
	return t.mat
}

func (t *Template) Width() int {
	return t.mat.Cols()
}

func (t *Template) Height() int {
	return t.mat.Rows()
}

func (t *Template) Path() string {
	return t.path
}

func (t *Template) Close() {
	if !t.mat.Empty() {
		t.mat.Close()
	}
}
