package bridge

import (
	"fmt"
	"image"
	"image/color"

	"omr-rectify/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// MatToImage converts a tracked Mat into a standard library image. Only the
// shapes the rectification pipeline produces are supported: 8-bit
// single-channel (grayscale sheets) and 3-channel BGR.
func MatToImage(mat *safe.Mat) (image.Image, error) {
	if err := safe.ValidateMatForOperation(mat, "MatToImage"); err != nil {
		return nil, err
	}

	rows := mat.Rows()
	cols := mat.Cols()

	switch mat.Channels() {
	case 1:
		return matToGray(mat, rows, cols), nil
	case 3:
		return matToRGBA(mat, rows, cols), nil
	default:
		return nil, fmt.Errorf("unsupported number of channels: %d", mat.Channels())
	}
}

func matToGray(mat *safe.Mat, rows, cols int) *image.Gray {
	raw := mat.GetMat()
	img := image.NewGray(image.Rect(0, 0, cols, rows))

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetGray(x, y, color.Gray{Y: raw.GetUCharAt(y, x)})
		}
	}

	return img
}

func matToRGBA(mat *safe.Mat, rows, cols int) *image.RGBA {
	raw := mat.GetMat()
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			b := raw.GetUCharAt3(y, x, 0)
			g := raw.GetUCharAt3(y, x, 1)
			r := raw.GetUCharAt3(y, x, 2)
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}

	return img
}

// ImageToMat converts a decoded image into a tracked BGR or grayscale Mat.
func ImageToMat(img image.Image, tracker safe.MemoryTracker, tag string) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("input image has invalid dimensions: %dx%d", width, height)
	}

	if gray, ok := img.(*image.Gray); ok {
		return grayToMat(gray, width, height, tracker, tag)
	}
	return colorToMat(img, width, height, tracker, tag)
}

func grayToMat(img *image.Gray, width, height int, tracker safe.MemoryTracker, tag string) (*safe.Mat, error) {
	mat, err := safe.NewMatWithTracker(height, width, gocv.MatTypeCV8UC1, tracker, tag)
	if err != nil {
		return nil, err
	}

	raw := mat.GetMat()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			raw.SetUCharAt(y, x, img.GrayAt(x, y).Y)
		}
	}

	return mat, nil
}

func colorToMat(img image.Image, width, height int, tracker safe.MemoryTracker, tag string) (*safe.Mat, error) {
	mat, err := safe.NewMatWithTracker(height, width, gocv.MatTypeCV8UC3, tracker, tag)
	if err != nil {
		return nil, err
	}

	raw := mat.GetMat()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			raw.SetUCharAt3(y, x, 0, uint8(b>>8))
			raw.SetUCharAt3(y, x, 1, uint8(g>>8))
			raw.SetUCharAt3(y, x, 2, uint8(r>>8))
		}
	}

	return mat, nil
}
