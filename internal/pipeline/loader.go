package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"omr-rectify/internal/logger"
	"omr-rectify/internal/opencv/memory"

	"gocv.io/x/gocv"
)

type imageLoader struct {
	memoryManager *memory.Manager
	logger        logger.Logger
}

func (l *imageLoader) LoadFromPath(path string) (*ImageData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	imageData, err := l.LoadFromBytes(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, err
	}

	imageData.Path = path
	return imageData, nil
}

// LoadFromBytes decodes the sheet twice: with the standard library for the
// image.Image side and with OpenCV for the Mat side, so both stay bound to
// the same source bytes.
func (l *imageLoader) LoadFromBytes(data []byte, ext string) (*ImageData, error) {
	img, stdLibFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image with standard library: %w", err)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image with OpenCV: %w", err)
	}

	safeMat, err := l.memoryManager.AdoptMat(mat, "loaded_sheet")
	if err != nil {
		mat.Close()
		return nil, fmt.Errorf("failed to track loaded Mat: %w", err)
	}

	bounds := img.Bounds()
	imageData := &ImageData{
		Image:    img,
		Mat:      safeMat,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: safeMat.Channels(),
		Format:   determineActualFormat(ext, stdLibFormat),
	}

	l.logger.Debug("ImageLoader", "image loaded", map[string]interface{}{
		"width":    imageData.Width,
		"height":   imageData.Height,
		"channels": imageData.Channels,
		"format":   imageData.Format,
	})

	return imageData, nil
}

func determineActualFormat(ext, stdLibFormat string) string {
	switch ext {
	case ".tiff", ".tif":
		return "tiff"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".bmp":
		return "bmp"
	default:
		if stdLibFormat != "" {
			return stdLibFormat
		}
		return "unknown"
	}
}
