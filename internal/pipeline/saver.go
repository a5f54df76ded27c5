package pipeline

import (
	"errors"
	"fmt"
	"image"
	"io"

	"omr-rectify/internal/logger"

	"github.com/disintegration/imaging"
)

type imageSaver struct {
	logger logger.Logger
}

// SaveToPath writes the rectified sheet, letting the extension choose the
// encoder. Extensions no encoder exists for fall back to PNG.
func (s *imageSaver) SaveToPath(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("no image data to save")
	}

	err := imaging.Save(img, path, imaging.JPEGQuality(95))
	if errors.Is(err, imaging.ErrUnsupportedFormat) {
		s.logger.Warning("ImageSaver", "format not supported, using PNG", map[string]interface{}{
			"path": path,
		})
		path += ".png"
		err = imaging.Save(img, path)
	}
	if err != nil {
		s.logger.Error("ImageSaver", err, map[string]interface{}{"path": path})
		return err
	}

	s.logger.Debug("ImageSaver", "image saved", map[string]interface{}{"path": path})
	return nil
}

func (s *imageSaver) SaveToWriter(writer io.Writer, img image.Image, format string) error {
	if img == nil {
		return fmt.Errorf("no image data to save")
	}

	encodeFormat, err := imaging.FormatFromExtension(format)
	if err != nil {
		s.logger.Warning("ImageSaver", "format not supported, using PNG", map[string]interface{}{
			"requested_format": format,
		})
		encodeFormat = imaging.PNG
	}

	if err := imaging.Encode(writer, img, encodeFormat, imaging.JPEGQuality(95)); err != nil {
		s.logger.Error("ImageSaver", err, map[string]interface{}{"format": format})
		return err
	}

	return nil
}
