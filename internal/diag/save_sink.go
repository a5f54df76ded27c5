package diag

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"omr-rectify/internal/logger"
	"omr-rectify/internal/opencv/bridge"
	"omr-rectify/internal/opencv/safe"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// SaveSink writes diagnostic images as PNG files into a directory,
// resized to a display width. It replaces the interactive debug windows
// of environments that have one.
type SaveSink struct {
	dir          string
	level        int
	displayWidth int
	logger       logger.Logger

	mu  sync.Mutex
	seq int
}

func NewSaveSink(dir string, level, displayWidth int, log logger.Logger) (*SaveSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}

	if log == nil {
		log = logger.Nop{}
	}

	return &SaveSink{
		dir:          dir,
		level:        level,
		displayWidth: displayWidth,
		logger:       log,
	}, nil
}

func (s *SaveSink) Enabled(level int) bool {
	return s.level >= level
}

func (s *SaveSink) Show(label string, mat gocv.Mat, level int) {
	if !s.Enabled(level) {
		return
	}

	img, err := s.convert(mat)
	if err != nil {
		s.logger.Warning("DebugSink", "could not convert diagnostic image", map[string]interface{}{
			"label": label,
			"error": err.Error(),
		})
		return
	}

	s.save(label, imaging.Resize(img, s.displayWidth, 0, imaging.Lanczos))
}

func (s *SaveSink) ShowPair(label string, left, right gocv.Mat, level int) {
	if !s.Enabled(level) {
		return
	}

	leftImg, err := s.convert(left)
	if err != nil {
		s.logger.Warning("DebugSink", "could not convert left image", map[string]interface{}{
			"label": label,
			"error": err.Error(),
		})
		return
	}

	rightImg, err := s.convert(right)
	if err != nil {
		s.logger.Warning("DebugSink", "could not convert right image", map[string]interface{}{
			"label": label,
			"error": err.Error(),
		})
		return
	}

	// Bring both sides to the same height, stack horizontally, then
	// scale the composite to a comfortable viewing width.
	height := leftImg.Bounds().Dy()
	rightResized := imaging.Resize(rightImg, 0, height, imaging.Lanczos)

	total := leftImg.Bounds().Dx() + rightResized.Bounds().Dx()
	composite := imaging.New(total, height, color.NRGBA{A: 255})
	composite = imaging.Paste(composite, leftImg, image.Pt(0, 0))
	composite = imaging.Paste(composite, rightResized, image.Pt(leftImg.Bounds().Dx(), 0))

	s.save(label, imaging.Resize(composite, s.displayWidth*16/10, 0, imaging.Lanczos))
}

func (s *SaveSink) convert(mat gocv.Mat) (image.Image, error) {
	tracked, err := safe.NewMatFromMat(mat)
	if err != nil {
		return nil, err
	}
	defer tracked.Close()

	return bridge.MatToImage(tracked)
}

func (s *SaveSink) save(label string, img image.Image) {
	s.mu.Lock()
	s.seq++
	name := fmt.Sprintf("%03d_%s.png", s.seq, sanitizeLabel(label))
	s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	if err := imaging.Save(img, path); err != nil {
		s.logger.Warning("DebugSink", "could not save diagnostic image", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return
	}

	s.logger.Debug("DebugSink", "diagnostic image saved", map[string]interface{}{
		"path": path,
	})
}

func sanitizeLabel(label string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, label)

	if len(mapped) > 80 {
		mapped = mapped[:80]
	}
	return mapped
}
