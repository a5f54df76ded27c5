package pipeline

import (
	"image"

	"omr-rectify/internal/opencv/safe"
)

// ImageData carries one sheet through the pipeline in both worlds: the
// decoded standard-library image for encoding and the tracked Mat for
// OpenCV work.
type ImageData struct {
	Image    image.Image
	Mat      *safe.Mat
	Width    int
	Height   int
	Channels int
	Format   string
	Path     string
}

// Stats summarizes a batch run. Scores holds the average marker match
// score of every successfully rectified sheet, the retuning signal the
// original analysis data tracked.
type Stats struct {
	Processed int
	Failed    int
	Scores    []float64
}

func (s Stats) MeanScore() float64 {
	if len(s.Scores) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range s.Scores {
		sum += v
	}
	return sum / float64(len(s.Scores))
}
