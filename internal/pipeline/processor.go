package pipeline

import (
	"context"
	"fmt"

	"omr-rectify/internal/imgproc"
	"omr-rectify/internal/logger"
	"omr-rectify/internal/marker"
	"omr-rectify/internal/opencv/bridge"
	"omr-rectify/internal/opencv/memory"
	"omr-rectify/internal/opencv/safe"

	"gocv.io/x/gocv"
)

type sheetProcessor struct {
	detector      *marker.Detector
	dims          marker.Dimensions
	memoryManager *memory.Manager
	logger        logger.Logger
}

// ProcessWithContext rectifies one loaded sheet. The sheet is first
// brought to the processing width the template geometry assumes, so the
// sheet-to-marker ratio holds regardless of scan resolution.
func (p *sheetProcessor) ProcessWithContext(ctx context.Context, input *ImageData) (*ImageData, *marker.Detection, error) {
	if err := safe.ValidateMatForOperation(input.Mat, "ProcessSheet"); err != nil {
		return nil, nil, err
	}

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	src := input.Mat.GetMat()

	var sheet gocv.Mat
	if p.dims.ProcessingWidth > 0 && src.Cols() != p.dims.ProcessingWidth {
		sheet = imgproc.ResizeToWidth(src, p.dims.ProcessingWidth)
	} else {
		sheet = src.Clone()
	}
	defer sheet.Close()

	rectified, detection, err := p.detector.Rectify(ctx, sheet, input.Path)
	if err != nil {
		return nil, nil, err
	}

	resultMat, err := p.memoryManager.AdoptMat(rectified, "rectified_sheet")
	if err != nil {
		rectified.Close()
		return nil, nil, fmt.Errorf("failed to track rectified Mat: %w", err)
	}

	select {
	case <-ctx.Done():
		p.memoryManager.ReleaseMat(resultMat, "rectified_sheet")
		return nil, nil, ctx.Err()
	default:
	}

	resultImage, err := bridge.MatToImage(resultMat)
	if err != nil {
		p.memoryManager.ReleaseMat(resultMat, "rectified_sheet")
		return nil, nil, fmt.Errorf("Mat to image conversion failed: %w", err)
	}

	bounds := resultImage.Bounds()
	processed := &ImageData{
		Image:    resultImage,
		Mat:      resultMat,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: resultMat.Channels(),
		Format:   input.Format,
		Path:     input.Path,
	}

	p.logger.Info("SheetProcessor", "rectification completed", map[string]interface{}{
		"sheet":       input.Path,
		"input_size":  fmt.Sprintf("%dx%d", input.Width, input.Height),
		"output_size": fmt.Sprintf("%dx%d", processed.Width, processed.Height),
		"mode":        detection.Mode.String(),
		"avg_score":   detection.AvgScore,
	})

	return processed, detection, nil
}
