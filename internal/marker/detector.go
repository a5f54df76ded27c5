package marker

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"omr-rectify/internal/diag"
	"omr-rectify/internal/imgproc"
	"omr-rectify/internal/logger"

	"gocv.io/x/gocv"
)

const component = "MarkerDetector"

// Overlay colors for diagnostic output.
var (
	markerRectColor = color.RGBA{R: 255, G: 130, B: 0, A: 255}
	erodedRectColor = color.RGBA{R: 245, G: 245, B: 245, A: 255}
	normalRectColor = color.RGBA{R: 180, G: 180, B: 180, A: 255}
	quadLineColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Detector locates the four corner markers on scanned sheets and produces
// perspective-corrected images in the template's coordinate frame. A
// Detector is immutable after construction and safe to share across
// concurrent workers.
type Detector struct {
	opts     Options
	dims     Dimensions
	mode     SearchMode
	template *Template
	logger   logger.Logger
	sink     diag.Sink
}

func NewDetector(tpl *Template, opts Options, dims Dimensions, log logger.Logger, sink diag.Sink) (*Detector, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid marker options: %w", err)
	}

	if tpl == nil || tpl.Mat().Empty() {
		return nil, fmt.Errorf("marker template is empty")
	}

	mode, err := opts.Mode()
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.Nop{}
	}
	if sink == nil {
		sink = diag.NullSink{}
	}

	return &Detector{
		opts:     opts,
		dims:     dims,
		mode:     mode,
		template: tpl,
		logger:   log,
		sink:     sink,
	}, nil
}

func (d *Detector) Mode() SearchMode {
	return d.mode
}

// Rectify runs the full per-sheet pipeline: preprocess, scale search,
// marker localization, perspective warp. Detection failures are returned
// as errors wrapping the package sentinels and are local to this sheet;
// the caller decides whether to continue the batch. The returned Mat is a
// fresh buffer independent of the input.
func (d *Detector) Rectify(ctx context.Context, sheet gocv.Mat, name string) (gocv.Mat, *Detection, error) {
	if sheet.Empty() {
		return gocv.Mat{}, nil, fmt.Errorf("empty sheet image: %s", name)
	}

	working := d.prepareWorking(sheet)
	defer working.Close()

	if err := ctx.Err(); err != nil {
		return gocv.Mat{}, nil, err
	}

	scale, allMax, err := bestScale(working, d.template.mat, d.opts)
	if err != nil {
		d.logger.Warning(component, "marker scale search failed, check preprocessing and thresholds", map[string]interface{}{
			"sheet": name,
			"error": err.Error(),
		})
		d.sink.Show("no-scale "+name, working, 1)
		return gocv.Mat{}, nil, err
	}

	optimal := imgproc.ResizeToHeight(d.template.mat, int(float64(d.template.Height())*scale))
	defer optimal.Close()

	var det *Detection
	if d.mode == SearchGlobal {
		det, err = d.localizeGlobal(ctx, working, optimal, scale)
	} else {
		det, err = d.localizeQuadrants(ctx, working, optimal, scale, allMax)
	}
	if err != nil {
		d.logger.Error(component, err, map[string]interface{}{
			"sheet":     name,
			"scale":     scale,
			"image_max": allMax,
		})
		d.sink.Show("no-markers "+name, working, 1)
		return gocv.Mat{}, nil, err
	}

	d.logger.Info(component, "markers located", map[string]interface{}{
		"sheet":     name,
		"mode":      det.Mode.String(),
		"scale":     det.Scale,
		"avg_score": det.AvgScore,
	})

	rectified, err := imgproc.FourPointTransform(sheet, det.Centers[:])
	if err != nil {
		d.logger.Error(component, err, map[string]interface{}{"sheet": name})
		return gocv.Mat{}, nil, fmt.Errorf("perspective transform failed: %w", err)
	}

	d.emitOverlays(name, sheet, working, rectified, det)

	return rectified, det, nil
}

// prepareWorking builds the image the matcher searches: grayscale,
// optionally erode-subtracted, then intensity-normalized. The marker
// template received the same treatment during preparation, so both sides
// live in the same representation.
func (d *Detector) prepareWorking(sheet gocv.Mat) gocv.Mat {
	gray := imgproc.ToGray(sheet)
	defer gray.Close()

	if !d.opts.ApplyErodeSubtract {
		return imgproc.Normalize(gray)
	}

	sub := imgproc.ErodeSubtract(gray, erosionKernelSize, erosionIterations)
	defer sub.Close()
	return imgproc.Normalize(sub)
}

// emitOverlays hands annotated copies to the diagnostic sink: the
// original sheet with the accepted marker boxes, and the working image
// next to the rectified result. Overlays are drawn on clones so the
// pipeline's buffers stay untouched.
func (d *Detector) emitOverlays(name string, sheet, working, rectified gocv.Mat, det *Detection) {
	if !d.sink.Enabled(2) {
		return
	}

	overlay := sheet.Clone()
	defer overlay.Close()
	workCopy := working.Clone()
	defer workCopy.Close()

	if d.mode != SearchGlobal {
		midW := workCopy.Cols() / quadrantWidthDivision
		midH := workCopy.Rows() / quadrantHeightDivision
		gocv.Line(&workCopy, image.Pt(midW, 0), image.Pt(midW, workCopy.Rows()), quadLineColor, 2)
		gocv.Line(&workCopy, image.Pt(0, midH), image.Pt(workCopy.Cols(), midH), quadLineColor, 2)
	}

	workColor := normalRectColor
	if d.opts.ApplyErodeSubtract {
		workColor = erodedRectColor
	}

	for _, r := range det.Rects {
		gocv.Rectangle(&overlay, r, markerRectColor, 2)
		gocv.Rectangle(&workCopy, r, workColor, 4)
	}

	d.sink.Show("markers "+name, overlay, 2)
	d.sink.ShowPair("warped "+name, workCopy, rectified, 2)
}
