package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"omr-rectify/internal/logger"
	"omr-rectify/internal/marker"
	"omr-rectify/internal/opencv/memory"

	"gocv.io/x/gocv"
)

// Batch fixtures: white 1000x1400 sheets with the fiducial pattern, one
// marker inset into each corner.

func drawMarkerPattern(dst *gocv.Mat, x, y, size int) {
	margin := size / 5
	gocv.Rectangle(dst, image.Rect(x+margin, y+margin, x+size-margin, y+size-margin), color.RGBA{A: 255}, -1)
}

func writeSheetPNG(t *testing.T, path string, withMarkers bool) {
	t.Helper()

	sheet := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 1400, 1000, gocv.MatTypeCV8UC1)
	defer sheet.Close()

	if withMarkers {
		for _, p := range [][2]int{{20, 20}, {930, 20}, {20, 1330}, {930, 1330}} {
			drawMarkerPattern(&sheet, p[0], p[1], 50)
		}
	} else {
		// Structure that must not match the marker.
		gocv.Rectangle(&sheet, image.Rect(100, 100, 160, 106), color.RGBA{A: 255}, -1)
		gocv.Rectangle(&sheet, image.Rect(400, 900, 460, 906), color.RGBA{A: 255}, -1)
	}

	if ok := gocv.IMWrite(path, sheet); !ok {
		t.Fatalf("could not write fixture %s", path)
	}
}

func batchDetector(t *testing.T) (*marker.Detector, marker.Options, marker.Dimensions) {
	t.Helper()

	opts := marker.DefaultOptions()
	opts.ApplyErodeSubtract = false
	opts.SearchMode = "global"
	opts.MinMatchingThreshold = 0.5

	// Fixtures are generated at processing size, so no rescale happens.
	dims := marker.Dimensions{ProcessingWidth: 1000, ProcessingHeight: 1400, DisplayWidth: 640}

	raw := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 50, 50, gocv.MatTypeCV8UC1)
	defer raw.Close()
	drawMarkerPattern(&raw, 0, 0, 50)

	tpl := marker.PrepareTemplate(raw, opts, dims)
	t.Cleanup(tpl.Close)

	d, err := marker.NewDetector(tpl, opts, dims, nil, nil)
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	return d, opts, dims
}

func TestCoordinatorRunBatch(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	good1 := filepath.Join(inDir, "sheet_01.png")
	good2 := filepath.Join(inDir, "sheet_02.png")
	bad := filepath.Join(inDir, "sheet_03.png")
	writeSheetPNG(t, good1, true)
	writeSheetPNG(t, good2, true)
	writeSheetPNG(t, bad, false)

	detector, opts, dims := batchDetector(t)
	memMgr := memory.NewManager(logger.Nop{})
	t.Cleanup(memMgr.Cleanup)

	c := NewCoordinator(detector, opts, dims, memMgr, logger.Nop{})
	stats := c.Run(context.Background(), []string{good1, good2, bad}, outDir, 2)

	if stats.Processed != 2 || stats.Failed != 1 {
		t.Errorf("stats = %d processed, %d failed, want 2 and 1", stats.Processed, stats.Failed)
	}
	if stats.MeanScore() < 0.5 {
		t.Errorf("mean score = %v, want above the matching threshold", stats.MeanScore())
	}

	for _, name := range []string{"sheet_01.png", "sheet_02.png"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("rectified output missing: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "sheet_03.png")); err == nil {
		t.Error("failed sheet must not produce output")
	}
}

func TestProcessFileDetectionFailureIsSentinel(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	bad := filepath.Join(inDir, "no_markers.png")
	writeSheetPNG(t, bad, false)

	detector, opts, dims := batchDetector(t)
	memMgr := memory.NewManager(logger.Nop{})
	t.Cleanup(memMgr.Cleanup)

	c := NewCoordinator(detector, opts, dims, memMgr, logger.Nop{})
	err := c.ProcessFile(context.Background(), bad, filepath.Join(outDir, "no_markers.png"))
	if err == nil {
		t.Fatal("expected detection failure")
	}
	if !isDetectionFailure(err) {
		t.Errorf("error should wrap a marker sentinel, got %v", err)
	}
}

func TestProcessFileMissingInput(t *testing.T) {
	detector, opts, dims := batchDetector(t)
	memMgr := memory.NewManager(logger.Nop{})
	t.Cleanup(memMgr.Cleanup)

	c := NewCoordinator(detector, opts, dims, memMgr, logger.Nop{})
	err := c.ProcessFile(context.Background(), "/does/not/exist.png", filepath.Join(t.TempDir(), "out.png"))
	if err == nil {
		t.Fatal("expected load error")
	}
	if isDetectionFailure(err) {
		t.Error("load errors are not detection failures")
	}
	if errors.Is(err, marker.ErrScaleBelowThreshold) {
		t.Error("unexpected sentinel in load error")
	}

	if got := c.Stats(); got.Failed != 1 {
		t.Errorf("failed count = %d, want 1", got.Failed)
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	detector, opts, dims := batchDetector(t)
	memMgr := memory.NewManager(logger.Nop{})
	t.Cleanup(memMgr.Cleanup)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCoordinator(detector, opts, dims, memMgr, logger.Nop{})
	files := []string{"a.png", "b.png", "c.png"}
	stats := c.Run(ctx, files, t.TempDir(), 1)

	// A canceled context stops dispatch before any file is touched.
	if stats.Processed != 0 {
		t.Errorf("processed = %d, want 0", stats.Processed)
	}
}