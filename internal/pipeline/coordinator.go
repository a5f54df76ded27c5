package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"omr-rectify/internal/logger"
	"omr-rectify/internal/marker"
	"omr-rectify/internal/opencv/memory"
)

// Coordinator drives the batch: load, rectify under a per-sheet deadline,
// save. Sheets are independent, so a bounded worker pool processes them
// concurrently; the prepared marker template is shared read-only.
type Coordinator struct {
	memoryManager *memory.Manager
	logger        logger.Logger
	loader        *imageLoader
	processor     *sheetProcessor
	saver         *imageSaver
	timeout       time.Duration

	mu    sync.Mutex
	stats Stats
}

func NewCoordinator(detector *marker.Detector, opts marker.Options, dims marker.Dimensions, memMgr *memory.Manager, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Nop{}
	}

	c := &Coordinator{
		memoryManager: memMgr,
		logger:        log,
		timeout:       calculateTimeout(detector.Mode(), opts),
	}

	c.loader = &imageLoader{memoryManager: memMgr, logger: log}
	c.processor = &sheetProcessor{
		detector:      detector,
		dims:          dims,
		memoryManager: memMgr,
		logger:        log,
	}
	c.saver = &imageSaver{logger: log}

	log.Info("PipelineCoordinator", "initialized", map[string]interface{}{
		"sheet_timeout": c.timeout,
	})
	return c
}

// ProcessFile runs one sheet end to end. Detection failures are recorded
// and returned but never abort the batch; the caller may inspect them
// with errors.Is against the marker package sentinels.
func (c *Coordinator) ProcessFile(ctx context.Context, inPath, outPath string) error {
	input, err := c.loader.LoadFromPath(inPath)
	if err != nil {
		c.logger.Error("PipelineCoordinator", err, map[string]interface{}{
			"operation": "load_image",
			"sheet":     inPath,
		})
		c.recordFailure()
		return err
	}
	defer c.memoryManager.ReleaseMat(input.Mat, "loaded_sheet")

	sheetCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	output, detection, err := c.processor.ProcessWithContext(sheetCtx, input)
	if err != nil {
		if isDetectionFailure(err) {
			c.logger.Warning("PipelineCoordinator", "sheet skipped, markers not found", map[string]interface{}{
				"sheet": inPath,
				"error": err.Error(),
			})
		} else {
			c.logger.Error("PipelineCoordinator", err, map[string]interface{}{
				"operation": "process_sheet",
				"sheet":     inPath,
			})
		}
		c.recordFailure()
		return err
	}
	defer c.memoryManager.ReleaseMat(output.Mat, "rectified_sheet")

	if err := c.saver.SaveToPath(outPath, output.Image); err != nil {
		c.recordFailure()
		return fmt.Errorf("failed to save rectified sheet: %w", err)
	}

	c.recordSuccess(detection.AvgScore)

	c.logger.Info("PipelineCoordinator", "sheet processed", map[string]interface{}{
		"sheet":           inPath,
		"output":          outPath,
		"processing_time": time.Since(start),
	})
	return nil
}

// Run processes the files with the given number of workers and returns
// the batch statistics. Per-sheet failures do not stop the run; context
// cancellation does.
func (c *Coordinator) Run(ctx context.Context, files []string, outDir string, workers int) Stats {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				outPath := filepath.Join(outDir, filepath.Base(path))
				// Failures are recorded and logged inside ProcessFile.
				_ = c.ProcessFile(ctx, path, outPath)
			}
		}()
	}

dispatch:
	for _, f := range files {
		select {
		case <-ctx.Done():
			c.logger.Warning("PipelineCoordinator", "batch canceled", map[string]interface{}{
				"remaining": len(files),
			})
			break dispatch
		case jobs <- f:
		}
	}
	close(jobs)
	wg.Wait()

	return c.Stats()
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.stats
	out.Scores = append([]float64(nil), c.stats.Scores...)
	return out
}

func (c *Coordinator) recordSuccess(score float64) {
	c.mu.Lock()
	c.stats.Processed++
	c.stats.Scores = append(c.stats.Scores, score)
	c.mu.Unlock()
}

func (c *Coordinator) recordFailure() {
	c.mu.Lock()
	c.stats.Failed++
	c.mu.Unlock()
}

func isDetectionFailure(err error) bool {
	return errors.Is(err, marker.ErrScaleBelowThreshold) ||
		errors.Is(err, marker.ErrMarkerNotInQuadrant) ||
		errors.Is(err, marker.ErrNotEnoughCandidates)
}
