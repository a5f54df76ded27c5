package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"

	"omr-rectify/internal/diag"
	"omr-rectify/internal/logger"
	"omr-rectify/internal/marker"
	"omr-rectify/internal/opencv/memory"
	"omr-rectify/internal/pipeline"
)

func main() {
	var optionsPath string
	var markerPath string
	var outputDir string
	var debugDir string
	var logLevel string
	var showLevel int
	var workers int

	flag.StringVar(&optionsPath, "options", "", "Marker options JSON (the template's preprocessor block)")
	flag.StringVar(&markerPath, "marker", "", "Marker image path (overrides relativePath from the options file)")
	flag.StringVar(&outputDir, "output-dir", "", "Output directory for rectified sheets")
	flag.StringVar(&debugDir, "debug-dir", "", "Directory for diagnostic images")
	flag.IntVar(&showLevel, "show-level", 0, "Diagnostic image verbosity, 0 disables")
	flag.IntVar(&workers, "workers", runtime.NumCPU(), "Sheets processed concurrently")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] sheet_files_or_dirs...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	if outputDir == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -output-dir is required")
		os.Exit(2)
	}

	log := logger.NewConsoleLogger(logger.ParseLevel(logLevel))

	files, err := expandInputs(flag.Args())
	if err != nil {
		log.Error("Main", err, nil)
		os.Exit(2)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "ERROR: no input images found")
		os.Exit(2)
	}

	opts := marker.DefaultOptions()
	if optionsPath != "" {
		opts, err = marker.LoadOptions(optionsPath)
		if err != nil {
			log.Error("Main", err, map[string]interface{}{"options": optionsPath})
			os.Exit(2)
		}
	}
	dims := marker.DefaultDimensions()

	if markerPath == "" {
		base := "."
		if optionsPath != "" {
			base = filepath.Dir(optionsPath)
		}
		markerPath = filepath.Join(base, opts.RelativePath)
	}

	// A missing marker file is a configuration error for the whole run,
	// unlike per-sheet detection failures.
	tpl, err := marker.LoadTemplate(markerPath, opts, dims)
	if err != nil {
		log.Error("Main", err, map[string]interface{}{"marker": markerPath})
		os.Exit(31)
	}
	defer tpl.Close()

	var sink diag.Sink = diag.NullSink{}
	if showLevel > 0 && debugDir != "" {
		sink, err = diag.NewSaveSink(debugDir, showLevel, dims.DisplayWidth, log)
		if err != nil {
			log.Error("Main", err, map[string]interface{}{"debug_dir": debugDir})
			os.Exit(2)
		}
	}

	memMgr := memory.NewManager(log)
	defer memMgr.Cleanup()

	detector, err := marker.NewDetector(tpl, opts, dims, log, sink)
	if err != nil {
		log.Error("Main", err, nil)
		os.Exit(2)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Error("Main", err, map[string]interface{}{"output_dir": outputDir})
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := pipeline.NewCoordinator(detector, opts, dims, memMgr, log)
	stats := coordinator.Run(ctx, files, outputDir, workers)

	log.Info("Main", "batch finished", map[string]interface{}{
		"processed":  stats.Processed,
		"failed":     stats.Failed,
		"mean_score": stats.MeanScore(),
	})

	if stats.Processed == 0 && stats.Failed > 0 {
		os.Exit(1)
	}
}

func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %q: %w", arg, err)
		}

		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		dirFiles, err := expandDirectory(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to list directory %q: %w", arg, err)
		}
		files = append(files, dirFiles...)
	}
	return files, nil
}

func expandDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isImageFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp":
		return true
	default:
		return false
	}
}
