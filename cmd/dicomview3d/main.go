package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dicomview3d/internal/logging"
	"dicomview3d/internal/models"
	"dicomview3d/pkg/config"
	"dicomview3d/pkg/dicomio"
	"dicomview3d/pkg/export"
	"dicomview3d/pkg/filter"
	"dicomview3d/pkg/viewer"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing the DICOM series")
	configPath := flag.String("config", "dicomview3d.yaml", "Configuration file")
	outputDir := flag.String("output", "rendered", "Directory to save rendered images")
	format := flag.String("format", "png", "Output image format (png, jpg, tiff, bmp)")
	sliceIndex := flag.Int("slice", -1, "Render a single slice by index")
	winWidth := flag.Int("window", 0, "Window width override")
	winCenter := flag.Int("center", 0, "Window center override")
	preset := flag.String("preset", "", "Window preset by name from the config")
	autoWindow := flag.Bool("auto-window", false, "Derive the window from the slice histogram")
	filterName := flag.String("filter", "none", "Convolution filter (none, edge, sharpen, smooth)")
	globalView := flag.Bool("global", false, "Render the whole-stack maximum intensity projection")
	buildVolume := flag.Bool("volume", false, "Assemble the 3D point cloud")
	minSlice := flag.Int("min-slice", -1, "First slice of the volume range (default: heuristic)")
	maxSlice := flag.Int("max-slice", -1, "Last slice of the volume range (default: heuristic)")
	mpr := flag.String("mpr", "", "Oblique plane as \"x,z,angleA,angleB\" (radians)")
	axial := flag.Float64("axial", -2, "Axial cut position in [-0.5, 0.5]")
	sagittal := flag.Float64("sagittal", -2, "Sagittal cut position in [-0.5, 0.5]")
	coronal := flag.Bool("coronal", false, "Coronal cut through the midline")
	clip := flag.String("clip", "", "Clip range as \"front,back\" slice indices")
	workers := flag.Int("workers", 0, "Parallel workers for volume assembly (default: config)")
	flag.Parse()

	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.SetLogger(&cfg.Log)
	defer logging.Shutdown()

	if *workers <= 0 {
		*workers = cfg.Processing.Workers
	}

	fmt.Println("Loading DICOM series...")
	startTime := time.Now()
	samples, err := dicomio.LoadSeries(*inputDir)
	if err != nil {
		log.Fatalf("Failed to load series: %v", err)
	}
	fmt.Printf("Loaded %d slices (%dx%d) in %.2f seconds\n",
		len(samples), samples[0].Columns, samples[0].Rows, time.Since(startTime).Seconds())

	v, err := viewer.New(samples, *workers)
	if err != nil {
		log.Fatalf("Failed to create viewer: %v", err)
	}

	// Resolve window settings: preset, explicit override, or slice defaults.
	if *preset != "" {
		p, ok := cfg.Preset(*preset)
		if !ok {
			log.Fatalf("Unknown window preset %q", *preset)
		}
		*winWidth, *winCenter = p.Width, p.Center
	}
	if *winWidth > 0 {
		if err := v.SetWindow(*winWidth, *winCenter); err != nil {
			log.Fatalf("Failed to set window: %v", err)
		}
	}
	if *autoWindow {
		idx := *sliceIndex
		if idx < 0 {
			idx = v.SliceCount() / 2
		}
		win, err := v.AutoWindow(idx, cfg.Processing.LowPercentile, cfg.Processing.HighPercentile)
		if err != nil {
			log.Fatalf("Auto-window failed: %v", err)
		}
		fmt.Printf("Auto window: width=%d center=%d\n", win.Width, win.Center)
	}

	kind, err := filter.ParseKind(*filterName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	quality := cfg.Export.JPEGQuality

	save := func(r *models.Raster, err error, name string) {
		if err != nil {
			log.Fatalf("Failed to produce %s: %v", name, err)
		}
		path := outPath(*outputDir, name, *format)
		if err := export.SaveRaster(r, path, quality); err != nil {
			log.Fatalf("Failed to save %s: %v", path, err)
		}
		fmt.Printf("Saved %s\n", path)
	}

	if *sliceIndex >= 0 {
		r, err := v.RenderFiltered(*sliceIndex, kind, nil)
		save(r, err, fmt.Sprintf("slice_%03d", *sliceIndex))
	}

	if *globalView {
		r, err := v.RenderGlobalView()
		save(r, err, "global_mip")
	}

	needVolume := *buildVolume || *mpr != "" || *axial >= -1 || *sagittal >= -1 || *coronal || *clip != ""
	if needVolume {
		fmt.Println("Assembling volume point cloud...")
		startTime = time.Now()
		pc, err := v.BuildVolume(ctx, *minSlice, *maxSlice, nil, func(done, total int) {
			fmt.Printf("\rProcessing slices: %.1f%% complete", float64(done)/float64(total)*100)
		})
		if err != nil {
			log.Fatalf("\nVolume assembly failed: %v", err)
		}
		fmt.Printf("\nAssembled %d points in %.2f seconds\n", pc.VertexCount(), time.Since(startTime).Seconds())
	}

	if *mpr != "" {
		x, z, a, b, err := parsePlane(*mpr)
		if err != nil {
			log.Fatalf("Invalid -mpr value: %v", err)
		}
		r, err := v.ExtractObliquePlane(ctx, x, z, a, b)
		save(r, err, "mpr_oblique")
	}

	if *axial >= -1 {
		r, err := v.ExtractAxial(ctx, *axial)
		save(r, err, "mpr_axial")
	}
	if *sagittal >= -1 {
		r, err := v.ExtractSagittal(ctx, *sagittal)
		save(r, err, "mpr_sagittal")
	}
	if *coronal {
		r, err := v.ExtractCoronal(ctx)
		save(r, err, "mpr_coronal")
	}

	if *clip != "" {
		front, back, err := parseClip(*clip)
		if err != nil {
			log.Fatalf("Invalid -clip value: %v", err)
		}
		visible, err := v.SetClipRange(front, back)
		if err != nil {
			log.Fatalf("Clip failed: %v", err)
		}
		fmt.Printf("Clip [%d, %d]: %d visible indices\n", front, back, len(visible))
	}

	hits, misses, evictions := v.CacheStats()
	fmt.Printf("Raster cache: %d hits, %d misses, %d evictions\n", hits, misses, evictions)

	win := v.Window()
	fmt.Printf("Window settings: width=%d center=%d\n", win.Width, win.Center)
}

func outPath(dir, name, format string) string {
	return filepath.Join(dir, name+"."+strings.TrimPrefix(format, "."))
}

// parsePlane parses "x,z,angleA,angleB".
func parsePlane(s string) (x, z, a, b float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("want 4 comma-separated values, have %d", len(parts))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, 0, err
		}
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

// parseClip parses "front,back".
func parseClip(s string) (front, back int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want 2 comma-separated values, have %d", len(parts))
	}
	front, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	back, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	return front, back, err
}
