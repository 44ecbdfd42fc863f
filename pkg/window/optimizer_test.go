package window

import (
	"testing"

	"dicomview3d/internal/models"
)

// TestOptimizeAllZero verifies the fallback window on a raster with no
// usable intensity information.
func TestOptimizeAllZero(t *testing.T) {
	r := models.NewRaster(16, 16) // all channels zero

	win := Optimize(r, DefaultLowPercentile, DefaultHighPercentile)

	if win.Width != 400 || win.Center != 40 {
		t.Errorf("Expected fallback window (400, 40), got (%d, %d)", win.Width, win.Center)
	}
}

// TestOptimizeEmptyRaster verifies a degenerate raster also yields the
// fallback rather than a panic or error.
func TestOptimizeEmptyRaster(t *testing.T) {
	win := Optimize(&models.Raster{}, DefaultLowPercentile, DefaultHighPercentile)
	if win != Fallback {
		t.Errorf("Expected fallback window for empty raster, got (%d, %d)", win.Width, win.Center)
	}
}

// TestOptimizeUniform verifies that a single-intensity raster produces a
// window centered on that intensity with the minimum clamped width.
func TestOptimizeUniform(t *testing.T) {
	r := models.NewRaster(16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			r.SetGray(x, y, 100)
		}
	}

	win := Optimize(r, DefaultLowPercentile, DefaultHighPercentile)

	// Both percentile walks land on bin 100, so the raw width is 0 and
	// clamps up to the 50 minimum; the center stays at the bin.
	if win.Width != 50 {
		t.Errorf("Expected clamped width 50, got %d", win.Width)
	}
	if win.Center != 100 {
		t.Errorf("Expected center 100, got %d", win.Center)
	}
}

// TestOptimizeBimodal verifies the percentile walk finds the bulk of a
// two-population histogram and ignores the excluded zero pixels.
func TestOptimizeBimodal(t *testing.T) {
	r := models.NewRaster(20, 20)
	// Half the rows dark (intensity 50), half bright (intensity 200);
	// the first row stays zero and must not count.
	for y := 1; y < 20; y++ {
		v := byte(50)
		if y >= 10 {
			v = 200
		}
		for x := 0; x < 20; x++ {
			r.SetGray(x, y, v)
		}
	}

	win := Optimize(r, DefaultLowPercentile, DefaultHighPercentile)

	if win.Width != 150 {
		t.Errorf("Expected width 150 between the two populations, got %d", win.Width)
	}
	if win.Center != 125 {
		t.Errorf("Expected center 125, got %d", win.Center)
	}
}

// TestOptimizeCenterClamp verifies the upper center clamp. The lower clamp
// at 0 silently discards negative-HU presets; that matches the observed
// upstream behavior and is covered by the same bounds here.
func TestOptimizeCenterClamp(t *testing.T) {
	r := models.NewRaster(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			r.SetGray(x, y, 255)
		}
	}

	win := Optimize(r, DefaultLowPercentile, DefaultHighPercentile)

	if win.Center < 0 || win.Center > 800 {
		t.Errorf("Center %d outside clamp range [0, 800]", win.Center)
	}
	if win.Width < 50 || win.Width > 4000 {
		t.Errorf("Width %d outside clamp range [50, 4000]", win.Width)
	}
}

// TestOptimizeBadPercentiles verifies nonsense cutoffs fall back to the
// defaults instead of breaking the walk.
func TestOptimizeBadPercentiles(t *testing.T) {
	r := models.NewRaster(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			r.SetGray(x, y, 80)
		}
	}

	win := Optimize(r, -1, 7)

	if win.Center != 80 {
		t.Errorf("Expected center 80 with default cutoffs, got %d", win.Center)
	}
}
