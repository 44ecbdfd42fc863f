package viewer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"dicomview3d/internal/models"
	"dicomview3d/pkg/filter"
	"dicomview3d/pkg/window"
)

// makeSeries builds n synthetic 8x8 slices 1mm apart. Each slice carries a
// bright 4x4 block (stored value 3071, far above any reasonable window)
// on a black background (stored value 0, -1024 HU).
func makeSeries(n int) []*models.SliceSample {
	samples := make([]*models.SliceSample, n)
	for i := range samples {
		s := &models.SliceSample{
			Rows: 8, Columns: 8,
			BitsAllocated: 16, BitsStored: 12, HighBit: 11,
			RescaleSlope: 1, RescaleIntercept: -1024,
			PixelSpacing:  1,
			SliceLocation: float64(i),
			WindowWidth:   400, WindowCenter: 40,
			PixelData: make([]byte, 8*8*2),
		}
		for y := 2; y < 6; y++ {
			for x := 2; x < 6; x++ {
				binary.LittleEndian.PutUint16(s.PixelData[(y*8+x)*2:], 3071)
			}
		}
		samples[i] = s
	}
	return samples
}

func newTestViewer(t *testing.T, n int) *Viewer {
	t.Helper()
	v, err := New(makeSeries(n), 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return v
}

// TestNewViewerDefaults verifies the initial window comes from the first
// slice.
func TestNewViewerDefaults(t *testing.T) {
	v := newTestViewer(t, 5)

	if got := v.Window(); got.Width != 400 || got.Center != 40 {
		t.Errorf("Expected initial window (400, 40), got (%d, %d)", got.Width, got.Center)
	}
	if v.SliceCount() != 5 {
		t.Errorf("Expected 5 slices, got %d", v.SliceCount())
	}
}

// TestRenderSliceCaching verifies repeat renders hit the cache and window
// changes drop it wholesale.
func TestRenderSliceCaching(t *testing.T) {
	v := newTestViewer(t, 5)

	if _, err := v.RenderSlice(0, nil); err != nil {
		t.Fatalf("RenderSlice failed: %v", err)
	}
	if _, err := v.RenderSlice(0, nil); err != nil {
		t.Fatalf("RenderSlice failed: %v", err)
	}
	hits, misses, _ := v.CacheStats()
	if hits != 1 || misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d hits and %d misses", hits, misses)
	}

	// Changing the window invalidates every cached raster.
	if err := v.SetWindow(500, 50); err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}
	if _, err := v.RenderSlice(0, nil); err != nil {
		t.Fatalf("RenderSlice failed: %v", err)
	}
	hits, misses, _ = v.CacheStats()
	if hits != 1 || misses != 2 {
		t.Errorf("Expected cache dropped after SetWindow: %d hits, %d misses", hits, misses)
	}
}

// TestRenderSliceOverrideBypassesCache verifies an explicit window
// override never reads or writes the cache.
func TestRenderSliceOverrideBypassesCache(t *testing.T) {
	v := newTestViewer(t, 5)

	if _, err := v.RenderSlice(1, &window.Window{Width: 80, Center: 40}); err != nil {
		t.Fatalf("RenderSlice failed: %v", err)
	}
	hits, misses, _ := v.CacheStats()
	if hits != 0 || misses != 0 {
		t.Errorf("Override render touched the cache: %d hits, %d misses", hits, misses)
	}
}

// TestRenderSliceErrors verifies index and window validation.
func TestRenderSliceErrors(t *testing.T) {
	v := newTestViewer(t, 3)

	if _, err := v.RenderSlice(3, nil); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for out-of-range index, got %v", err)
	}
	if _, err := v.RenderSlice(-1, nil); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for negative index, got %v", err)
	}
	if err := v.SetWindow(0, 40); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for zero width, got %v", err)
	}
}

// TestRenderGlobalView verifies the projection keeps the brightest value
// per pixel.
func TestRenderGlobalView(t *testing.T) {
	v := newTestViewer(t, 4)

	mip, err := v.RenderGlobalView()
	if err != nil {
		t.Fatalf("RenderGlobalView failed: %v", err)
	}

	if g := mip.Gray(3, 3); g != 255 {
		t.Errorf("Expected saturated block pixel in projection, got %.0f", g)
	}
	if g := mip.Gray(0, 0); g != 0 {
		t.Errorf("Expected dark background in projection, got %.0f", g)
	}
}

// TestRenderFiltered verifies the filter stage runs on the rendered
// raster.
func TestRenderFiltered(t *testing.T) {
	v := newTestViewer(t, 3)

	edges, err := v.RenderFiltered(1, filter.Edge, nil)
	if err != nil {
		t.Fatalf("RenderFiltered failed: %v", err)
	}
	if g := edges.Gray(2, 3); g == 0 {
		t.Errorf("Expected edge response at the block boundary")
	}
	if g := edges.Gray(0, 0); g != 0 {
		t.Errorf("Expected zero border, got %.0f", g)
	}
}

// TestBuildVolumeAndExtract runs the whole assembly and MPR path.
func TestBuildVolumeAndExtract(t *testing.T) {
	v := newTestViewer(t, 5)
	ctx := context.Background()

	// Extraction before assembly is a well-defined unavailable state.
	if _, err := v.ExtractObliquePlane(ctx, 0, 0, 0, 0); !errors.Is(err, models.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable before BuildVolume, got %v", err)
	}

	pc, err := v.BuildVolume(ctx, 0, 4, nil, nil)
	if err != nil {
		t.Fatalf("BuildVolume failed: %v", err)
	}
	if pc.VertexCount() != 80 { // 4x4 block on 5 slices
		t.Errorf("Expected 80 vertices, got %d", pc.VertexCount())
	}

	axial, err := v.ExtractAxial(ctx, 0)
	if err != nil {
		t.Fatalf("ExtractAxial failed: %v", err)
	}
	found := false
	for y := 0; y < 8 && !found; y++ {
		for x := 0; x < 8; x++ {
			if axial.Gray(x, y) > 0 {
				found = true
				break
			}
		}
	}
	if !found {
		t.Errorf("Axial cut through the block produced no pixels")
	}

	visible, err := v.SetClipRange(1, 3)
	if err != nil {
		t.Fatalf("SetClipRange failed: %v", err)
	}
	if len(visible) != 48 {
		t.Errorf("Expected 48 visible indices for slices 1..3, got %d", len(visible))
	}
}

// TestBuildVolumeDefaultRange verifies the heuristic fixed-fraction range
// is applied when bounds are negative.
func TestBuildVolumeDefaultRange(t *testing.T) {
	v := newTestViewer(t, 20)

	pc, err := v.BuildVolume(context.Background(), -1, -1, nil, nil)
	if err != nil {
		t.Fatalf("BuildVolume failed: %v", err)
	}

	// Slices 2..17 of 20: 16 slices, 16 block pixels each.
	if pc.VertexCount() != 16*16 {
		t.Errorf("Expected %d vertices from the default range, got %d", 16*16, pc.VertexCount())
	}
}

// TestBuildVolumeInvalidRange verifies range validation.
func TestBuildVolumeInvalidRange(t *testing.T) {
	v := newTestViewer(t, 5)

	if _, err := v.BuildVolume(context.Background(), 3, 1, nil, nil); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for inverted range, got %v", err)
	}
	if _, err := v.BuildVolume(context.Background(), 0, 17, nil, nil); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for range past the stack, got %v", err)
	}
}

// TestSetClipRangeBounds verifies clip bounds are validated against the
// slice count.
func TestSetClipRangeBounds(t *testing.T) {
	v := newTestViewer(t, 5)
	if _, err := v.BuildVolume(context.Background(), 0, 4, nil, nil); err != nil {
		t.Fatalf("BuildVolume failed: %v", err)
	}

	if _, err := v.SetClipRange(0, 5); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for back past the last slice, got %v", err)
	}
	if _, err := v.SetClipRange(0, 1<<30); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for huge back bound, got %v", err)
	}
	if _, err := v.SetClipRange(-1, 3); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for negative front, got %v", err)
	}
	if _, err := v.SetClipRange(0, 4); err != nil {
		t.Errorf("Full range should be valid, got %v", err)
	}
}

// TestAutoWindow verifies optimizer-derived settings are applied.
func TestAutoWindow(t *testing.T) {
	v := newTestViewer(t, 3)

	win, err := v.AutoWindow(1, window.DefaultLowPercentile, window.DefaultHighPercentile)
	if err != nil {
		t.Fatalf("AutoWindow failed: %v", err)
	}
	if got := v.Window(); got != win {
		t.Errorf("AutoWindow returned (%d,%d) but viewer has (%d,%d)",
			win.Width, win.Center, got.Width, got.Center)
	}
}
