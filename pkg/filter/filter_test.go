package filter

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"dicomview3d/internal/models"
)

// uniformRaster builds a raster with every pixel at the given gray value.
func uniformRaster(w, h int, v byte) *models.Raster {
	r := models.NewRaster(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r.SetGray(x, y, v)
		}
	}
	return r
}

// TestSmoothKernelNormalized verifies the smoothing weights sum to 1, so
// the filter preserves overall brightness without clamping.
func TestSmoothKernelNormalized(t *testing.T) {
	sum := 0.0
	for _, row := range smoothKernel {
		for _, w := range row {
			sum += w
		}
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("Smooth kernel weights sum to %.12f, want 1.0", sum)
	}
}

// TestSmoothUniformIdempotent verifies smoothing a constant raster leaves
// it unchanged.
func TestSmoothUniformIdempotent(t *testing.T) {
	in := uniformRaster(8, 8, 180)

	out, err := Apply(in, Smooth)
	if err != nil {
		t.Fatalf("Apply(Smooth) failed: %v", err)
	}

	if !bytes.Equal(out.Pix, in.Pix) {
		t.Errorf("Smooth changed a uniform raster")
	}
}

// TestEdgeUniformIsZero verifies the gradient of a constant raster is zero
// everywhere, including the forced-zero border.
func TestEdgeUniformIsZero(t *testing.T) {
	in := uniformRaster(8, 8, 180)

	out, err := Apply(in, Edge)
	if err != nil {
		t.Fatalf("Apply(Edge) failed: %v", err)
	}

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if g := out.Gray(x, y); g != 0 {
				t.Fatalf("Edge output at (%d,%d) is %.1f, want 0", x, y, g)
			}
		}
	}
}

// TestEdgeDetectsStep verifies a vertical step edge produces a response
// along the boundary.
func TestEdgeDetectsStep(t *testing.T) {
	in := models.NewRaster(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x >= 4 {
				in.SetGray(x, y, 200)
			}
		}
	}

	out, err := Apply(in, Edge)
	if err != nil {
		t.Fatalf("Apply(Edge) failed: %v", err)
	}

	if g := out.Gray(4, 4); g == 0 {
		t.Errorf("Expected edge response at the step boundary, got 0")
	}
	if g := out.Gray(1, 4); g != 0 {
		t.Errorf("Expected flat region to stay 0, got %.1f", g)
	}
	if g := out.Gray(0, 0); g != 0 {
		t.Errorf("Expected border pixel forced to 0, got %.1f", g)
	}
}

// TestSharpenUniformUnchanged verifies the sharpening kernel (weights sum
// to 1) is a no-op on constant input.
func TestSharpenUniformUnchanged(t *testing.T) {
	in := uniformRaster(8, 8, 64)

	out, err := Apply(in, Sharpen)
	if err != nil {
		t.Fatalf("Apply(Sharpen) failed: %v", err)
	}

	if !bytes.Equal(out.Pix, in.Pix) {
		t.Errorf("Sharpen changed a uniform raster")
	}
}

// TestSharpenClamps verifies sharpening output stays within byte range on
// high-contrast input.
func TestSharpenClamps(t *testing.T) {
	in := models.NewRaster(5, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if (x+y)%2 == 0 {
				in.SetGray(x, y, 255)
			}
		}
	}

	// The checkerboard drives the raw kernel response far outside
	// [0, 255]; Apply must clamp, and with weights inside the byte range
	// the conversions below stay exact.
	out, err := Apply(in, Sharpen)
	if err != nil {
		t.Fatalf("Apply(Sharpen) failed: %v", err)
	}

	center := out.Gray(2, 2)
	if center != 255 {
		t.Errorf("Expected bright checkerboard center clamped to 255, got %.1f", center)
	}
	if v := out.Gray(2, 1); v != 0 {
		t.Errorf("Expected dark checkerboard neighbor clamped to 0, got %.1f", v)
	}
}

// TestNoneCopies verifies None returns an equal but distinct buffer.
func TestNoneCopies(t *testing.T) {
	in := uniformRaster(4, 4, 10)

	out, err := Apply(in, None)
	if err != nil {
		t.Fatalf("Apply(None) failed: %v", err)
	}

	if !bytes.Equal(out.Pix, in.Pix) {
		t.Errorf("None altered pixel data")
	}
	out.Pix[0] = 99
	if in.Pix[0] == 99 {
		t.Errorf("None returned an aliased buffer, want a copy")
	}
}

// TestApplyInvalidRaster verifies nil and zero-sized rasters are rejected.
func TestApplyInvalidRaster(t *testing.T) {
	if _, err := Apply(nil, Smooth); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil raster, got %v", err)
	}
	if _, err := Apply(&models.Raster{}, Smooth); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for zero-sized raster, got %v", err)
	}
}

// TestParseKind covers the name round-trip used by the CLI.
func TestParseKind(t *testing.T) {
	for _, k := range []Kind{None, Edge, Sharpen, Smooth} {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q) failed: %v", k.String(), err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if _, err := ParseKind("median"); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for unknown filter, got %v", err)
	}
}
