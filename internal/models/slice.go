// Package models defines the core data types shared across the dicomview3d
// pipeline: raw per-slice sample records, display rasters, the sparse
// point-cloud representation of the assembled volume, and the sentinel
// errors of the error taxonomy.
package models

import (
	"errors"
	"fmt"
)

// Error sentinels. InvalidArgument conditions indicate a caller bug and are
// surfaced immediately; Unavailable conditions are recovered locally with a
// well-defined fallback by whichever component detects them.
var (
	// ErrInvalidArgument marks precondition violations such as malformed
	// sample buffers, non-positive window widths, or out-of-range indices.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable marks recoverable absence of data, e.g. no point-cloud
	// entries near a requested plane or an empty intensity histogram.
	ErrUnavailable = errors.New("data unavailable")
)

// SliceSample holds one slice's raw sample buffer together with the
// acquisition metadata needed to turn stored values into physical
// intensities and to place the slice along the stack axis.
type SliceSample struct {
	// Rows and Columns are the pixel grid dimensions.
	Rows    int
	Columns int

	// BitsAllocated, BitsStored and HighBit describe the sample bit layout.
	// BitsStored <= BitsAllocated <= 16.
	BitsAllocated int
	BitsStored    int
	HighBit       int

	// PixelRepresentation is 0 for unsigned samples, 1 for two's-complement
	// signed samples.
	PixelRepresentation int

	// RescaleSlope and RescaleIntercept convert stored values to the
	// physical intensity scale (Hounsfield units for CT).
	RescaleSlope     float64
	RescaleIntercept float64

	// PixelSpacing is the in-plane size of one pixel in mm, assumed
	// isotropic.
	PixelSpacing float64

	// SliceLocation is the position of this slice along the stack axis
	// in mm.
	SliceLocation float64

	// WindowWidth and WindowCenter are the default display parameters
	// carried by the slice.
	WindowWidth  int
	WindowCenter int

	// PixelData is the raw sample buffer: two bytes per sample,
	// little-endian, row-major. Length must equal Rows*Columns*2.
	PixelData []byte
}

// Validate checks the sample invariants. It returns an ErrInvalidArgument
// wrapped error describing the first violation found.
func (s *SliceSample) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil sample", ErrInvalidArgument)
	}
	if s.Rows <= 0 || s.Columns <= 0 {
		return fmt.Errorf("%w: sample grid %dx%d", ErrInvalidArgument, s.Columns, s.Rows)
	}
	if s.BitsStored > s.BitsAllocated || s.BitsAllocated > 16 || s.BitsStored < 1 {
		return fmt.Errorf("%w: bit layout stored=%d allocated=%d", ErrInvalidArgument, s.BitsStored, s.BitsAllocated)
	}
	if want := s.Rows * s.Columns * 2; len(s.PixelData) != want {
		return fmt.Errorf("%w: pixel buffer is %d bytes, want %d", ErrInvalidArgument, len(s.PixelData), want)
	}
	return nil
}

// Raster is an 8-bit-per-channel RGBA image buffer. Grayscale content is
// replicated across the three color channels with full-opacity alpha.
// A Raster is owned by whichever component produced it; use Clone before
// handing one across a caching or concurrency boundary.
type Raster struct {
	Width  int
	Height int

	// Pix is the row-major pixel buffer, 4 bytes per pixel (R,G,B,A).
	Pix []byte
}

// NewRaster allocates a zeroed raster of the given dimensions.
func NewRaster(width, height int) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// Empty reports whether the raster is nil or degenerate.
func (r *Raster) Empty() bool {
	return r == nil || r.Width <= 0 || r.Height <= 0 || len(r.Pix) < r.Width*r.Height*4
}

// Clone returns a deep copy of the raster.
func (r *Raster) Clone() *Raster {
	if r == nil {
		return nil
	}
	out := &Raster{Width: r.Width, Height: r.Height, Pix: make([]byte, len(r.Pix))}
	copy(out.Pix, r.Pix)
	return out
}

// SetGray writes the same 8-bit value to the R, G and B channels of the
// pixel at (x, y) and sets alpha to 255.
func (r *Raster) SetGray(x, y int, v byte) {
	i := (y*r.Width + x) * 4
	r.Pix[i] = v
	r.Pix[i+1] = v
	r.Pix[i+2] = v
	r.Pix[i+3] = 0xFF
}

// Gray returns the mean of the R, G and B channels of the pixel at (x, y)
// as a float64 in [0, 255].
func (r *Raster) Gray(x, y int) float64 {
	i := (y*r.Width + x) * 4
	return (float64(r.Pix[i]) + float64(r.Pix[i+1]) + float64(r.Pix[i+2])) / 3.0
}
