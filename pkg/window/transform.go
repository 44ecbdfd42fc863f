// Package window implements the intensity window/level stage: conversion of
// raw slice samples into displayable 8-bit grayscale rasters, and automatic
// derivation of window parameters from a raster's intensity histogram.
//
// Stored sample values are first masked down to the bits actually used,
// sign-extended when the series is signed, and mapped onto the physical
// intensity scale via the rescale slope/intercept. The window width/center
// pair then remaps a band of that scale onto [0, 255].
package window

import (
	"encoding/binary"
	"fmt"
	"math"

	"dicomview3d/internal/models"
)

// Window is a display window: width is the contrast range in physical
// units, center its midpoint.
type Window struct {
	Width  int
	Center int
}

// Render converts one raw sample buffer into a grayscale raster using the
// given window. A nil window falls back to the defaults carried by the
// sample itself. Render is a pure function of its inputs.
//
// The effective window width must be at least 1; smaller widths are a
// caller bug and fail with ErrInvalidArgument rather than being coerced.
func Render(s *models.SliceSample, win *Window) (*models.Raster, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	w := Window{Width: s.WindowWidth, Center: s.WindowCenter}
	if win != nil {
		w = *win
	}
	if w.Width < 1 {
		return nil, fmt.Errorf("%w: window width %d, must be >= 1", models.ErrInvalidArgument, w.Width)
	}

	mask := uint16(0xFFFF) >> uint(s.BitsAllocated-s.BitsStored)
	signPivot := 1 << uint(s.BitsStored) / 2
	fullRange := 1 << uint(s.BitsStored)

	width := float64(w.Width)
	center := float64(w.Center)
	half := (width-1)/2.0 - 0.5
	lower := center - half
	upper := center + half

	out := models.NewRaster(s.Columns, s.Rows)
	for i := 0; i < s.Rows*s.Columns; i++ {
		raw := binary.LittleEndian.Uint16(s.PixelData[i*2:])
		value := int(raw & mask)

		// Two's-complement fix-up for signed series.
		if s.PixelRepresentation == 1 && value > signPivot {
			value -= fullRange
		}

		hu := s.RescaleSlope*float64(value) + s.RescaleIntercept

		var v byte
		switch {
		case hu <= lower:
			v = 0
		case hu >= upper:
			v = 255
		default:
			v = byte(math.Round(((hu-(center-0.5))/(width-1) + 0.5) * 255))
		}
		out.SetGray(i%s.Columns, i/s.Columns, v)
	}
	return out, nil
}
