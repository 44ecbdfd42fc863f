package window

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"dicomview3d/internal/logging"
	"dicomview3d/internal/models"
)

// Default percentile cutoffs for automatic window derivation.
const (
	DefaultLowPercentile  = 0.05
	DefaultHighPercentile = 0.95
)

// Fallback window returned when a raster carries no usable intensity
// information.
var Fallback = Window{Width: 400, Center: 40}

// Clamp ranges for the derived window. Centers below 0 are clipped even
// though some clinical presets sit in negative HU; this mirrors the
// observed upstream behavior and is intentionally left unchanged pending
// clarification.
const (
	minWidth  = 50
	maxWidth  = 4000
	minCenter = 0
	maxCenter = 800
)

// Optimize derives a window from the raster's intensity histogram. It bins
// the per-pixel mean intensity into 256 buckets, ignores exactly-zero
// pixels (treated as empty background), and walks in from both ends until
// the requested percentile mass has been covered. Any failure yields the
// Fallback window rather than an error; auto-windowing is best effort.
func Optimize(r *models.Raster, lowPct, highPct float64) (win Window) {
	defer func() {
		if p := recover(); p != nil {
			logging.Errorf("window optimizer failed: %v", p)
			win = Fallback
		}
	}()

	if r.Empty() {
		logging.Warningf("window optimizer: empty raster, using fallback %dx%d", Fallback.Width, Fallback.Center)
		return Fallback
	}
	if lowPct <= 0 || highPct <= 0 || lowPct >= 1 || highPct >= 1 || lowPct >= highPct {
		lowPct, highPct = DefaultLowPercentile, DefaultHighPercentile
	}

	var hist [256]float64
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			g := r.Gray(x, y)
			if g == 0 {
				continue
			}
			bin := int(math.Min(g, 255))
			hist[bin]++
		}
	}

	total := floats.Sum(hist[:])
	if total == 0 {
		logging.Warningf("window optimizer: no non-zero pixels, using fallback")
		return Fallback
	}

	lowTarget := total * lowPct
	highTarget := total * (1 - highPct)

	minIntensity := 0
	acc := 0.0
	for i := 0; i < len(hist); i++ {
		acc += hist[i]
		if acc >= lowTarget {
			minIntensity = i
			break
		}
	}

	maxIntensity := len(hist) - 1
	acc = 0.0
	for i := len(hist) - 1; i >= 0; i-- {
		acc += hist[i]
		if acc >= highTarget {
			maxIntensity = i
			break
		}
	}

	width := maxIntensity - minIntensity
	center := minIntensity + width/2

	if width < minWidth {
		width = minWidth
	} else if width > maxWidth {
		width = maxWidth
	}
	if center < minCenter {
		center = minCenter
	} else if center > maxCenter {
		center = maxCenter
	}
	return Window{Width: width, Center: center}
}
