// Package filter applies small fixed-kernel convolutions to display
// rasters: Sobel edge detection, sharpening and Gaussian-like smoothing.
package filter

import (
	"fmt"
	"math"

	"dicomview3d/internal/logging"
	"dicomview3d/internal/models"
)

// Kind selects a convolution filter.
type Kind int

const (
	// None copies the input unchanged.
	None Kind = iota

	// Edge computes gradient magnitude from the two Sobel kernels.
	Edge

	// Sharpen applies a 5-center Laplacian sharpening kernel per channel.
	Sharpen

	// Smooth applies a normalized Gaussian-like blur per channel.
	Smooth
)

// String returns the filter name as used on the command line.
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Edge:
		return "edge"
	case Sharpen:
		return "sharpen"
	case Smooth:
		return "smooth"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a filter name to its Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "none", "":
		return None, nil
	case "edge":
		return Edge, nil
	case "sharpen":
		return Sharpen, nil
	case "smooth":
		return Smooth, nil
	}
	return None, fmt.Errorf("%w: unknown filter %q", models.ErrInvalidArgument, name)
}

// Sobel gradient kernels (horizontal and vertical).
var (
	sobelX = [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY = [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
)

// sharpenKernel boosts the center pixel against its 4-neighborhood.
var sharpenKernel = [3][3]float64{{0, -1, 0}, {-1, 5, -1}, {0, -1, 0}}

// smoothKernel is a normalized Gaussian-like kernel; its weights sum to 1,
// so no output clamping is required.
var smoothKernel = [3][3]float64{
	{0.0625, 0.125, 0.0625},
	{0.125, 0.25, 0.125},
	{0.0625, 0.125, 0.0625},
}

// Apply runs the selected filter over the raster and returns a new raster
// of the same dimensions. The input is never modified. A nil or zero-sized
// raster is an invalid argument. If the convolution itself fails, the
// caller receives an unmodified copy of the input instead of a partial
// result.
func Apply(r *models.Raster, kind Kind) (out *models.Raster, err error) {
	if r.Empty() {
		return nil, fmt.Errorf("%w: nil or zero-sized raster", models.ErrInvalidArgument)
	}

	defer func() {
		if p := recover(); p != nil {
			logging.Errorf("filter %s failed: %v; returning unmodified copy", kind, p)
			out, err = r.Clone(), nil
		}
	}()

	switch kind {
	case None:
		return r.Clone(), nil
	case Edge:
		return applyEdge(r), nil
	case Sharpen:
		return convolve(r, sharpenKernel, true), nil
	case Smooth:
		return convolve(r, smoothKernel, false), nil
	}
	return nil, fmt.Errorf("%w: unknown filter kind %d", models.ErrInvalidArgument, int(kind))
}

// applyEdge computes Sobel gradient magnitude over the mean of the color
// channels. Border pixels have no full 3x3 neighborhood and are forced
// to 0.
func applyEdge(r *models.Raster) *models.Raster {
	out := models.NewRaster(r.Width, r.Height)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if x == 0 || y == 0 || x == r.Width-1 || y == r.Height-1 {
				out.SetGray(x, y, 0)
				continue
			}
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					g := r.Gray(x+kx, y+ky)
					gx += g * sobelX[ky+1][kx+1]
					gy += g * sobelY[ky+1][kx+1]
				}
			}
			mag := math.Sqrt(gx*gx + gy*gy)
			if mag > 255 {
				mag = 255
			}
			out.SetGray(x, y, byte(mag))
		}
	}
	return out
}

// convolve applies the kernel to each color channel independently. Border
// pixels are copied unchanged from the source.
func convolve(r *models.Raster, kernel [3][3]float64, clamp bool) *models.Raster {
	out := r.Clone()
	for y := 1; y < r.Height-1; y++ {
		for x := 1; x < r.Width-1; x++ {
			for ch := 0; ch < 3; ch++ {
				var acc float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						i := ((y+ky)*r.Width + x + kx) * 4
						acc += float64(r.Pix[i+ch]) * kernel[ky+1][kx+1]
					}
				}
				if clamp {
					if acc < 0 {
						acc = 0
					} else if acc > 255 {
						acc = 255
					}
				}
				out.Pix[(y*r.Width+x)*4+ch] = byte(math.Round(acc))
			}
			out.Pix[(y*r.Width+x)*4+3] = 0xFF
		}
	}
	return out
}
