package volume

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"dicomview3d/internal/logging"
	"dicomview3d/internal/models"
)

// DefaultThickness is the half-thickness of the sampling slab around a
// cutting plane, in normalized unit-cube units.
const DefaultThickness = 0.005

// cancelBatch is how many point-map entries are scanned between
// cancellation checks. Coarse on purpose: checking per point would cost
// more than the scan itself.
const cancelBatch = 1024

// PlaneParams describes one cutting plane through the unit cube plus the
// pixel grid of the output raster.
type PlaneParams struct {
	// X and Z position the plane origin within [-0.5, 0.5] on the
	// corresponding axes. The in-plane vertical offset is fixed at the
	// volume midline.
	X, Z float64

	// AngleA rotates the canonical basis about the X axis, AngleB then
	// rotates the result about the Y axis. Radians.
	AngleA, AngleB float64

	// Thickness is the signed-distance cutoff for including points.
	// Non-positive means DefaultThickness.
	Thickness float64

	// Width and Height are the output raster dimensions, normally the
	// source slice grid size.
	Width, Height int
}

// AxialPlane is the canonical axial orientation: no rotation, the plane
// sweeping the depth axis at position z.
func AxialPlane(z float64, width, height int) PlaneParams {
	return PlaneParams{Z: z, Width: width, Height: height}
}

// SagittalPlane is the canonical sagittal orientation: a 90 degree turn
// about the Y axis, sweeping left-right at position x.
func SagittalPlane(x float64, width, height int) PlaneParams {
	return PlaneParams{X: x, AngleB: math.Pi / 2, Width: width, Height: height}
}

// CoronalPlane is the canonical coronal orientation: a 90 degree turn
// about the X axis through the volume midline.
func CoronalPlane(width, height int) PlaneParams {
	return PlaneParams{AngleA: math.Pi / 2, Width: width, Height: height}
}

// ExtractOblique re-samples the point cloud onto the given plane. Points
// within the thickness slab are projected into the plane's (up, right)
// basis, binned into the output grid, and averaged; pixels no point maps
// to stay 0. An empty result is not an error: the caller gets a blank
// raster. Cancellation via ctx aborts the scan between batches and returns
// the context error with no raster.
func ExtractOblique(ctx context.Context, pc *models.PointCloud, p PlaneParams) (*models.Raster, error) {
	if pc == nil {
		return nil, fmt.Errorf("%w: nil point cloud", models.ErrInvalidArgument)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: output grid %dx%d", models.ErrInvalidArgument, p.Width, p.Height)
	}
	thickness := p.Thickness
	if thickness <= 0 {
		thickness = DefaultThickness
	}

	normal, up, right := planeBasis(p.AngleA, p.AngleB)
	origin := r3.Vec{X: p.X, Y: 0, Z: p.Z}

	sums := make([]float64, p.Width*p.Height)
	counts := make([]int, p.Width*p.Height)

	scanned := 0
	hits := 0
	for _, pt := range pc.Points {
		scanned++
		if scanned%cancelBatch == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rel := r3.Sub(pt.Pos, origin)
		d := r3.Dot(rel, normal)
		if math.Abs(d) > thickness {
			continue
		}

		// Project onto the plane and express in the in-plane basis.
		proj := r3.Sub(rel, r3.Scale(d, normal))
		u := r3.Dot(proj, up)
		v := r3.Dot(proj, right)

		px := int(math.Round((v + 0.5) * float64(p.Width-1)))
		py := int(math.Round((u + 0.5) * float64(p.Height-1)))
		if px < 0 || px >= p.Width || py < 0 || py >= p.Height {
			continue
		}
		sums[py*p.Width+px] += pt.Intensity
		counts[py*p.Width+px]++
		hits++
	}

	out := models.NewRaster(p.Width, p.Height)
	if hits == 0 {
		logging.Warningf("oblique extraction: no points within %.4f of plane (x=%.3f z=%.3f a=%.3f b=%.3f), returning blank raster",
			thickness, p.X, p.Z, p.AngleA, p.AngleB)
		return out, nil
	}

	for i, n := range counts {
		if n == 0 {
			continue
		}
		avg := math.Round(sums[i] / float64(n) * 255)
		if avg > 255 {
			avg = 255
		}
		out.SetGray(i%p.Width, i/p.Width, byte(avg))
	}
	return out, nil
}

// planeBasis rotates the canonical axial basis (normal along depth, up
// along rows, right along columns) first about X, then about Y. The
// result stays orthonormal because both steps are rigid rotations.
func planeBasis(angleA, angleB float64) (normal, up, right r3.Vec) {
	normal = r3.Vec{Z: 1}
	up = r3.Vec{Y: 1}
	right = r3.Vec{X: 1}

	rotA := r3.NewRotation(angleA, r3.Vec{X: 1})
	rotB := r3.NewRotation(angleB, r3.Vec{Y: 1})

	rotate := func(v r3.Vec) r3.Vec { return rotB.Rotate(rotA.Rotate(v)) }
	return rotate(normal), rotate(up), rotate(right)
}
