package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// VoxelKey identifies one quantized position in the volume grid. It is
// derived from the integer column/row/slice indices of the contributing
// pixel, never from recomputed floating-point geometry, so two logically
// identical positions always hash to the same key regardless of the
// arithmetic path that produced them.
type VoxelKey int64

// MakeVoxelKey packs the (column, row, slice) grid indices into a key.
// Each index must fit in 21 bits, which covers grids up to 2M per axis.
func MakeVoxelKey(col, row, slice int) VoxelKey {
	const mask = (1 << 21) - 1
	return VoxelKey(int64(col&mask) | int64(row&mask)<<21 | int64(slice&mask)<<42)
}

// Indices unpacks the key back into its (column, row, slice) grid indices.
func (k VoxelKey) Indices() (col, row, slice int) {
	const mask = (1 << 21) - 1
	return int(int64(k) & mask), int(int64(k) >> 21 & mask), int(int64(k) >> 42 & mask)
}

// Point is one point-cloud entry: a position inside the normalized unit
// cube (components in [-0.5, 0.5]) tagged with a scalar intensity in [0, 1].
type Point struct {
	Pos       r3.Vec
	Intensity float64
}

// PointCloud is the dual output of volume assembly: flat vertex, color and
// index arrays laid out for GPU upload, plus the sparse quantized
// position->intensity map used for plane re-slicing.
type PointCloud struct {
	// Vertices holds XYZ triples, three float32 per vertex.
	Vertices []float32

	// Colors holds RGBA quadruples parallel to Vertices.
	Colors []float32

	// Indices is the point index list. Absolute values depend on merge
	// order; only internal consistency is guaranteed.
	Indices []uint32

	// SliceIndex records, per vertex, the slice that produced it. Used by
	// the clip-range filter.
	SliceIndex []int

	// Points maps quantized grid positions to their normalized position
	// and intensity.
	Points map[VoxelKey]Point

	// Geometry is the physical geometry the cloud was built under.
	Geometry *VolumeGeometry
}

// VertexCount returns the number of vertices in the flat arrays.
func (pc *PointCloud) VertexCount() int {
	return len(pc.Vertices) / 3
}

// VolumeGeometry captures the physical extent of one slice stack and the
// per-axis scale factors normalizing its largest dimension to 1.0. It is
// computed once per stack and immutable afterwards; changing any input
// requires reprocessing the whole stack.
type VolumeGeometry struct {
	// PhysWidth, PhysHeight and PhysDepth are the stack extents in mm.
	PhysWidth  float64
	PhysHeight float64
	PhysDepth  float64

	// ScaleX, ScaleY and ScaleZ map each physical axis into the unit cube.
	ScaleX float64
	ScaleY float64
	ScaleZ float64

	// FirstLocation and LastLocation are the slice locations bounding the
	// depth axis, in mm.
	FirstLocation float64
	LastLocation  float64

	// Columns and Rows are the in-plane grid dimensions shared by every
	// slice of the stack.
	Columns int
	Rows    int
}

// NewVolumeGeometry derives the stack geometry from an ordered sample
// sequence. The samples must already be sorted by SliceLocation.
func NewVolumeGeometry(samples []*SliceSample) (*VolumeGeometry, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 slices, have %d", ErrInvalidArgument, len(samples))
	}
	first := samples[0]
	if err := first.Validate(); err != nil {
		return nil, err
	}
	last := samples[len(samples)-1]

	g := &VolumeGeometry{
		PhysWidth:     float64(first.Columns) * first.PixelSpacing,
		PhysHeight:    float64(first.Rows) * first.PixelSpacing,
		PhysDepth:     math.Abs(last.SliceLocation - first.SliceLocation),
		FirstLocation: first.SliceLocation,
		LastLocation:  last.SliceLocation,
		Columns:       first.Columns,
		Rows:          first.Rows,
	}

	largest := math.Max(g.PhysWidth, math.Max(g.PhysHeight, g.PhysDepth))
	if largest <= 0 {
		return nil, fmt.Errorf("%w: degenerate stack extent", ErrInvalidArgument)
	}
	g.ScaleX = g.PhysWidth / largest
	g.ScaleY = g.PhysHeight / largest
	g.ScaleZ = g.PhysDepth / largest
	return g, nil
}

// Normalize maps a pixel at grid position (col, row) on the slice with the
// given location into the unit cube. Components lie in [-0.5, 0.5], with
// the largest physical dimension spanning the full range.
func (g *VolumeGeometry) Normalize(col, row int, location float64) r3.Vec {
	x := (float64(col)/float64(g.Columns) - 0.5) * g.ScaleX
	y := (float64(row)/float64(g.Rows) - 0.5) * g.ScaleY
	z := 0.0
	if g.PhysDepth > 0 {
		z = ((location-g.FirstLocation)/(g.LastLocation-g.FirstLocation) - 0.5) * g.ScaleZ
	}
	return r3.Vec{X: x, Y: y, Z: z}
}
