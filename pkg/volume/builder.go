// Package volume assembles an ordered slice stack into a sparse 3D
// intensity field and re-samples that field along arbitrary oblique planes
// for multiplanar reconstruction.
//
// Assembly runs one task per slice on a bounded worker pool. Each task
// accumulates into a private buffer; only the merge into the global vertex
// arrays and the quantized point map is serialized. The resulting point set
// is order independent, though the absolute values in the GPU index list
// depend on merge order and are only internally consistent.
package volume

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"dicomview3d/internal/models"
)

// IntensityThreshold is the normalized intensity at or below which a pixel
// is treated as background noise and excluded from the point cloud.
const IntensityThreshold = 0.15

// SliceRaster pairs one rendered slice with its stack position.
type SliceRaster struct {
	// Index is the slice's position in the series.
	Index int

	// Location is the slice's physical position along the stack axis in mm.
	Location float64

	// Raster is the rendered grayscale raster for the slice.
	Raster *models.Raster
}

// BuildOptions controls point-cloud assembly.
type BuildOptions struct {
	// Workers bounds the number of slices processed concurrently.
	// Non-positive means one worker per CPU.
	Workers int

	// Bounds optionally restricts which pixels of each slice contribute.
	// Nil means the whole slice.
	Bounds *image.Rectangle

	// Progress, if non-nil, is called once per completed slice with the
	// number of finished slices and the total. It runs outside the merge
	// lock and must return promptly.
	Progress func(done, total int)
}

// localPoint is one accumulated sample, private to a slice task until the
// merge step.
type localPoint struct {
	key       models.VoxelKey
	pos       r3.Vec
	intensity float64
}

// Build assembles the point cloud for the given slices under the given
// geometry. Every slice raster must match the geometry's grid dimensions.
func Build(ctx context.Context, geom *models.VolumeGeometry, slices []SliceRaster, opts BuildOptions) (*models.PointCloud, error) {
	if geom == nil {
		return nil, fmt.Errorf("%w: nil geometry", models.ErrInvalidArgument)
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("%w: empty slice stack", models.ErrInvalidArgument)
	}
	for _, s := range slices {
		if s.Raster.Empty() {
			return nil, fmt.Errorf("%w: slice %d has no raster", models.ErrInvalidArgument, s.Index)
		}
		if s.Raster.Width != geom.Columns || s.Raster.Height != geom.Rows {
			return nil, fmt.Errorf("%w: slice %d raster is %dx%d, geometry is %dx%d",
				models.ErrInvalidArgument, s.Index, s.Raster.Width, s.Raster.Height, geom.Columns, geom.Rows)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pc := &models.PointCloud{
		Points:   make(map[models.VoxelKey]models.Point),
		Geometry: geom,
	}

	var (
		mergeMu sync.Mutex
		done    int
	)
	total := len(slices)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, s := range slices {
		s := s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			local := accumulateSlice(geom, s, opts.Bounds)

			// Merge under a single coarse lock. The vertex-index offset is
			// taken from the global count before appending so the index
			// list stays consistent regardless of completion order.
			mergeMu.Lock()
			base := uint32(pc.VertexCount())
			for i, p := range local {
				pc.Vertices = append(pc.Vertices,
					float32(p.pos.X), float32(p.pos.Y), float32(p.pos.Z))
				c := float32(p.intensity)
				pc.Colors = append(pc.Colors, c, c, c, 1)
				pc.Indices = append(pc.Indices, base+uint32(i))
				pc.SliceIndex = append(pc.SliceIndex, s.Index)
				pc.Points[p.key] = models.Point{Pos: p.pos, Intensity: p.intensity}
			}
			done++
			finished := done
			mergeMu.Unlock()

			if opts.Progress != nil {
				opts.Progress(finished, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pc, nil
}

// accumulateSlice scans one slice's raster into a private point buffer.
// No shared state is touched here.
func accumulateSlice(geom *models.VolumeGeometry, s SliceRaster, bounds *image.Rectangle) []localPoint {
	r := s.Raster
	var local []localPoint
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			if bounds != nil && !image.Pt(col, row).In(*bounds) {
				continue
			}
			intensity := r.Gray(col, row) / 255.0
			if intensity <= IntensityThreshold {
				continue
			}
			local = append(local, localPoint{
				key:       models.MakeVoxelKey(col, row, s.Index),
				pos:       geom.Normalize(col, row, s.Location),
				intensity: intensity,
			})
		}
	}
	return local
}
