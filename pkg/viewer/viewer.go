// Package viewer ties the pipeline together behind the interface consumed
// by the rendering and export collaborators: windowed slice rendering with
// caching, convolution filtering, volume assembly, multiplanar
// reconstruction, and clip-range filtering of the GPU index list.
package viewer

import (
	"context"
	"fmt"
	"image"
	"sync"

	"dicomview3d/internal/logging"
	"dicomview3d/internal/models"
	"dicomview3d/pkg/cache"
	"dicomview3d/pkg/filter"
	"dicomview3d/pkg/volume"
	"dicomview3d/pkg/window"
)

// Fractions of the stack used when the caller does not specify a slice
// range for volume assembly. The outermost slices of a series are usually
// positioning scans with little anatomy, so a fixed-fraction trim is a
// reasonable interactive default.
const (
	defaultRangeLow  = 0.1
	defaultRangeHigh = 0.9
)

// Viewer renders one loaded series. It owns the raster cache and the
// current window settings; the point cloud is built on demand and retained
// until the next BuildVolume call.
type Viewer struct {
	mu      sync.Mutex
	samples []*models.SliceSample
	geom    *models.VolumeGeometry
	win     window.Window
	rasters *cache.RasterCache
	cloud   *models.PointCloud
	workers int
}

// New creates a viewer over an ordered, validated slice sequence. The
// initial window settings come from the first slice's defaults.
func New(samples []*models.SliceSample, workers int) (*Viewer, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty series", models.ErrInvalidArgument)
	}
	for i, s := range samples {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
	}
	geom, err := models.NewVolumeGeometry(samples)
	if err != nil {
		return nil, err
	}

	win := window.Window{Width: samples[0].WindowWidth, Center: samples[0].WindowCenter}
	if win.Width < 1 {
		win = window.Fallback
	}
	return &Viewer{
		samples: samples,
		geom:    geom,
		win:     win,
		rasters: cache.New(cache.DefaultCapacity),
		workers: workers,
	}, nil
}

// SliceCount returns the number of slices in the series.
func (v *Viewer) SliceCount() int { return len(v.samples) }

// Geometry returns the immutable stack geometry.
func (v *Viewer) Geometry() *models.VolumeGeometry { return v.geom }

// Window returns the current window settings.
func (v *Viewer) Window() window.Window {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.win
}

// SetWindow replaces the window settings and drops the whole raster cache,
// since every cached raster was rendered under the old settings.
func (v *Viewer) SetWindow(width, center int) error {
	if width < 1 {
		return fmt.Errorf("%w: window width %d, must be >= 1", models.ErrInvalidArgument, width)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.win = window.Window{Width: width, Center: center}
	v.rasters.InvalidateAll()
	return nil
}

// AutoWindow derives window settings from the given slice's intensity
// histogram and applies them.
func (v *Viewer) AutoWindow(index int, lowPct, highPct float64) (window.Window, error) {
	r, err := v.RenderSlice(index, nil)
	if err != nil {
		return window.Window{}, err
	}
	win := window.Optimize(r, lowPct, highPct)
	if err := v.SetWindow(win.Width, win.Center); err != nil {
		return window.Window{}, err
	}
	return win, nil
}

// RenderSlice renders one slice. With a nil override the current window
// settings apply and the result is served from / stored into the cache;
// with an override the transform always runs and the cache is bypassed,
// since cached rasters are only valid for the current settings.
func (v *Viewer) RenderSlice(index int, override *window.Window) (*models.Raster, error) {
	if index < 0 || index >= len(v.samples) {
		return nil, fmt.Errorf("%w: slice index %d of %d", models.ErrInvalidArgument, index, len(v.samples))
	}

	if override == nil {
		if r, ok := v.rasters.Get(index); ok {
			return r, nil
		}
	}

	win := override
	if win == nil {
		cur := v.Window()
		win = &cur
	}
	r, err := window.Render(v.samples[index], win)
	if err != nil {
		return nil, err
	}
	if override == nil {
		v.rasters.Put(index, r)
	}
	return r, nil
}

// RenderFiltered renders a slice and runs the given convolution filter
// over it.
func (v *Viewer) RenderFiltered(index int, kind filter.Kind, override *window.Window) (*models.Raster, error) {
	r, err := v.RenderSlice(index, override)
	if err != nil {
		return nil, err
	}
	return filter.Apply(r, kind)
}

// RenderGlobalView produces a maximum-intensity projection across the
// whole stack: each output pixel is the brightest value that pixel takes
// on any slice. Gives a quick whole-series overview without assembling
// the volume.
func (v *Viewer) RenderGlobalView() (*models.Raster, error) {
	first := v.samples[0]
	out := models.NewRaster(first.Columns, first.Rows)
	for i := range v.samples {
		r, err := v.RenderSlice(i, nil)
		if err != nil {
			return nil, err
		}
		if r.Width != out.Width || r.Height != out.Height {
			return nil, fmt.Errorf("%w: slice %d raster is %dx%d, stack is %dx%d",
				models.ErrInvalidArgument, i, r.Width, r.Height, out.Width, out.Height)
		}
		for p := 0; p < len(out.Pix); p += 4 {
			if r.Pix[p] > out.Pix[p] {
				out.Pix[p] = r.Pix[p]
				out.Pix[p+1] = r.Pix[p+1]
				out.Pix[p+2] = r.Pix[p+2]
			}
			out.Pix[p+3] = 0xFF
		}
	}
	return out, nil
}

// BuildVolume assembles the point cloud from the slice range [minSlice,
// maxSlice]. Negative bounds select the heuristic fixed-fraction default
// range. The optional rect restricts which pixels of each slice
// contribute. The cloud is retained for subsequent plane extraction and
// clipping.
func (v *Viewer) BuildVolume(ctx context.Context, minSlice, maxSlice int, rect *image.Rectangle, progress func(done, total int)) (*models.PointCloud, error) {
	n := len(v.samples)
	if minSlice < 0 {
		minSlice = int(float64(n) * defaultRangeLow)
	}
	if maxSlice < 0 {
		maxSlice = int(float64(n)*defaultRangeHigh) - 1
		if maxSlice < minSlice {
			maxSlice = n - 1
		}
	}
	if minSlice > maxSlice || maxSlice >= n {
		return nil, fmt.Errorf("%w: slice range [%d, %d] of %d", models.ErrInvalidArgument, minSlice, maxSlice, n)
	}

	slices := make([]volume.SliceRaster, 0, maxSlice-minSlice+1)
	for i := minSlice; i <= maxSlice; i++ {
		r, err := v.RenderSlice(i, nil)
		if err != nil {
			return nil, err
		}
		slices = append(slices, volume.SliceRaster{
			Index:    i,
			Location: v.samples[i].SliceLocation,
			Raster:   r,
		})
	}

	pc, err := volume.Build(ctx, v.geom, slices, volume.BuildOptions{
		Workers:  v.workers,
		Bounds:   rect,
		Progress: progress,
	})
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.cloud = pc
	v.mu.Unlock()
	logging.Infof("volume built: %d vertices from slices %d..%d", pc.VertexCount(), minSlice, maxSlice)
	return pc, nil
}

// ExtractObliquePlane re-samples the assembled volume onto the plane at
// (x, z) rotated by the two angles. BuildVolume must have run first.
func (v *Viewer) ExtractObliquePlane(ctx context.Context, x, z, angleA, angleB float64) (*models.Raster, error) {
	pc := v.pointCloud()
	if pc == nil {
		return nil, fmt.Errorf("%w: volume not built", models.ErrUnavailable)
	}
	p := volume.PlaneParams{
		X: x, Z: z,
		AngleA: angleA, AngleB: angleB,
		Width: v.geom.Columns, Height: v.geom.Rows,
	}
	return volume.ExtractOblique(ctx, pc, p)
}

// ExtractAxial, ExtractSagittal and ExtractCoronal are the canonical MPR
// shortcuts: fixed parameter presets of the same oblique extraction.
func (v *Viewer) ExtractAxial(ctx context.Context, z float64) (*models.Raster, error) {
	pc := v.pointCloud()
	if pc == nil {
		return nil, fmt.Errorf("%w: volume not built", models.ErrUnavailable)
	}
	return volume.ExtractOblique(ctx, pc, volume.AxialPlane(z, v.geom.Columns, v.geom.Rows))
}

func (v *Viewer) ExtractSagittal(ctx context.Context, x float64) (*models.Raster, error) {
	pc := v.pointCloud()
	if pc == nil {
		return nil, fmt.Errorf("%w: volume not built", models.ErrUnavailable)
	}
	return volume.ExtractOblique(ctx, pc, volume.SagittalPlane(x, v.geom.Columns, v.geom.Rows))
}

func (v *Viewer) ExtractCoronal(ctx context.Context) (*models.Raster, error) {
	pc := v.pointCloud()
	if pc == nil {
		return nil, fmt.Errorf("%w: volume not built", models.ErrUnavailable)
	}
	return volume.ExtractOblique(ctx, pc, volume.CoronalPlane(v.geom.Columns, v.geom.Rows))
}

// SetClipRange recomputes the visible subset of the GPU index list for the
// given front/back slice bounds. The sparse point map is unaffected.
func (v *Viewer) SetClipRange(front, back int) ([]uint32, error) {
	pc := v.pointCloud()
	if pc == nil {
		return nil, fmt.Errorf("%w: volume not built", models.ErrUnavailable)
	}
	if back >= len(v.samples) {
		return nil, fmt.Errorf("%w: clip range [%d, %d] of %d slices", models.ErrInvalidArgument, front, back, len(v.samples))
	}
	return volume.ClipIndices(pc, front, back)
}

// CacheStats exposes the raster cache counters.
func (v *Viewer) CacheStats() (hits, misses, evictions uint64) {
	return v.rasters.Stats()
}

func (v *Viewer) pointCloud() *models.PointCloud {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cloud
}
