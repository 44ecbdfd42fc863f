package volume

import (
	"fmt"

	"dicomview3d/internal/models"
)

// ClipIndices filters the point cloud's GPU index list down to vertices
// whose source slice lies in [front, back]. It is a pure filter over the
// existing vertex array: the vertex, color and point-map data are left
// untouched, so re-slicing is unaffected by the clip planes. Callers
// re-run this whenever the clip bounds change.
func ClipIndices(pc *models.PointCloud, front, back int) ([]uint32, error) {
	if pc == nil {
		return nil, fmt.Errorf("%w: nil point cloud", models.ErrInvalidArgument)
	}
	if front < 0 || back < front {
		return nil, fmt.Errorf("%w: clip range [%d, %d]", models.ErrInvalidArgument, front, back)
	}

	visible := make([]uint32, 0, len(pc.Indices))
	for _, idx := range pc.Indices {
		if int(idx) >= len(pc.SliceIndex) {
			continue
		}
		s := pc.SliceIndex[idx]
		if s >= front && s <= back {
			visible = append(visible, idx)
		}
	}
	return visible, nil
}
