// Package dicomio loads a directory of DICOM files into the raw per-slice
// sample records consumed by the rendering pipeline. It extracts only the
// attributes the pipeline needs (grid size, bit layout, rescale transform,
// spacing, location, default window), filters the files down to the
// dominant series, and orders them by slice location.
package dicomio

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomview3d/internal/logging"
	"dicomview3d/internal/models"
)

// LoadSeries parses every .dcm file under dir, keeps the series with the
// most slices, and returns its samples sorted by SliceLocation.
func LoadSeries(dir string) ([]*models.SliceSample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading series directory: %w", err)
	}

	type loaded struct {
		sample *models.SliceSample
		series string
	}
	var all []loaded
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".dcm" && ext != ".dicom" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		sample, series, err := LoadFile(path)
		if err != nil {
			logging.Warningf("skipping %s: %v", e.Name(), err)
			continue
		}
		all = append(all, loaded{sample, series})
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: no readable DICOM slices in %s", models.ErrUnavailable, dir)
	}

	// Keep the dominant series; a directory sometimes mixes localizer
	// scans with the stack proper.
	counts := make(map[string]int)
	for _, l := range all {
		counts[l.series]++
	}
	var best string
	for uid, n := range counts {
		if n > counts[best] || best == "" {
			best = uid
		}
	}

	var samples []*models.SliceSample
	for _, l := range all {
		if l.series == best {
			samples = append(samples, l.sample)
		}
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].SliceLocation < samples[j].SliceLocation
	})

	logging.Infof("loaded %d slices of series %s from %s", len(samples), best, dir)
	return samples, nil
}

// LoadFile parses one DICOM file into a sample record plus its series UID.
func LoadFile(path string) (*models.SliceSample, string, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", path, err)
	}

	s := &models.SliceSample{
		Rows:                intAttr(&ds, tag.Rows, 0),
		Columns:             intAttr(&ds, tag.Columns, 0),
		BitsAllocated:       intAttr(&ds, tag.BitsAllocated, 16),
		BitsStored:          intAttr(&ds, tag.BitsStored, 16),
		HighBit:             intAttr(&ds, tag.HighBit, 15),
		PixelRepresentation: intAttr(&ds, tag.PixelRepresentation, 0),
		RescaleSlope:        floatAttr(&ds, tag.RescaleSlope, 1),
		RescaleIntercept:    floatAttr(&ds, tag.RescaleIntercept, 0),
		PixelSpacing:        floatAttr(&ds, tag.PixelSpacing, 1),
		SliceLocation:       floatAttr(&ds, tag.SliceLocation, 0),
		WindowWidth:         int(floatAttr(&ds, tag.WindowWidth, 0)),
		WindowCenter:        int(floatAttr(&ds, tag.WindowCenter, 0)),
	}

	s.PixelData, err = pixelBytes(&ds)
	if err != nil {
		return nil, "", err
	}
	if err := s.Validate(); err != nil {
		return nil, "", err
	}

	series := stringAttr(&ds, tag.SeriesInstanceUID, "")
	return s, series, nil
}

// pixelBytes converts the first native frame back into the little-endian
// two-byte sample layout the transform stage expects.
func pixelBytes(ds *dicom.Dataset) ([]byte, error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: no pixel data", models.ErrInvalidArgument)
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if info.IsEncapsulated {
		return nil, fmt.Errorf("%w: encapsulated transfer syntaxes are not supported", models.ErrInvalidArgument)
	}
	if len(info.Frames) == 0 {
		return nil, fmt.Errorf("%w: pixel data carries no frames", models.ErrInvalidArgument)
	}
	if len(info.Frames) > 1 {
		logging.Warningf("multi-frame pixel data: using frame 1 of %d", len(info.Frames))
	}
	native := info.Frames[0].NativeData

	buf := make([]byte, len(native.Data)*2)
	for i, px := range native.Data {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(px[0]))
	}
	return buf, nil
}

// intAttr returns the first integer value of the tag, or def when the
// attribute is absent or not an integer.
func intAttr(ds *dicom.Dataset, t tag.Tag, def int) int {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	vals, ok := el.Value.GetValue().([]int)
	if !ok || len(vals) == 0 {
		return def
	}
	return vals[0]
}

// floatAttr returns the first value of a decimal-string attribute, or def.
// DICOM stores these as strings ("1.0", "-1024"), sometimes multi-valued.
func floatAttr(ds *dicom.Dataset, t tag.Tag, def float64) float64 {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	switch vals := el.Value.GetValue().(type) {
	case []string:
		if len(vals) == 0 {
			return def
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
		if err != nil {
			return def
		}
		return f
	case []float64:
		if len(vals) == 0 {
			return def
		}
		return vals[0]
	case []int:
		if len(vals) == 0 {
			return def
		}
		return float64(vals[0])
	}
	return def
}

// stringAttr returns the first string value of the tag, or def.
func stringAttr(ds *dicom.Dataset, t tag.Tag, def string) string {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		return def
	}
	return strings.TrimSpace(vals[0])
}
