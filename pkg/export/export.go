// Package export encodes rasters to on-disk image formats for the export
// collaborator. The format is chosen from the file extension.
package export

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"dicomview3d/internal/models"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 90

// ToImage converts a raster into a stdlib image sharing no memory with it.
func ToImage(r *models.Raster) (*image.RGBA, error) {
	if r.Empty() {
		return nil, fmt.Errorf("%w: nil or zero-sized raster", models.ErrInvalidArgument)
	}
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	copy(img.Pix, r.Pix)
	return img, nil
}

// SaveRaster writes the raster to path, creating parent directories as
// needed. Supported extensions: .png, .jpg/.jpeg, .tif/.tiff, .bmp.
func SaveRaster(r *models.Raster, path string, jpegQuality int) error {
	img, err := ToImage(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode(f, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	case ".tif", ".tiff":
		return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		return bmp.Encode(f, img)
	}
	return fmt.Errorf("%w: unsupported image extension %q", models.ErrInvalidArgument, filepath.Ext(path))
}
