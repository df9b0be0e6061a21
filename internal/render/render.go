// Package render supplies page images to the extraction pipeline from PDFs,
// directories of scanned pages, and Cloud Storage objects.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

// DefaultDPI is the resolution PDF pages are rasterized at
const DefaultDPI = 200

// Source is a page accessor that owns resources
type Source interface {
	Page(ctx context.Context, index int) ([]byte, error)
	PageCount() int
	Close() error
}

// imageExtensions are the page formats accepted from disk
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
	".gif":  true,
}

// Options configures Open
type Options struct {
	DPI    int
	Logger *logger.Logger

	// GCS is required for gs:// locations
	GCS ObjectReader
}

// Open picks a source for location: a gs:// URI, a directory of page images,
// a PDF, or a single image file
func Open(ctx context.Context, location string, opts Options) (Source, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}

	if strings.HasPrefix(location, "gs://") {
		if opts.GCS == nil {
			return nil, fmt.Errorf("%w: a storage client is required for %s", model.ErrConfig, location)
		}
		src, err := OpenGCS(ctx, opts.GCS, location, opts.DPI, opts.Logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrRender, err)
	}
	if info.IsDir() {
		src, err := OpenImageDir(location, opts.Logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	ext := strings.ToLower(filepath.Ext(location))
	switch {
	case ext == ".pdf":
		src, err := OpenPDF(location, opts.DPI, opts.Logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case imageExtensions[ext]:
		return &ImageDirSource{files: []string{location}, logger: opts.Logger}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported document format %q", model.ErrRender, ext)
	}
}

// PageSize decodes a page image and returns its dimensions
func PageSize(page []byte) (int, int, error) {
	img, err := imaging.Decode(bytes.NewReader(page))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: decoding page: %w", model.ErrRender, err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// encodePNG serializes a rendered page for the OCR stage
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encoding page image: %w", model.ErrRender, err)
	}
	return buf.Bytes(), nil
}

func checkIndex(index, count int) error {
	if index < 0 || index >= count {
		return fmt.Errorf("%w: page %d out of range (document has %d pages)", model.ErrRender, index, count)
	}
	return nil
}
