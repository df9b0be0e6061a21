package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/platinummonkey/regionscan/internal/model"
)

const (
	// cropPadding is the white border added around every crop
	cropPadding = 10

	// minCropHeight is the height below which crops are upscaled before OCR
	minCropHeight = 40
)

// Cropper cuts regions out of page rasters and prepares them for recognition
type Cropper struct {
	preprocess bool
}

// NewCropper creates a cropper. When preprocess is set, crops are converted to
// grayscale with boosted contrast and sharpened.
func NewCropper(preprocess bool) *Cropper {
	return &Cropper{preprocess: preprocess}
}

// Decode decodes an encoded page raster
func (c *Cropper) Decode(page []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(page), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode page image: %w", model.ErrRender, err)
	}
	return img, nil
}

// Crop cuts the region out of an encoded page raster and returns a PNG.
// Regions that extend past the page bounds are rejected.
func (c *Cropper) Crop(page []byte, region model.Region) ([]byte, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}

	img, err := c.Decode(page)
	if err != nil {
		return nil, err
	}

	return c.CropImage(img, region)
}

// CropImage is Crop for an already decoded page
func (c *Cropper) CropImage(img image.Image, region model.Region) ([]byte, error) {
	bounds := img.Bounds()
	rect := image.Rect(region.X, region.Y, region.Right(), region.Bottom()).Add(bounds.Min)
	if !rect.In(bounds) {
		return nil, fmt.Errorf("%w: region %q (%d,%d %dx%d) lies outside the %dx%d page",
			model.ErrConfig, region.Name, region.X, region.Y, region.Width, region.Height, bounds.Dx(), bounds.Dy())
	}

	var out image.Image = imaging.Crop(img, rect)

	if h := out.Bounds().Dy(); h < minCropHeight {
		scale := float64(minCropHeight) / float64(h)
		out = imaging.Resize(out, int(float64(out.Bounds().Dx())*scale+0.5), minCropHeight, imaging.Lanczos)
	}

	if c.preprocess {
		out = imaging.Grayscale(out)
		out = imaging.AdjustContrast(out, 20)
		out = imaging.Sharpen(out, 1.0)
	}

	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	canvas := imaging.New(w+2*cropPadding, h+2*cropPadding, color.White)
	canvas = imaging.Paste(canvas, out, image.Pt(cropPadding, cropPadding))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: failed to encode crop: %w", model.ErrSystem, err)
	}
	return buf.Bytes(), nil
}
