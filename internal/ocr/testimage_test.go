package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// renderText draws text in black on a white page with the 7x13 bitmap face,
// upscaled by scale, at the given offset. It returns the PNG and the text's
// bounding box on the page.
func renderText(t *testing.T, text string, scale, offsetX, offsetY, pageW, pageH int) ([]byte, image.Rectangle) {
	t.Helper()

	face := basicfont.Face7x13
	textW := font.MeasureString(face, text).Ceil() + 4
	textH := face.Metrics().Height.Ceil() + 4

	small := image.NewRGBA(image.Rect(0, 0, textW, textH))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(2, 2+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)

	big := imaging.Resize(small, textW*scale, textH*scale, imaging.NearestNeighbor)

	page := imaging.New(pageW, pageH, color.White)
	page = imaging.Paste(page, big, image.Pt(offsetX, offsetY))

	var buf bytes.Buffer
	if err := png.Encode(&buf, page); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes(), image.Rect(offsetX, offsetY, offsetX+big.Bounds().Dx(), offsetY+big.Bounds().Dy())
}

// blankPNG returns a white PNG of the given size
func blankPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(w, h, color.White)); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}
