package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
)

// ToNRGBA returns img as an *image.NRGBA with its origin at (0,0).
// Pipeline stages read pixels straight from Pix, so they all start here.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

// Crop extracts r from img, clipped to the image bounds. The result has its
// origin at (0,0). It returns nil when r does not overlap the image.
func Crop(img image.Image, r image.Rectangle) *image.NRGBA {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	return imaging.Crop(img, r)
}

// FitLongSide shrinks img so its longer side is at most maxSide, keeping
// the aspect ratio. It returns the resized image and the factor that maps
// resized coordinates back to the original (original = resized * scale).
// Images that already fit, or maxSide <= 0, are returned unscaled.
func FitLongSide(img image.Image, maxSide int) (*image.NRGBA, float64) {
	b := img.Bounds()
	long := b.Dx()
	if b.Dy() > long {
		long = b.Dy()
	}
	if maxSide <= 0 || long <= maxSide {
		return ToNRGBA(img), 1
	}
	resized := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	return resized, float64(b.Dx()) / float64(resized.Bounds().Dx())
}

// ResizeToHeight scales img to height h, keeping the aspect ratio, and caps
// the width at maxWidth when maxWidth > 0.
func ResizeToHeight(img image.Image, h, maxWidth int) *image.NRGBA {
	b := img.Bounds()
	w := int(float64(b.Dx())*float64(h)/float64(b.Dy()) + 0.5)
	if w < 1 {
		w = 1
	}
	if maxWidth > 0 && w > maxWidth {
		w = maxWidth
	}
	return imaging.Resize(img, w, h, imaging.CatmullRom)
}

// PadTo places img at (x, y) on a w x h canvas filled with bg.
func PadTo(img image.Image, w, h, x, y int, bg color.Color) *image.NRGBA {
	canvas := imaging.New(w, h, bg)
	return imaging.Paste(canvas, img, image.Pt(x, y))
}

// PadEdge grows img to w x h by repeating its last column and row.
func PadEdge(img *image.NRGBA, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := y
		if sy >= b.Dy() {
			sy = b.Dy() - 1
		}
		srcRow := img.Pix[sy*img.Stride : sy*img.Stride+b.Dx()*4]
		dstRow := out.Pix[y*out.Stride : y*out.Stride+w*4]
		copy(dstRow, srcRow)
		last := srcRow[len(srcRow)-4:]
		for x := b.Dx(); x < w; x++ {
			copy(dstRow[x*4:x*4+4], last)
		}
	}
	return out
}

// EncodePNGBase64 encodes img as PNG and returns it base64 encoded.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
