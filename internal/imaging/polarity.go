package imaging

import (
	"image"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// BorderLightness returns the mean HSL lightness (0..1) of the one pixel
// frame around img. Transparent pixels are skipped. An image with no
// opaque border pixels reports 1 (treated as a light background).
func BorderLightness(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 1
	}

	var sum float64
	var n int
	sample := func(x, y int) {
		c, ok := colorful.MakeColor(img.At(x, y))
		if !ok {
			return
		}
		_, _, l := c.Hsl()
		sum += l
		n++
	}

	for x := b.Min.X; x < b.Max.X; x++ {
		sample(x, b.Min.Y)
		if b.Dy() > 1 {
			sample(x, b.Max.Y-1)
		}
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		sample(b.Min.X, y)
		if b.Dx() > 1 {
			sample(b.Max.X-1, y)
		}
	}

	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// IsDarkBackground reports whether img looks like light text on a dark
// background, judged from its border.
func IsDarkBackground(img image.Image) bool {
	return BorderLightness(img) < 0.5
}
