package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// Enhance applies optional contrast (percent, -100..100) and Gaussian
// denoising (radius in pixels) before detection. Zero values skip a step
// and return img untouched when both are zero.
func Enhance(img image.Image, contrast, denoiseSigma float64) image.Image {
	out := img
	if denoiseSigma > 0 {
		out = blur.Gaussian(out, denoiseSigma)
	}
	if contrast != 0 {
		out = adjust.Contrast(out, contrast/100)
	}
	return out
}

// Invert returns the color negative of img.
func Invert(img image.Image) image.Image {
	return effect.Invert(img)
}

// Binarize converts img to gray and thresholds it. Pixels at or above level
// become white (0xFF); darker pixels become black (0x00).
func Binarize(img image.Image, level uint8) *image.Gray {
	return segment.Threshold(effect.Grayscale(img), level)
}
