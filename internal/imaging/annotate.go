package imaging

import (
	"image"
	"image/color"
	"image/draw"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotation is one box to draw, with an optional caption.
type Annotation struct {
	Rect  image.Rectangle
	Label string
}

// DefaultBoxColor is used when Annotate gets an empty or invalid color.
const DefaultBoxColor = "#FF0000"

// Annotate draws each annotation's rectangle outline on a copy of img and
// prints its label above the box (below it when there is no room above).
//
// boxHex is a "#RRGGBB" color. Labels are drawn white on a dark backing so
// they stay legible on any image.
func Annotate(img image.Image, annotations []Annotation, boxHex string) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	c, err := colorful.Hex(boxHex)
	if err != nil {
		c, _ = colorful.Hex(DefaultBoxColor)
	}
	r, g, b := c.RGB255()
	boxColor := color.RGBA{R: r, G: g, B: b, A: 255}

	for _, a := range annotations {
		rect := a.Rect.Intersect(bounds)
		if rect.Empty() {
			continue
		}
		drawOutline(result, rect, boxColor)
		if a.Label != "" {
			face := basicfont.Face7x13
			y := rect.Min.Y - face.Descent - 2
			if y-face.Ascent-1 < bounds.Min.Y {
				y = rect.Max.Y + face.Ascent + 1
			}
			drawLabel(result, rect.Min.X, y, a.Label, color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})
		}
	}
	return result
}

func drawOutline(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// drawLabel renders text with its baseline at y on a filled backing box.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	width := d.MeasureString(text).Ceil()
	backing := image.Rect(x-1, y-face.Ascent-1, x+width+1, y+face.Descent+1).Intersect(img.Bounds())
	draw.Draw(img, backing, image.NewUniform(bg), image.Point{}, draw.Over)
	d.DrawString(text)
}
