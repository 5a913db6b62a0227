package inference

import (
	"fmt"
	"image"
	"math"
	"sort"
)

// GlyphSpec parameterizes the glyph_ctc layer, a template matcher that turns
// a single-line ink map into per-step class logits laid out for CTC
// decoding: a gap step, then alternating glyph and gap steps.
type GlyphSpec struct {
	GridW int `json:"grid_w"`
	GridH int `json:"grid_h"`

	// Threshold is the ink level that counts as a glyph pixel.
	Threshold float32 `json:"threshold"`

	// Sharpness scales match scores into logits.
	Sharpness float32 `json:"sharpness"`

	// Blank is the match score the blank class competes with.
	Blank float32 `json:"blank"`

	// SpaceGap is the gap, relative to line height, read as a space.
	SpaceGap float32 `json:"space_gap"`

	// Penalty weights on |ln(aspect ratio)|, relative height and top offset.
	AspectW float32 `json:"aspect_w"`
	HeightW float32 `json:"height_w"`
	TopW    float32 `json:"top_w"`

	Templates []Template `json:"templates"`
}

// Template is the reference appearance of one class.
type Template struct {
	Class    int       `json:"class"`
	Char     string    `json:"char,omitempty"`
	Features []float32 `json:"features"`
	Aspect   float32   `json:"aspect"` // width / height of the tight ink box
	Height   float32   `json:"height"` // height relative to the line reference
	Top      float32   `json:"top"`    // top offset relative to the line reference
}

// Bitmap is a binary ink mask with its origin at (0,0).
type Bitmap struct {
	W, H int
	Pix  []bool
}

// NewBitmap thresholds a plane of ink values.
func NewBitmap(plane []float32, w, h int, threshold float32) *Bitmap {
	b := &Bitmap{W: w, H: h, Pix: make([]bool, w*h)}
	for i, v := range plane {
		b.Pix[i] = v > threshold
	}
	return b
}

// At reports whether (x, y) is ink. Out of range reads are false.
func (b *Bitmap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return false
	}
	return b.Pix[y*b.W+x]
}

// Segments splits the bitmap into glyph boxes at ink-free columns and
// returns them left to right together with the line box, the union of all
// glyph boxes. ok is false when the bitmap has no ink.
func (b *Bitmap) Segments() (line image.Rectangle, glyphs []image.Rectangle, ok bool) {
	start := -1
	for x := 0; x <= b.W; x++ {
		inked := x < b.W && b.columnInked(x)
		switch {
		case inked && start < 0:
			start = x
		case !inked && start >= 0:
			if r, found := b.TightBounds(image.Rect(start, 0, x, b.H)); found {
				glyphs = append(glyphs, r)
				line = line.Union(r)
			}
			start = -1
		}
	}
	return line, glyphs, len(glyphs) > 0
}

func (b *Bitmap) columnInked(x int) bool {
	for y := 0; y < b.H; y++ {
		if b.Pix[y*b.W+x] {
			return true
		}
	}
	return false
}

// TightBounds shrinks r to the ink it contains.
func (b *Bitmap) TightBounds(r image.Rectangle) (image.Rectangle, bool) {
	r = r.Intersect(image.Rect(0, 0, b.W, b.H))
	minX, minY, maxX, maxY := r.Max.X, r.Max.Y, r.Min.X-1, r.Min.Y-1
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !b.Pix[y*b.W+x] {
				continue
			}
			minX, maxX = minInt(minX, x), maxInt(maxX, x)
			minY, maxY = minInt(minY, y), maxInt(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// GlyphFeatures area-averages the ink inside r onto a gw x gh grid. Partial
// pixel overlaps are weighted by their covered area, so an integer upscale
// of a glyph yields the same features as the original.
func GlyphFeatures(b *Bitmap, r image.Rectangle, gw, gh int) []float32 {
	out := make([]float32, gw*gh)
	w, h := float64(r.Dx()), float64(r.Dy())
	if w <= 0 || h <= 0 {
		return out
	}
	for gy := 0; gy < gh; gy++ {
		y0 := float64(r.Min.Y) + float64(gy)*h/float64(gh)
		y1 := float64(r.Min.Y) + float64(gy+1)*h/float64(gh)
		for gx := 0; gx < gw; gx++ {
			x0 := float64(r.Min.X) + float64(gx)*w/float64(gw)
			x1 := float64(r.Min.X) + float64(gx+1)*w/float64(gw)
			var sum float64
			for y := int(math.Floor(y0)); y < int(math.Ceil(y1)); y++ {
				oy := math.Min(y1, float64(y+1)) - math.Max(y0, float64(y))
				if oy <= 0 {
					continue
				}
				for x := int(math.Floor(x0)); x < int(math.Ceil(x1)); x++ {
					ox := math.Min(x1, float64(x+1)) - math.Max(x0, float64(x))
					if ox <= 0 || !b.At(x, y) {
						continue
					}
					sum += ox * oy
				}
			}
			out[gy*gw+gx] = float32(sum / ((x1 - x0) * (y1 - y0)))
		}
	}
	return out
}

// Describe builds the template-comparable description of glyph r measured
// against a reference box (the line box, or the cap box for templates).
func Describe(b *Bitmap, r, ref image.Rectangle, gw, gh int) Template {
	refH := float32(maxInt(ref.Dy(), 1))
	return Template{
		Features: GlyphFeatures(b, r, gw, gh),
		Aspect:   float32(r.Dx()) / float32(maxInt(r.Dy(), 1)),
		Height:   float32(r.Dy()) / refH,
		Top:      float32(r.Min.Y-ref.Min.Y) / refH,
	}
}

type glyphCTC struct {
	spec       GlyphSpec
	numClasses int
	spaceClass int
}

func newGlyphCTC(spec GlyphSpec, numClasses int) (*glyphCTC, error) {
	if spec.GridW <= 0 || spec.GridH <= 0 {
		return nil, fmt.Errorf("grid must be positive")
	}
	if len(spec.Templates) == 0 {
		return nil, fmt.Errorf("no templates")
	}
	for _, t := range spec.Templates {
		if t.Class < 1 || t.Class >= numClasses-1 {
			return nil, fmt.Errorf("template class %d outside 1..%d", t.Class, numClasses-2)
		}
		if len(t.Features) != spec.GridW*spec.GridH {
			return nil, fmt.Errorf("template %d has %d features, want %d", t.Class, len(t.Features), spec.GridW*spec.GridH)
		}
		if t.Aspect <= 0 {
			return nil, fmt.Errorf("template %d has non-positive aspect", t.Class)
		}
	}
	sort.SliceStable(spec.Templates, func(i, j int) bool { return spec.Templates[i].Class < spec.Templates[j].Class })
	return &glyphCTC{spec: spec, numClasses: numClasses, spaceClass: numClasses - 1}, nil
}

func (l *glyphCTC) forward(in *Tensor) (*Tensor, error) {
	c, h, w, err := in.CHW()
	if err != nil {
		return nil, err
	}
	if c != 1 {
		return nil, fmt.Errorf("expects a 1 channel ink map, got %d", c)
	}
	b := NewBitmap(in.Plane(0), w, h, l.spec.Threshold)
	line, glyphs, ok := b.Segments()
	if !ok {
		out := NewTensor(1, 1, l.numClasses)
		l.oneHot(out.Data, 0)
		return out, nil
	}

	steps := 2*len(glyphs) + 1
	out := NewTensor(1, steps, l.numClasses)
	row := func(t int) []float32 { return out.Data[t*l.numClasses : (t+1)*l.numClasses] }

	l.oneHot(row(0), 0)
	spaceGap := float64(l.spec.SpaceGap) * float64(line.Dy())
	for i, g := range glyphs {
		l.matchGlyph(row(2*i+1), Describe(b, g, line, l.spec.GridW, l.spec.GridH))

		gapClass := 0
		if i+1 < len(glyphs) && float64(glyphs[i+1].Min.X-g.Max.X) > spaceGap {
			gapClass = l.spaceClass
		}
		l.oneHot(row(2*i+2), gapClass)
	}
	return out, nil
}

func (l *glyphCTC) oneHot(row []float32, class int) {
	for i := range row {
		row[i] = 0
	}
	row[class] = l.spec.Sharpness
}

func (l *glyphCTC) matchGlyph(row []float32, obs Template) {
	for i := range row {
		row[i] = 0
	}
	row[0] = l.spec.Blank * l.spec.Sharpness
	for _, t := range l.spec.Templates {
		row[t.Class] = l.spec.Sharpness * l.score(obs, t)
	}
}

func (l *glyphCTC) score(obs, t Template) float32 {
	var diff float64
	for i, f := range obs.Features {
		diff += math.Abs(float64(f - t.Features[i]))
	}
	diff /= float64(len(obs.Features))

	s := 1 - diff
	s -= float64(l.spec.AspectW) * math.Abs(math.Log(float64(obs.Aspect/t.Aspect)))
	s -= float64(l.spec.HeightW) * math.Abs(float64(obs.Height-t.Height))
	s -= float64(l.spec.TopW) * math.Abs(float64(obs.Top-t.Top))
	return float32(s)
}
