package refmodel

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/ocr-engine/internal/imaging"
	"github.com/ironsheep/ocr-engine/internal/inference"
)

// File names written by Write.
const (
	DetFile  = "det.json"
	RecFile  = "rec.json"
	DictFile = "keys.txt"
)

// Recognition model geometry.
const (
	LineHeight = 48
	GridW      = 8
	GridH      = 12
)

var (
	imagenetMean = []float32{0.485, 0.456, 0.406}
	imagenetStd  = []float32{0.229, 0.224, 0.225}
)

// Paths lists the files produced by Write.
type Paths struct {
	Det  string
	Rec  string
	Dict string
}

// Charset returns the recognizable characters, printable ASCII without
// the space, in class order.
func Charset() []string {
	chars := make([]string, 0, 126-33+1)
	for c := '!'; c <= '~'; c++ {
		chars = append(chars, string(c))
	}
	return chars
}

// Dictionary returns the keys file content for Charset.
func Dictionary() []byte {
	return []byte(strings.Join(Charset(), "\n") + "\n")
}

// DetectionDocument builds the detection model. It measures ink darkness,
// closes small horizontal gaps so the glyphs of a word form one region, and
// squashes the result into a probability.
func DetectionDocument() inference.Document {
	weights := make([]float32, 3)
	var meanSum float32
	for c := range weights {
		weights[c] = -imagenetStd[c] / 3
		meanSum += imagenetMean[c]
	}
	return inference.Document{
		Format: inference.FormatV1,
		Kind:   inference.KindDetection,
		Name:   "reference-det",
		Input: inference.InputSpec{
			Channels: 3,
			Mean:     imagenetMean,
			Std:      imagenetStd,
		},
		Layers: []inference.LayerSpec{
			{Type: "conv2d", In: 3, Out: 1, Kernel: 1, Weights: weights, Bias: []float32{1 - meanSum/3}},
			{Type: "maxpool", KernelW: 25, KernelH: 5},
			{Type: "minpool", KernelW: 25, KernelH: 5},
			{Type: "affine", Scale: 12, Shift: -6},
			{Type: "sigmoid"},
		},
	}
}

// RecognitionDocument builds the recognition model with one template per
// Charset entry.
func RecognitionDocument() (inference.Document, error) {
	templates, err := Templates()
	if err != nil {
		return inference.Document{}, err
	}
	chars := Charset()
	return inference.Document{
		Format:     inference.FormatV1,
		Kind:       inference.KindRecognition,
		Name:       "reference-rec",
		NumClasses: len(chars) + 2,
		Input: inference.InputSpec{
			Channels: 3,
			Height:   LineHeight,
			Mean:     []float32{0.5, 0.5, 0.5},
			Std:      []float32{0.5, 0.5, 0.5},
		},
		Layers: []inference.LayerSpec{
			{Type: "conv2d", In: 3, Out: 1, Kernel: 1, Weights: []float32{-1.0 / 6, -1.0 / 6, -1.0 / 6}, Bias: []float32{0.5}},
			{Type: "glyph_ctc", Glyph: &inference.GlyphSpec{
				GridW:     GridW,
				GridH:     GridH,
				Threshold: 0.5,
				Sharpness: 50,
				Blank:     0.5,
				SpaceGap:  0.6,
				AspectW:   0.25,
				HeightW:   0.3,
				TopW:      0.1,
				Templates: templates,
			}},
			{Type: "softmax"},
		},
	}, nil
}

// Templates renders every Charset entry and describes it relative to the
// cap box of "H", the box a line of capitals spans.
func Templates() ([]inference.Template, error) {
	ref, ok := glyphBounds(renderGlyph("H"))
	if !ok {
		return nil, fmt.Errorf("reference glyph has no ink")
	}

	chars := Charset()
	templates := make([]inference.Template, 0, len(chars))
	for i, ch := range chars {
		b := renderGlyph(ch)
		r, ok := glyphBounds(b)
		if !ok {
			return nil, fmt.Errorf("glyph %q has no ink", ch)
		}
		t := inference.Describe(b, r, ref, GridW, GridH)
		t.Class = i + 1
		t.Char = ch
		templates = append(templates, t)
	}
	return templates, nil
}

// renderGlyph draws ch at 1x and returns its ink mask.
func renderGlyph(ch string) *inference.Bitmap {
	img := image.NewRGBA(image.Rect(0, 0, 16, 20))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	DrawText(img, 4, 15, ch, color.Black)

	gray := imaging.Binarize(img, 128)
	b := &inference.Bitmap{W: gray.Rect.Dx(), H: gray.Rect.Dy(), Pix: make([]bool, len(gray.Pix))}
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			b.Pix[y*b.W+x] = gray.Pix[y*gray.Stride+x] == 0
		}
	}
	return b
}

func glyphBounds(b *inference.Bitmap) (image.Rectangle, bool) {
	return b.TightBounds(image.Rect(0, 0, b.W, b.H))
}

// DrawText draws text with its baseline at (x, y) in the basicfont 7x13 face.
func DrawText(img draw.Image, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// RenderLine draws text black on white at 1x with a 20 pixel margin and
// upscales it by scale using pixel replication. The canvas is
// (len(text)*7+40)*scale wide and 40*scale high.
func RenderLine(text string, scale int) *image.RGBA {
	return RenderLines([]string{text}, scale)
}

// RenderLines is RenderLine for several lines, with baselines 16 pixels
// apart at 1x.
func RenderLines(lines []string, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	maxLen := 0
	for _, l := range lines {
		if len(l) > maxLen {
			maxLen = len(l)
		}
	}
	w, h := maxLen*7+40, 40+16*maxInt(len(lines)-1, 0)
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	for i, l := range lines {
		DrawText(small, 20, 25+16*i, l, color.Black)
	}
	if scale == 1 {
		return small
	}

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h*scale; y++ {
		src := small.Pix[(y/scale)*small.Stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < w*scale; x++ {
			copy(dst[x*4:x*4+4], src[(x/scale)*4:(x/scale)*4+4])
		}
	}
	return img
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Bytes returns the encoded detection model, recognition model and
// dictionary.
func Bytes() (det, rec, dict []byte, err error) {
	det, err = inference.Encode(DetectionDocument())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode detection model: %w", err)
	}
	recDoc, err := RecognitionDocument()
	if err != nil {
		return nil, nil, nil, err
	}
	rec, err = inference.Encode(recDoc)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode recognition model: %w", err)
	}
	return det, rec, Dictionary(), nil
}

// Write generates all three artifacts into dir, creating it if needed.
func Write(dir string) (Paths, error) {
	det, rec, dict, err := Bytes()
	if err != nil {
		return Paths{}, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Paths{}, fmt.Errorf("failed to create model directory: %w", err)
	}

	p := Paths{
		Det:  filepath.Join(dir, DetFile),
		Rec:  filepath.Join(dir, RecFile),
		Dict: filepath.Join(dir, DictFile),
	}
	for path, data := range map[string][]byte{p.Det: det, p.Rec: rec, p.Dict: dict} {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return Paths{}, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
		}
	}
	return p, nil
}
