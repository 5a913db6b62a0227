package inference

import (
	"fmt"
	"image"
)

// Tensor is a dense float32 array in row-major order. Image tensors use
// NCHW layout with N == 1.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zero tensor of the given shape.
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{Shape: s, Data: make([]float32, n)}
}

// Len is the number of elements implied by Shape.
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// CHW returns channels, height and width of a [1,C,H,W] tensor.
func (t *Tensor) CHW() (c, h, w int, err error) {
	if len(t.Shape) != 4 || t.Shape[0] != 1 {
		return 0, 0, 0, fmt.Errorf("expected [1,C,H,W] tensor, got %v", t.Shape)
	}
	if len(t.Data) != t.Len() {
		return 0, 0, 0, fmt.Errorf("tensor data length %d does not match shape %v", len(t.Data), t.Shape)
	}
	return t.Shape[1], t.Shape[2], t.Shape[3], nil
}

// Plane returns the H*W slice of channel c of a [1,C,H,W] tensor.
func (t *Tensor) Plane(c int) []float32 {
	h, w := t.Shape[2], t.Shape[3]
	return t.Data[c*h*w : (c+1)*h*w]
}

// FromImage converts img to a [1,C,H,W] tensor, scaling each channel to
// 0..1 and normalizing it as (v - mean[c]) / std[c]. With one channel the
// luma is used. Alpha is ignored.
func FromImage(img *image.NRGBA, in InputSpec) *Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	c := in.Channels
	t := NewTensor(1, c, h, w)
	plane := h * w
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			i := y*w + x
			if c == 1 {
				v := (0.299*float32(px[0]) + 0.587*float32(px[1]) + 0.114*float32(px[2])) / 255
				t.Data[i] = (v - in.Mean[0]) / in.Std[0]
				continue
			}
			for ch := 0; ch < c && ch < 3; ch++ {
				v := float32(px[ch]) / 255
				t.Data[ch*plane+i] = (v - in.Mean[ch]) / in.Std[ch]
			}
		}
	}
	return t
}
