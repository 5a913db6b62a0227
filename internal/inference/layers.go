package inference

import (
	"fmt"
	"math"
)

func buildLayer(spec LayerSpec, numClasses int) (layer, error) {
	switch spec.Type {
	case "conv2d":
		return newConv2D(spec)
	case "affine":
		return affine{scale: spec.Scale, shift: spec.Shift}, nil
	case "sigmoid":
		return sigmoid{}, nil
	case "maxpool", "minpool":
		if spec.KernelW <= 0 || spec.KernelH <= 0 || spec.KernelW%2 == 0 || spec.KernelH%2 == 0 {
			return nil, fmt.Errorf("pool kernel must be odd and positive, got %dx%d", spec.KernelW, spec.KernelH)
		}
		return pool{kw: spec.KernelW, kh: spec.KernelH, max: spec.Type == "maxpool"}, nil
	case "softmax":
		return softmax{}, nil
	case "glyph_ctc":
		if spec.Glyph == nil {
			return nil, fmt.Errorf("missing glyph parameters")
		}
		return newGlyphCTC(*spec.Glyph, numClasses)
	default:
		return nil, fmt.Errorf("unknown layer type")
	}
}

// conv2D is a stride-1 convolution with zero "same" padding.
type conv2D struct {
	in, out, k int
	weights    []float32 // [out][in][k][k]
	bias       []float32
}

func newConv2D(spec LayerSpec) (*conv2D, error) {
	k := spec.Kernel
	if k == 0 {
		k = 1
	}
	if spec.In <= 0 || spec.Out <= 0 || k%2 == 0 {
		return nil, fmt.Errorf("bad geometry in=%d out=%d kernel=%d", spec.In, spec.Out, k)
	}
	if len(spec.Weights) != spec.Out*spec.In*k*k {
		return nil, fmt.Errorf("want %d weights, got %d", spec.Out*spec.In*k*k, len(spec.Weights))
	}
	bias := spec.Bias
	if bias == nil {
		bias = make([]float32, spec.Out)
	}
	if len(bias) != spec.Out {
		return nil, fmt.Errorf("want %d bias values, got %d", spec.Out, len(bias))
	}
	return &conv2D{in: spec.In, out: spec.Out, k: k, weights: spec.Weights, bias: bias}, nil
}

func (l *conv2D) forward(in *Tensor) (*Tensor, error) {
	c, h, w, err := in.CHW()
	if err != nil {
		return nil, err
	}
	if c != l.in {
		return nil, fmt.Errorf("expects %d channels, got %d", l.in, c)
	}
	out := NewTensor(1, l.out, h, w)
	r := l.k / 2
	for co := 0; co < l.out; co++ {
		dst := out.Plane(co)
		for i := range dst {
			dst[i] = l.bias[co]
		}
		for ci := 0; ci < l.in; ci++ {
			src := in.Plane(ci)
			for ky := 0; ky < l.k; ky++ {
				for kx := 0; kx < l.k; kx++ {
					wt := l.weights[((co*l.in+ci)*l.k+ky)*l.k+kx]
					if wt == 0 {
						continue
					}
					dy, dx := ky-r, kx-r
					for y := 0; y < h; y++ {
						sy := y + dy
						if sy < 0 || sy >= h {
							continue
						}
						for x := 0; x < w; x++ {
							sx := x + dx
							if sx < 0 || sx >= w {
								continue
							}
							dst[y*w+x] += wt * src[sy*w+sx]
						}
					}
				}
			}
		}
	}
	return out, nil
}

type affine struct {
	scale, shift float32
}

func (l affine) forward(in *Tensor) (*Tensor, error) {
	out := &Tensor{Shape: in.Shape, Data: make([]float32, len(in.Data))}
	for i, v := range in.Data {
		out.Data[i] = v*l.scale + l.shift
	}
	return out, nil
}

type sigmoid struct{}

func (sigmoid) forward(in *Tensor) (*Tensor, error) {
	out := &Tensor{Shape: in.Shape, Data: make([]float32, len(in.Data))}
	for i, v := range in.Data {
		out.Data[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
	return out, nil
}

// pool is a stride-1 separable max or min filter. Taps outside the plane are
// ignored rather than padded.
type pool struct {
	kw, kh int
	max    bool
}

func (l pool) forward(in *Tensor) (*Tensor, error) {
	c, h, w, err := in.CHW()
	if err != nil {
		return nil, err
	}
	out := NewTensor(1, c, h, w)
	tmp := make([]float32, h*w)
	rx, ry := l.kw/2, l.kh/2
	better := func(a, b float32) bool { return a < b }
	if l.max {
		better = func(a, b float32) bool { return a > b }
	}

	for ch := 0; ch < c; ch++ {
		src := in.Plane(ch)
		dst := out.Plane(ch)
		for y := 0; y < h; y++ {
			row := src[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				lo, hi := maxInt(0, x-rx), minInt(w-1, x+rx)
				v := row[lo]
				for i := lo + 1; i <= hi; i++ {
					if better(row[i], v) {
						v = row[i]
					}
				}
				tmp[y*w+x] = v
			}
		}
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				lo, hi := maxInt(0, y-ry), minInt(h-1, y+ry)
				v := tmp[lo*w+x]
				for i := lo + 1; i <= hi; i++ {
					if better(tmp[i*w+x], v) {
						v = tmp[i*w+x]
					}
				}
				dst[y*w+x] = v
			}
		}
	}
	return out, nil
}

// softmax normalizes along the last axis.
type softmax struct{}

func (softmax) forward(in *Tensor) (*Tensor, error) {
	if len(in.Shape) == 0 {
		return nil, fmt.Errorf("empty shape")
	}
	n := in.Shape[len(in.Shape)-1]
	if n == 0 || len(in.Data)%n != 0 {
		return nil, fmt.Errorf("bad shape %v", in.Shape)
	}
	out := &Tensor{Shape: in.Shape, Data: make([]float32, len(in.Data))}
	for off := 0; off < len(in.Data); off += n {
		row := in.Data[off : off+n]
		peak := row[0]
		for _, v := range row[1:] {
			if v > peak {
				peak = v
			}
		}
		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - peak))
			out.Data[off+i] = float32(e)
			sum += e
		}
		for i := range row {
			out.Data[off+i] = float32(float64(out.Data[off+i]) / sum)
		}
	}
	return out, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
