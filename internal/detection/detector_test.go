package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/ocr-engine/internal/config"
	"github.com/ironsheep/ocr-engine/internal/inference"
)

// createTestImage creates a solid color test image
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// fillRect paints a solid black rectangle, X2/Y2 exclusive.
func fillRect(img *image.RGBA, x1, y1, x2, y2 int) {
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			img.Set(x, y, color.Black)
		}
	}
}

// inkRunner reports probability p wherever the red channel is dark.
type inkRunner struct {
	p   float32
	err error
}

func (r inkRunner) Input() inference.InputSpec {
	return inference.InputSpec{Channels: 3, Mean: []float32{0, 0, 0}, Std: []float32{1, 1, 1}}
}

func (r inkRunner) Run(_ context.Context, in *inference.Tensor) (*inference.Tensor, error) {
	if r.err != nil {
		return nil, r.err
	}
	_, h, w, err := in.CHW()
	if err != nil {
		return nil, err
	}
	out := inference.NewTensor(1, 1, h, w)
	red := in.Plane(0)
	for i, v := range red {
		if v < 0.5 {
			out.Data[i] = r.p
		}
	}
	return out, nil
}

func newTestDetector(p float32) *Detector {
	return New(inkRunner{p: p}, config.Default().Detection)
}

func TestDetect_TwoRegions(t *testing.T) {
	img := createTestImage(200, 100, color.White)
	fillRect(img, 100, 50, 150, 70)
	fillRect(img, 10, 10, 40, 30)

	boxes, err := newTestDetector(0.9).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, boxes, 2)

	assert.Equal(t, Bounds{X1: 8, Y1: 8, X2: 42, Y2: 32}, boxes[0].Bounds)
	assert.Equal(t, Bounds{X1: 98, Y1: 48, X2: 152, Y2: 72}, boxes[1].Bounds)
	for _, b := range boxes {
		assert.InDelta(t, 0.9, b.Score, 1e-6)
	}
}

func TestDetect_EmptyImage(t *testing.T) {
	boxes, err := newTestDetector(1).Detect(context.Background(), createTestImage(120, 80, color.White))
	require.NoError(t, err)
	assert.NotNil(t, boxes)
	assert.Empty(t, boxes)
}

func TestDetect_Filters(t *testing.T) {
	img := createTestImage(100, 100, color.White)
	fillRect(img, 10, 10, 13, 13) // below MinBoxSize
	fillRect(img, 50, 50, 80, 70)

	tests := []struct {
		name string
		p    float32
		want int
	}{
		{"confident", 0.9, 1},
		{"below box threshold", 0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boxes, err := newTestDetector(tt.p).Detect(context.Background(), img)
			require.NoError(t, err)
			assert.Len(t, boxes, tt.want)
		})
	}
}

func TestDetect_ClampsBorder(t *testing.T) {
	img := createTestImage(50, 40, color.White)
	fillRect(img, 0, 0, 20, 10)

	boxes, err := newTestDetector(1).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, Bounds{X1: 0, Y1: 0, X2: 22, Y2: 12}, boxes[0].Bounds)
}

func TestDetect_ScalesBackToOriginal(t *testing.T) {
	img := createTestImage(2000, 100, color.White)
	fillRect(img, 200, 20, 600, 80)

	boxes, err := newTestDetector(1).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, boxes, 1)

	want := Bounds{X1: 200, Y1: 20, X2: 600, Y2: 80}
	assert.Greater(t, IoU(want, boxes[0].Bounds), 0.8, "got %+v", boxes[0].Bounds)
}

func TestDetect_SubImageOrigin(t *testing.T) {
	img := createTestImage(200, 100, color.White)
	fillRect(img, 120, 60, 160, 80)
	sub := img.SubImage(image.Rect(100, 50, 200, 100))

	boxes, err := newTestDetector(1).Detect(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, Bounds{X1: 118, Y1: 58, X2: 162, Y2: 82}, boxes[0].Bounds)
}

func TestDetect_Deterministic(t *testing.T) {
	img := createTestImage(300, 120, color.White)
	fillRect(img, 200, 10, 260, 30)
	fillRect(img, 10, 10, 60, 30)
	fillRect(img, 10, 70, 90, 100)

	d := newTestDetector(1)
	first, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := d.Detect(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	require.Len(t, first, 3)
	assert.Equal(t, 8, first[0].Bounds.X1)
	assert.Equal(t, 198, first[1].Bounds.X1)
	assert.Equal(t, 68, first[2].Bounds.Y1)
}

func TestDetect_MergeBoxes(t *testing.T) {
	img := createTestImage(200, 60, color.White)
	fillRect(img, 10, 10, 40, 30)
	fillRect(img, 50, 12, 90, 30)

	cfg := config.Default().Detection
	cfg.MergeBoxes = true
	cfg.MergeThreshold = 10

	boxes, err := New(inkRunner{p: 1}, cfg).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, Bounds{X1: 8, Y1: 8, X2: 92, Y2: 32}, boxes[0].Bounds)
}

func TestDetect_ModelError(t *testing.T) {
	boom := errors.New("boom")
	d := New(inkRunner{err: boom}, config.Default().Detection)
	_, err := d.Detect(context.Background(), createTestImage(10, 10, color.White))
	assert.ErrorIs(t, err, boom)
}
