package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestBorderLightness(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		want float64
	}{
		{"white", createInMemoryImage(10, 10, color.White), 1},
		{"black", createInMemoryImage(10, 10, color.Black), 0},
		{"single pixel", createInMemoryImage(1, 1, color.Black), 0},
		{"transparent", image.NewNRGBA(image.Rect(0, 0, 5, 5)), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BorderLightness(tt.img); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDarkBackground(t *testing.T) {
	// Dark frame with a white interior still counts as a dark background.
	img := createInMemoryImage(20, 20, color.White)
	for i := 0; i < 20; i++ {
		img.Set(i, 0, color.Black)
		img.Set(i, 19, color.Black)
		img.Set(0, i, color.Black)
		img.Set(19, i, color.Black)
	}
	if !IsDarkBackground(img) {
		t.Error("expected dark background")
	}
	if IsDarkBackground(createInMemoryImage(20, 20, color.White)) {
		t.Error("white image reported as dark")
	}
}
