package recognition

import (
	"context"
	"fmt"
	"image"

	"github.com/ironsheep/ocr-engine/internal/config"
	"github.com/ironsheep/ocr-engine/internal/dictionary"
	"github.com/ironsheep/ocr-engine/internal/inference"
)

// Result is the transcription of one box.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0.0 to 1.0; 0 when Text is empty
}

// Recognizer transcribes a box of an image.
type Recognizer interface {
	// Recognize reads the text inside box. box is in img coordinates and is
	// clipped to the image; a box outside the image yields an empty Result.
	Recognize(ctx context.Context, img image.Image, box image.Rectangle) (Result, error)

	// Backend names the implementation ("native" or "tesseract").
	Backend() string

	Close() error
}

// Runner is the part of a recognition model the native backend needs. Run
// returns [1,T,C] class probabilities for a [1,C,H,W] input.
type Runner interface {
	Run(ctx context.Context, in *inference.Tensor) (*inference.Tensor, error)
	Input() inference.InputSpec
	NumClasses() int
}

// New builds the recognizer selected by cfg.Backend. The model is required
// by the native backend and ignored by tesseract.
func New(model Runner, dict *dictionary.Dictionary, cfg config.RecognitionConfig) (Recognizer, error) {
	switch cfg.Backend {
	case "", config.BackendNative:
		return NewNative(model, dict, cfg)
	case config.BackendTesseract:
		return NewTesseract(dict, cfg)
	default:
		return nil, fmt.Errorf("unknown recognition backend %q", cfg.Backend)
	}
}
