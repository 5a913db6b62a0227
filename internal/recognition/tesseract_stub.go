//go:build !(cgo && linux)

package recognition

import (
	"fmt"

	"github.com/ironsheep/ocr-engine/internal/config"
	"github.com/ironsheep/ocr-engine/internal/dictionary"
	"github.com/ironsheep/ocr-engine/internal/ocrerr"
)

// NewTesseract reports that the Tesseract backend was not compiled in.
func NewTesseract(_ *dictionary.Dictionary, _ config.RecognitionConfig) (Recognizer, error) {
	return nil, fmt.Errorf("%w: tesseract requires cgo on linux", ocrerr.ErrBackendUnavailable)
}

// TesseractVersion returns "" when Tesseract is not compiled in.
func TesseractVersion() string { return "" }
