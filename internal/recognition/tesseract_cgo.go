//go:build cgo && linux

package recognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/ocr-engine/internal/config"
	"github.com/ironsheep/ocr-engine/internal/dictionary"
	"github.com/ironsheep/ocr-engine/internal/imaging"
	"github.com/ironsheep/ocr-engine/internal/inference"
	"github.com/ironsheep/ocr-engine/internal/logger"
	"github.com/ironsheep/ocr-engine/internal/ocrerr"
)

var registerCacheCleanup sync.Once

// tesseract transcribes crops with Tesseract through gosseract. A client is
// created per call because gosseract clients are not goroutine safe.
type tesseract struct {
	dict      *dictionary.Dictionary
	cfg       config.RecognitionConfig
	whitelist string
}

// NewTesseract returns a Tesseract backed recognizer limited to the
// characters in dict.
func NewTesseract(dict *dictionary.Dictionary, cfg config.RecognitionConfig) (Recognizer, error) {
	if TesseractVersion() == "" {
		return nil, fmt.Errorf("%w: tesseract library not found", ocrerr.ErrBackendUnavailable)
	}
	registerCacheCleanup.Do(func() {
		inference.OnShutdown(gosseract.ClearPersistentCache)
	})

	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	cfg.Language = lang
	return &tesseract{
		dict:      dict,
		cfg:       cfg,
		whitelist: strings.Join(dict.Entries(), ""),
	}, nil
}

// TesseractVersion returns the linked Tesseract version, or "" when the
// library cannot be initialized.
func TesseractVersion() (v string) {
	defer func() {
		if recover() != nil {
			v = ""
		}
	}()
	return gosseract.Version()
}

func (t *tesseract) Backend() string { return config.BackendTesseract }

func (t *tesseract) Close() error { return nil }

func (t *tesseract) Recognize(ctx context.Context, img image.Image, box image.Rectangle) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	crop := imaging.Crop(img, box)
	if crop == nil {
		return Result{}, nil
	}
	var src image.Image = crop
	if t.cfg.AutoInvert && imaging.IsDarkBackground(crop) {
		src = imaging.Invert(crop)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return Result{}, fmt.Errorf("failed to encode crop: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.cfg.Language); err != nil {
		return Result{}, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return Result{}, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if t.whitelist != "" {
		if err := client.SetWhitelist(t.whitelist); err != nil {
			return Result{}, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("failed to set image: %w", err)
	}

	// Word boxes carry per-word confidence; the text is rebuilt from them.
	words, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{}, fmt.Errorf("OCR failed: %w", err)
	}

	parts := make([]string, 0, len(words))
	var sum float64
	for _, w := range words {
		word := strings.TrimSpace(w.Word)
		if word == "" {
			continue
		}
		parts = append(parts, t.dict.Normalize(word))
		sum += float64(w.Confidence) / 100.0
	}
	if len(parts) == 0 {
		return Result{}, nil
	}

	res := Result{
		Text:       strings.Join(parts, " "),
		Confidence: clampUnit(sum / float64(len(parts))),
	}
	log := logger.FromContext(ctx, "recognition")
	log.Debug().
		Str("backend", config.BackendTesseract).
		Stringer("box", box).
		Str("text", res.Text).
		Msg("box recognized")
	return res, nil
}
