package recognition

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/ironsheep/ocr-engine/internal/config"
	"github.com/ironsheep/ocr-engine/internal/dictionary"
	"github.com/ironsheep/ocr-engine/internal/imaging"
	"github.com/ironsheep/ocr-engine/internal/inference"
	"github.com/ironsheep/ocr-engine/internal/logger"
	"github.com/ironsheep/ocr-engine/internal/ocrerr"
)

// Native recognizes text with a recognition model and greedy CTC decoding.
type Native struct {
	model   Runner
	decoder Decoder
	cfg     config.RecognitionConfig
}

// NewNative checks that model and dict agree on the number of classes and
// returns a recognizer for them.
func NewNative(model Runner, dict *dictionary.Dictionary, cfg config.RecognitionConfig) (*Native, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no recognition model", ocrerr.ErrInvalidModel)
	}
	if model.NumClasses() != dict.NumClasses() {
		return nil, fmt.Errorf("%w: model has %d classes, dictionary needs %d",
			ocrerr.ErrClassMismatch, model.NumClasses(), dict.NumClasses())
	}
	return &Native{
		model: model,
		decoder: Decoder{
			Dict:          dict,
			MinScore:      cfg.MinScore,
			PunctMinScore: cfg.PunctMinScore,
		},
		cfg: cfg,
	}, nil
}

// Backend implements Recognizer.
func (n *Native) Backend() string { return config.BackendNative }

// Close implements Recognizer. The model holds no resources.
func (n *Native) Close() error { return nil }

// Recognize implements Recognizer.
func (n *Native) Recognize(ctx context.Context, img image.Image, box image.Rectangle) (Result, error) {
	crop := imaging.Crop(img, box)
	if crop == nil {
		return Result{}, nil
	}

	line := n.prepare(crop)
	out, err := n.model.Run(ctx, inference.FromImage(line, n.model.Input()))
	if err != nil {
		return Result{}, fmt.Errorf("recognition inference: %w", err)
	}
	res, err := n.decoder.Decode(out)
	if err != nil {
		return Result{}, err
	}

	log := logger.FromContext(ctx, "recognition")
	log.Debug().
		Stringer("box", box).
		Int("steps", out.Shape[1]).
		Str("text", res.Text).
		Float64("confidence", res.Confidence).
		Msg("box recognized")
	return res, nil
}

// prepare brings a crop to the model's input height. Light-on-dark crops
// are inverted first when AutoInvert is set. Taller crops are scaled down;
// shorter ones are centred vertically on white so glyphs keep their size.
func (n *Native) prepare(crop *image.NRGBA) *image.NRGBA {
	if n.cfg.AutoInvert && imaging.IsDarkBackground(crop) {
		crop = imaging.ToNRGBA(imaging.Invert(crop))
	}

	h := n.model.Input().Height
	w, ch := crop.Bounds().Dx(), crop.Bounds().Dy()
	maxW := n.cfg.MaxWidth

	switch {
	case h <= 0:
		if maxW > 0 && w > maxW {
			return imaging.ResizeToHeight(crop, maxInt(1, ch*maxW/w), maxW)
		}
		return crop
	case ch > h:
		return imaging.ResizeToHeight(crop, h, maxW)
	}

	if maxW > 0 && w > maxW {
		crop = imaging.ResizeToHeight(crop, maxInt(1, ch*maxW/w), maxW)
		w, ch = crop.Bounds().Dx(), crop.Bounds().Dy()
	}
	if ch == h {
		return crop
	}
	return imaging.PadTo(crop, w, h, 0, (h-ch)/2, color.White)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
