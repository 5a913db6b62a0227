package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/ironsheep/ocr-engine/internal/config"
	"github.com/ironsheep/ocr-engine/internal/imaging"
	"github.com/ironsheep/ocr-engine/internal/inference"
	"github.com/ironsheep/ocr-engine/internal/logger"
)

// padMultiple is the stride the detection input is padded to.
const padMultiple = 32

// Runner is the part of a detection model the detector needs. The model
// returns a [1,1,H,W] text probability map for a [1,C,H,W] input.
type Runner interface {
	Run(ctx context.Context, in *inference.Tensor) (*inference.Tensor, error)
	Input() inference.InputSpec
}

// Detector locates text regions in images. It is safe for concurrent use
// when its Runner is.
type Detector struct {
	model Runner
	cfg   config.DetectionConfig
}

// New returns a Detector running model with the given post-processing
// settings.
func New(model Runner, cfg config.DetectionConfig) *Detector {
	return &Detector{model: model, cfg: cfg}
}

// Detect finds text regions in img and returns them in original image
// coordinates, ordered top to bottom then left to right. An image without
// text yields an empty slice and no error.
//
// # Algorithm
//
//  1. Preprocess: optional contrast and denoise, shrink so the long side fits
//     MaxSideLen, pad right and bottom to a multiple of 32 by repeating edge
//     pixels, normalize with the model's mean and std
//  2. Inference: run the model and crop the map back to the unpadded area
//  3. Components: threshold at BinaryThreshold and group 8-connected pixels
//  4. Filtering: drop regions below BoxThreshold or MinBoxSize
//  5. Geometry: expand by BorderSize and scale back to the original image
//  6. NMS at NMSThreshold, optional merging, positional sort
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Box, error) {
	log := logger.FromContext(ctx, "detection")
	bounds := img.Bounds()
	if bounds.Empty() {
		return []Box{}, nil
	}

	src := imaging.Enhance(img, d.cfg.Contrast, d.cfg.DenoiseSigma)
	resized, scale := imaging.FitLongSide(src, d.cfg.MaxSideLen)
	w, h := resized.Bounds().Dx(), resized.Bounds().Dy()
	padded := imaging.PadEdge(resized, roundUp(w, padMultiple), roundUp(h, padMultiple))

	out, err := d.model.Run(ctx, inference.FromImage(padded, d.model.Input()))
	if err != nil {
		return nil, fmt.Errorf("detection inference: %w", err)
	}
	prob, err := cropMap(out, w, h)
	if err != nil {
		return nil, err
	}

	components := findComponents(prob, w, h, float32(d.cfg.BinaryThreshold))
	boxes := d.toBoxes(components, w, h, scale, Point{X: bounds.Min.X, Y: bounds.Min.Y}, bounds.Dx(), bounds.Dy())
	candidates := len(boxes)
	boxes = nms(boxes, d.cfg.NMSThreshold)
	if d.cfg.MergeBoxes {
		boxes = mergeBoxes(boxes, d.cfg.MergeThreshold)
	}
	sortBoxes(boxes)

	log.Debug().
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Float64("scale", scale).
		Int("components", len(components)).
		Int("candidates", candidates).
		Int("boxes", len(boxes)).
		Msg("detection complete")

	return boxes, nil
}

// cropMap returns the top-left w x h window of a [1,1,H,W] probability map.
func cropMap(out *inference.Tensor, w, h int) ([]float32, error) {
	c, mh, mw, err := out.CHW()
	if err != nil {
		return nil, fmt.Errorf("detection output: %w", err)
	}
	if c != 1 || mh < h || mw < w {
		return nil, fmt.Errorf("detection output %v smaller than input %dx%d", out.Shape, w, h)
	}
	if mw == w && mh == h {
		return out.Data, nil
	}
	prob := make([]float32, w*h)
	for y := 0; y < h; y++ {
		copy(prob[y*w:(y+1)*w], out.Data[y*mw:y*mw+w])
	}
	return prob, nil
}

func roundUp(v, m int) int {
	return (v + m - 1) / m * m
}
