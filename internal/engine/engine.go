// Package engine wires the detection and recognition stages into a single
// OCR pipeline over loaded models and a dictionary.
package engine

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/ocr-engine/internal/config"
	"github.com/ironsheep/ocr-engine/internal/detection"
	"github.com/ironsheep/ocr-engine/internal/dictionary"
	"github.com/ironsheep/ocr-engine/internal/imaging"
	"github.com/ironsheep/ocr-engine/internal/inference"
	"github.com/ironsheep/ocr-engine/internal/logger"
	"github.com/ironsheep/ocr-engine/internal/ocrerr"
	"github.com/ironsheep/ocr-engine/internal/recognition"
	"github.com/ironsheep/ocr-engine/internal/telemetry"
)

// TextBox is one recognized region.
type TextBox struct {
	// Bounds is the region in original image coordinates.
	Bounds detection.Bounds `json:"bounds"`

	// DetScore is the detection confidence (0.0 to 1.0).
	DetScore float64 `json:"det_score"`

	// Text may be empty when nothing in the box could be read.
	Text string `json:"text"`

	// RecScore is the recognition confidence (0.0 to 1.0), 0 for empty text.
	RecScore float64 `json:"rec_score"`
}

// Engine runs detection then recognition. Its models and dictionary are
// read-only after Open, so Recognize may be called concurrently. Close
// must not race with in-flight calls.
type Engine struct {
	cfg    config.Config
	det    *detection.Detector
	rec    recognition.Recognizer
	dict   *dictionary.Dictionary
	closed atomic.Bool
}

// Open loads the detection model, recognition model and dictionary named by
// paths. Either all three load and validate or no engine is returned.
func Open(paths config.ModelPaths, cfg config.Config) (*Engine, error) {
	const op = "create"

	det, err := inference.Load(paths.Det)
	if err != nil {
		return nil, ocrerr.Wrap(err, op, ocrerr.KindEngineCreation, "detection model")
	}
	rec, err := inference.Load(paths.Rec)
	if err != nil {
		return nil, ocrerr.Wrap(err, op, ocrerr.KindEngineCreation, "recognition model")
	}
	dict, err := dictionary.Load(paths.Dict, dictOptions(cfg)...)
	if err != nil {
		return nil, ocrerr.Wrap(err, op, ocrerr.KindEngineCreation, "dictionary")
	}
	return build(det, rec, dict, cfg)
}

// OpenBytes is Open for artifacts already held in memory.
func OpenBytes(detModel, recModel, dictData []byte, cfg config.Config) (*Engine, error) {
	const op = "create"

	det, err := inference.Parse(detModel)
	if err != nil {
		return nil, ocrerr.Wrap(err, op, ocrerr.KindEngineCreation, "detection model")
	}
	rec, err := inference.Parse(recModel)
	if err != nil {
		return nil, ocrerr.Wrap(err, op, ocrerr.KindEngineCreation, "recognition model")
	}
	dict, err := dictionary.FromBytes(dictData, dictOptions(cfg)...)
	if err != nil {
		return nil, ocrerr.Wrap(err, op, ocrerr.KindEngineCreation, "dictionary")
	}
	return build(det, rec, dict, cfg)
}

func dictOptions(cfg config.Config) []dictionary.Option {
	if cfg.Recognition.CaseInsensitive {
		return []dictionary.Option{dictionary.WithCaseInsensitive()}
	}
	return nil
}

func build(det, rec *inference.Model, dict *dictionary.Dictionary, cfg config.Config) (*Engine, error) {
	const op = "create"

	if err := cfg.Validate(); err != nil {
		return nil, ocrerr.Wrap(err, op, ocrerr.KindEngineCreation, "config")
	}
	if det.Kind() != inference.KindDetection {
		return nil, ocrerr.Wrap(fmt.Errorf("%w: %s model given as detection model", ocrerr.ErrInvalidModel, det.Kind()),
			op, ocrerr.KindEngineCreation, "detection model")
	}
	if rec.Kind() != inference.KindRecognition {
		return nil, ocrerr.Wrap(fmt.Errorf("%w: %s model given as recognition model", ocrerr.ErrInvalidModel, rec.Kind()),
			op, ocrerr.KindEngineCreation, "recognition model")
	}
	if err := dryRun(det, rec, cfg); err != nil {
		return nil, err
	}

	log := logger.WithComponent("engine")
	log.Debug().
		Str("det_model", det.Name()).
		Str("rec_model", rec.Name()).
		Msg("models checked")
	return assemble(det, rec, dict, cfg)
}

// dryRunSide is the edge of the blank page pushed through both models
// before an engine is handed out.
const dryRunSide = 32

// dryRun runs both models once so that a model whose layers load but whose
// output has the wrong shape fails creation instead of the first call.
func dryRun(det, rec *inference.Model, cfg config.Config) error {
	const op = "create"
	ctx := context.Background()

	page := image.NewGray(image.Rect(0, 0, dryRunSide, dryRunSide))
	for i := range page.Pix {
		page.Pix[i] = 0xFF
	}
	if _, err := detection.New(det, cfg.Detection).Detect(ctx, page); err != nil {
		return ocrerr.Wrap(fmt.Errorf("%w: dry run: %v", ocrerr.ErrInvalidModel, err),
			op, ocrerr.KindEngineCreation, "detection model")
	}

	in := rec.Input()
	h := in.Height
	if h <= 0 {
		h = dryRunSide
	}
	if _, err := rec.Run(ctx, inference.NewTensor(1, in.Channels, h, dryRunSide)); err != nil {
		return ocrerr.Wrap(fmt.Errorf("%w: dry run: %v", ocrerr.ErrInvalidModel, err),
			op, ocrerr.KindEngineCreation, "recognition model")
	}
	return nil
}

// New assembles an engine from runners the caller has already checked.
// Unlike Open it does not dry-run them, so model faults surface as
// detection or recognition errors on the first call.
func New(det detection.Runner, rec recognition.Runner, dict *dictionary.Dictionary, cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ocrerr.Wrap(err, "create", ocrerr.KindEngineCreation, "config")
	}
	return assemble(det, rec, dict, cfg)
}

func assemble(det detection.Runner, rec recognition.Runner, dict *dictionary.Dictionary, cfg config.Config) (*Engine, error) {
	const op = "create"

	if rec.NumClasses() != dict.NumClasses() {
		return nil, ocrerr.Wrap(fmt.Errorf("%w: model has %d classes, dictionary needs %d",
			ocrerr.ErrClassMismatch, rec.NumClasses(), dict.NumClasses()),
			op, ocrerr.KindEngineCreation, "recognition model")
	}

	recognizer, err := recognition.New(rec, dict, cfg.Recognition)
	if err != nil {
		return nil, ocrerr.Wrap(err, op, ocrerr.KindEngineCreation, "recognizer")
	}
	inference.EnsureWorkers(cfg.Runtime.Workers)

	log := logger.WithComponent("engine")
	log.Info().
		Int("classes", dict.NumClasses()).
		Str("backend", recognizer.Backend()).
		Int("workers", inference.Workers()).
		Msg("engine created")

	return &Engine{
		cfg:  cfg,
		det:  detection.New(det, cfg.Detection),
		rec:  recognizer,
		dict: dict,
	}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() config.Config { return e.cfg }

// Backend names the recognition backend in use.
func (e *Engine) Backend() string { return e.rec.Backend() }

// Recognize loads the image at path and runs the full pipeline on it.
func (e *Engine) Recognize(ctx context.Context, path string) ([]TextBox, error) {
	if e.closed.Load() {
		return nil, ocrerr.New("recognize", ocrerr.KindHandle, ocrerr.ErrEngineClosed)
	}
	img, _, err := imaging.Load(path)
	if err != nil {
		return nil, ocrerr.Wrap(err, "recognize", ocrerr.KindImageLoad, path)
	}
	return e.RecognizeImage(ctx, img)
}

// RecognizeImage detects text regions in img and reads each of them.
// Boxes are returned in detection order; recognition of individual boxes
// runs on the shared worker pool.
func (e *Engine) RecognizeImage(ctx context.Context, img image.Image) ([]TextBox, error) {
	if e.closed.Load() {
		return nil, ocrerr.New("recognize", ocrerr.KindHandle, ocrerr.ErrEngineClosed)
	}

	requestID := uuid.New().String()
	log := logger.WithRequestID(logger.WithComponent("engine"), requestID)
	ctx = log.WithContext(ctx)

	start := time.Now()
	boxes, err := e.det.Detect(ctx, img)
	telemetry.RecordStage(ctx, telemetry.StageDetection, time.Since(start))
	if err != nil {
		return nil, ocrerr.Wrap(err, "detect", ocrerr.KindDetection, "")
	}

	start = time.Now()
	results := make([]TextBox, len(boxes))
	err = inference.ForEach(len(boxes), func(i int) error {
		b := boxes[i]
		res, err := e.rec.Recognize(ctx, img, b.Bounds.Rect())
		if err != nil {
			return fmt.Errorf("box %d: %w", i, err)
		}
		results[i] = TextBox{
			Bounds:   b.Bounds,
			DetScore: b.Score,
			Text:     res.Text,
			RecScore: res.Confidence,
		}
		return nil
	})
	telemetry.RecordStage(ctx, telemetry.StageRecognition, time.Since(start))
	if err != nil {
		return nil, ocrerr.Wrap(err, "recognize", ocrerr.KindRecognition, "")
	}

	log.Debug().
		Int("boxes", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("image recognized")
	return results, nil
}

// Detect loads the image at path and returns its text regions without
// reading them.
func (e *Engine) Detect(ctx context.Context, path string) ([]detection.Box, error) {
	if e.closed.Load() {
		return nil, ocrerr.New("detect", ocrerr.KindHandle, ocrerr.ErrEngineClosed)
	}
	img, _, err := imaging.Load(path)
	if err != nil {
		return nil, ocrerr.Wrap(err, "detect", ocrerr.KindImageLoad, path)
	}
	return e.DetectImage(ctx, img)
}

// DetectImage runs only the detection stage on img.
func (e *Engine) DetectImage(ctx context.Context, img image.Image) ([]detection.Box, error) {
	if e.closed.Load() {
		return nil, ocrerr.New("detect", ocrerr.KindHandle, ocrerr.ErrEngineClosed)
	}
	log := logger.WithRequestID(logger.WithComponent("engine"), uuid.New().String())
	ctx = log.WithContext(ctx)

	start := time.Now()
	boxes, err := e.det.Detect(ctx, img)
	telemetry.RecordStage(ctx, telemetry.StageDetection, time.Since(start))
	if err != nil {
		return nil, ocrerr.Wrap(err, "detect", ocrerr.KindDetection, "")
	}
	log.Debug().Int("boxes", len(boxes)).Msg("image detected")
	return boxes, nil
}

// RecognizeLine loads the image at path and reads it as a single text
// line, skipping detection.
func (e *Engine) RecognizeLine(ctx context.Context, path string) (recognition.Result, error) {
	if e.closed.Load() {
		return recognition.Result{}, ocrerr.New("recognize", ocrerr.KindHandle, ocrerr.ErrEngineClosed)
	}
	img, _, err := imaging.Load(path)
	if err != nil {
		return recognition.Result{}, ocrerr.Wrap(err, "recognize", ocrerr.KindImageLoad, path)
	}
	return e.RecognizeLineImage(ctx, img)
}

// RecognizeLineImage reads the whole of img as one pre-cropped text line.
func (e *Engine) RecognizeLineImage(ctx context.Context, img image.Image) (recognition.Result, error) {
	if e.closed.Load() {
		return recognition.Result{}, ocrerr.New("recognize", ocrerr.KindHandle, ocrerr.ErrEngineClosed)
	}
	log := logger.WithRequestID(logger.WithComponent("engine"), uuid.New().String())
	ctx = log.WithContext(ctx)

	start := time.Now()
	res, err := e.rec.Recognize(ctx, img, img.Bounds())
	telemetry.RecordStage(ctx, telemetry.StageRecognition, time.Since(start))
	if err != nil {
		return recognition.Result{}, ocrerr.Wrap(err, "recognize", ocrerr.KindRecognition, "")
	}
	return res, nil
}

// Close releases the engine. A second Close reports ErrEngineClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ocrerr.New("destroy", ocrerr.KindDestroy, ocrerr.ErrEngineClosed)
	}
	if err := e.rec.Close(); err != nil {
		return ocrerr.Wrap(err, "destroy", ocrerr.KindDestroy, "recognizer")
	}
	log := logger.WithComponent("engine")
	log.Debug().Msg("engine closed")
	return nil
}
