package ocr

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/metric"

	"github.com/ironsheep/ocr-engine/internal/config"
	"github.com/ironsheep/ocr-engine/internal/engine"
	"github.com/ironsheep/ocr-engine/internal/inference"
	"github.com/ironsheep/ocr-engine/internal/logger"
	"github.com/ironsheep/ocr-engine/internal/telemetry"
)

// version is overridden at link time with -ldflags "-X".
var version = "1.0.0"

// Config holds the detection, recognition and runtime settings of an engine.
type Config = config.Config

// DefaultConfig returns the settings CreateEngine uses.
func DefaultConfig() Config {
	return config.Default()
}

// CreateEngine loads the detection model, recognition model and dictionary
// from the given files using DefaultConfig. It returns NullHandle if any of
// them cannot be loaded or they do not fit together.
func CreateEngine(detModel, recModel, dictFile string) Handle {
	return CreateEngineWithConfig(detModel, recModel, dictFile, config.Default())
}

// CreateEngineWithConfig is CreateEngine with explicit settings. The model
// paths in cfg are ignored.
func CreateEngineWithConfig(detModel, recModel, dictFile string, cfg Config) (h Handle) {
	defer recoverCreate(&h)

	paths := config.ModelPaths{Det: detModel, Rec: recModel, Dict: dictFile}
	cfg.Models = paths
	e, err := engine.Open(paths, cfg)
	if err != nil {
		logCreateFailure(err)
		return NullHandle
	}
	return register(e)
}

// CreateEngineWithBytes builds an engine from in-memory model and
// dictionary contents.
func CreateEngineWithBytes(detModel, recModel, dict []byte, cfg Config) (h Handle) {
	defer recoverCreate(&h)

	e, err := engine.OpenBytes(detModel, recModel, dict, cfg)
	if err != nil {
		logCreateFailure(err)
		return NullHandle
	}
	return register(e)
}

// RecognizeSimple reads all text in the image at path and returns it as one
// string per detected region, in reading order.
func RecognizeSimple(h Handle, path string) (res SimpleResult) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			logPanic("recognize_simple", r)
			res = simpleFailure(RecognitionFailed)
		}
		telemetry.RecordRecognition(ctx, "simple", res.Status.String(), res.Count, res.Status == Success)
	}()

	boxes, status := recognize(ctx, h, path)
	if status != Success {
		return simpleFailure(status)
	}
	return marshalSimple(boxes)
}

// RecognizeDetailed reads all text in the image at path and returns every
// region with its position and confidences, in reading order. An image
// without text yields Success and no boxes.
func RecognizeDetailed(h Handle, path string) (res DetailedResult) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			logPanic("recognize_detailed", r)
			res = detailedFailure(RecognitionFailed)
		}
		telemetry.RecordRecognition(ctx, "detailed", res.Status.String(), res.Count, res.Status == Success)
	}()

	boxes, status := recognize(ctx, h, path)
	if status != Success {
		return detailedFailure(status)
	}
	return marshalDetailed(boxes)
}

func recognize(ctx context.Context, h Handle, path string) ([]engine.TextBox, Status) {
	e, ok := lookup(h)
	if !ok {
		return nil, InvalidHandle
	}
	boxes, err := e.Recognize(ctx, path)
	if err != nil {
		return nil, failure(err, h, path, RecognitionFailed, "recognition failed")
	}
	return boxes, Success
}

// failure maps err to a status and logs it.
func failure(err error, h Handle, path string, fallback Status, msg string) Status {
	status := statusOf(err, fallback)
	log := logger.WithComponent("ocr")
	log.Warn().
		Err(err).
		Uint64("handle", uint64(h)).
		Str("path", path).
		Str("status", status.String()).
		Msg(msg)
	return status
}

// DetectBoxes finds the text regions of the image at path without reading
// them. An image without text yields Success and no regions.
func DetectBoxes(h Handle, path string) (res DetectResult) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			logPanic("detect", r)
			res = detectFailure(DetectionFailed)
		}
		telemetry.RecordRecognition(ctx, "detect", res.Status.String(), res.Count, res.Status == Success)
	}()

	e, ok := lookup(h)
	if !ok {
		return detectFailure(InvalidHandle)
	}
	boxes, err := e.Detect(ctx, path)
	if err != nil {
		return detectFailure(failure(err, h, path, DetectionFailed, "detection failed"))
	}
	return marshalRegions(boxes)
}

// RecognizeLine reads the whole image at path as one pre-cropped text
// line, skipping detection.
func RecognizeLine(h Handle, path string) (res LineResult) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			logPanic("recognize_line", r)
			res = LineResult{Status: RecognitionFailed}
		}
		count := 0
		if res.Text != "" {
			count = 1
		}
		telemetry.RecordRecognition(ctx, "line", res.Status.String(), count, res.Status == Success)
	}()

	e, ok := lookup(h)
	if !ok {
		return LineResult{Status: InvalidHandle}
	}
	line, err := e.RecognizeLine(ctx, path)
	if err != nil {
		return LineResult{Status: failure(err, h, path, RecognitionFailed, "line recognition failed")}
	}
	return marshalLine(line)
}

// DestroyEngine releases the engine behind h. The handle is invalid
// afterwards whatever the outcome; destroying it again reports
// InvalidHandle.
func DestroyEngine(h Handle) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			logPanic("destroy", r)
			status = DestroyFailed
		}
	}()

	e, ok := unregister(h)
	if !ok {
		return InvalidHandle
	}
	if err := e.Close(); err != nil {
		log := logger.WithComponent("ocr")
		log.Error().Err(err).Uint64("handle", uint64(h)).Msg("failed to destroy engine")
		return statusOf(err, DestroyFailed)
	}
	return Success
}

// Cleanup destroys every engine that is still alive and releases the
// process-wide worker pool and backend caches. Call it once at shutdown.
// It is safe to call repeatedly; creating a new engine afterwards starts
// over with fresh global state.
func Cleanup() {
	defer func() {
		if r := recover(); r != nil {
			logPanic("cleanup", r)
		}
	}()

	registryMu.Lock()
	handles := make([]Handle, 0, len(registry))
	for h := range registry {
		handles = append(handles, h)
	}
	registryMu.Unlock()
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	for _, h := range handles {
		DestroyEngine(h)
	}
	inference.Shutdown()

	log := logger.WithComponent("ocr")
	log.Debug().Int("engines", len(handles)).Msg("cleanup complete")
}

// Version returns the library name and version.
func Version() string {
	return "ocr-engine " + version
}

// SetMeterProvider routes engine metrics to mp. A nil mp disables them.
func SetMeterProvider(mp metric.MeterProvider) error {
	return telemetry.InitMeterProvider(mp)
}

func recoverCreate(h *Handle) {
	if r := recover(); r != nil {
		logPanic("create", r)
		*h = NullHandle
	}
}

func logCreateFailure(err error) {
	log := logger.WithComponent("ocr")
	log.Error().Err(err).Str("status", EngineCreationFailed.String()).Msg("failed to create engine")
}

func logPanic(op string, r interface{}) {
	log := logger.WithComponent("ocr")
	log.Error().Str("op", op).Str("panic", fmt.Sprint(r)).Msg("recovered from panic")
}
