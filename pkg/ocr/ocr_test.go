package ocr

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ironsheep/ocr-engine/internal/dictionary"
	"github.com/ironsheep/ocr-engine/internal/engine"
	"github.com/ironsheep/ocr-engine/internal/inference"
	"github.com/ironsheep/ocr-engine/internal/refmodel"
	"github.com/ironsheep/ocr-engine/internal/telemetry"
)

func writeModels(t *testing.T) refmodel.Paths {
	t.Helper()
	p, err := refmodel.Write(t.TempDir())
	require.NoError(t, err)
	return p
}

func savePNG(t *testing.T, img image.Image) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "ocr-*.png")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return f.Name()
}

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}

func createTestEngine(t *testing.T) Handle {
	t.Helper()
	p := writeModels(t)
	h := CreateEngine(p.Det, p.Rec, p.Dict)
	require.NotEqual(t, NullHandle, h)
	t.Cleanup(func() { DestroyEngine(h) })
	return h
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Success, "Success"},
		{EngineCreationFailed, "EngineCreationFailed"},
		{ImageLoadFailed, "ImageLoadFailed"},
		{DetectionFailed, "DetectionFailed"},
		{RecognitionFailed, "RecognitionFailed"},
		{InvalidHandle, "InvalidHandle"},
		{DestroyFailed, "DestroyFailed"},
		{Status(99), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestRecognize_Hello(t *testing.T) {
	h := createTestEngine(t)
	path := savePNG(t, refmodel.RenderLine("HELLO", 4))

	simple := RecognizeSimple(h, path)
	defer ReleaseSimpleResult(&simple)
	require.Equal(t, Success, simple.Status)
	assert.Equal(t, 1, simple.Count)
	assert.Equal(t, []string{"HELLO"}, simple.Texts)

	detailed := RecognizeDetailed(h, path)
	defer ReleaseDetailedResult(&detailed)
	require.Equal(t, Success, detailed.Status)
	require.Equal(t, 1, detailed.Count)
	require.Len(t, detailed.Boxes, 1)

	box := detailed.Boxes[0]
	assert.Equal(t, "HELLO", box.Text)
	assert.Greater(t, box.Width, uint32(0))
	assert.Greater(t, box.Height, uint32(0))
	assert.GreaterOrEqual(t, box.Left, int32(0))
	assert.GreaterOrEqual(t, box.Top, int32(0))
	assert.LessOrEqual(t, uint32(box.Left)+box.Width, uint32(300))
	assert.LessOrEqual(t, uint32(box.Top)+box.Height, uint32(160))
	assert.Greater(t, box.DetConfidence, 0.9)
	assert.LessOrEqual(t, box.DetConfidence, 1.0)
	assert.Greater(t, box.RecConfidence, 0.9)
	assert.LessOrEqual(t, box.RecConfidence, 1.0)
}

func TestRecognize_SimpleMatchesDetailed(t *testing.T) {
	h := createTestEngine(t)
	path := savePNG(t, refmodel.RenderLines([]string{"HELLO", "HOLE"}, 4))

	simple := RecognizeSimple(h, path)
	detailed := RecognizeDetailed(h, path)
	require.Equal(t, Success, simple.Status)
	require.Equal(t, Success, detailed.Status)
	assert.Equal(t, len(simple.Texts), simple.Count)
	assert.Equal(t, len(detailed.Boxes), detailed.Count)

	var texts []string
	for _, b := range detailed.Boxes {
		texts = append(texts, b.Text)
	}
	assert.Equal(t, []string{"HELLO", "HOLE"}, texts)
	assert.Equal(t, texts, simple.Texts)
}

func TestRecognize_BlankImage(t *testing.T) {
	h := createTestEngine(t)
	path := savePNG(t, whiteImage(320, 200))

	detailed := RecognizeDetailed(h, path)
	assert.Equal(t, Success, detailed.Status)
	assert.Equal(t, 0, detailed.Count)
	assert.Empty(t, detailed.Boxes)

	simple := RecognizeSimple(h, path)
	assert.Equal(t, Success, simple.Status)
	assert.Equal(t, 0, simple.Count)
	assert.Empty(t, simple.Texts)
}

func TestRecognize_ImageLoadFailed(t *testing.T) {
	h := createTestEngine(t)
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("definitely not an image"), 0644))

	for _, path := range []string{filepath.Join(dir, "missing.png"), corrupt} {
		simple := RecognizeSimple(h, path)
		assert.Equal(t, ImageLoadFailed, simple.Status, path)
		assert.Equal(t, 0, simple.Count)
		assert.Empty(t, simple.Texts)

		detailed := RecognizeDetailed(h, path)
		assert.Equal(t, ImageLoadFailed, detailed.Status, path)
		assert.Equal(t, 0, detailed.Count)
		assert.Empty(t, detailed.Boxes)

		ReleaseSimpleResult(&simple)
		ReleaseDetailedResult(&detailed)
	}
}

func TestRecognize_InvalidHandle(t *testing.T) {
	path := savePNG(t, whiteImage(10, 10))

	assert.Equal(t, InvalidHandle, RecognizeSimple(NullHandle, path).Status)
	assert.Equal(t, InvalidHandle, RecognizeDetailed(NullHandle, path).Status)
	assert.Equal(t, InvalidHandle, RecognizeSimple(Handle(1<<62), path).Status)
}

func TestCreateEngine_Failures(t *testing.T) {
	p := writeModels(t)
	missing := filepath.Join(t.TempDir(), "missing.json")

	assert.Equal(t, NullHandle, CreateEngine(missing, p.Rec, p.Dict))
	assert.Equal(t, NullHandle, CreateEngine(p.Det, missing, p.Dict))
	assert.Equal(t, NullHandle, CreateEngine(p.Det, p.Rec, missing))
	assert.Equal(t, NullHandle, CreateEngine(p.Rec, p.Det, p.Dict))

	cfg := DefaultConfig()
	cfg.Recognition.Backend = "bogus"
	assert.Equal(t, NullHandle, CreateEngineWithConfig(p.Det, p.Rec, p.Dict, cfg))
}

func TestCreateEngineWithConfig_MergeBoxes(t *testing.T) {
	p := writeModels(t)
	cfg := DefaultConfig()
	cfg.Detection.MergeBoxes = true
	cfg.Detection.MergeThreshold = 20

	h := CreateEngineWithConfig(p.Det, p.Rec, p.Dict, cfg)
	require.NotEqual(t, NullHandle, h)
	defer DestroyEngine(h)

	res := RecognizeSimple(h, savePNG(t, refmodel.RenderLine("HELLO", 4)))
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, []string{"HELLO"}, res.Texts)
}

func TestCreateEngineWithBytes(t *testing.T) {
	det, rec, dict, err := refmodel.Bytes()
	require.NoError(t, err)

	h := CreateEngineWithBytes(det, rec, dict, DefaultConfig())
	require.NotEqual(t, NullHandle, h)
	defer DestroyEngine(h)

	res := RecognizeSimple(h, savePNG(t, refmodel.RenderLine("HELLO", 4)))
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, []string{"HELLO"}, res.Texts)

	assert.Equal(t, NullHandle, CreateEngineWithBytes(nil, rec, dict, DefaultConfig()))
	assert.Equal(t, NullHandle, CreateEngineWithBytes(det, rec, []byte("\n"), DefaultConfig()))
}

func TestDestroyEngine(t *testing.T) {
	p := writeModels(t)
	h := CreateEngine(p.Det, p.Rec, p.Dict)
	require.NotEqual(t, NullHandle, h)

	assert.Equal(t, Success, DestroyEngine(h))
	assert.Equal(t, InvalidHandle, DestroyEngine(h))
	assert.Equal(t, InvalidHandle, DestroyEngine(NullHandle))

	res := RecognizeSimple(h, savePNG(t, whiteImage(10, 10)))
	assert.Equal(t, InvalidHandle, res.Status)

	// Handles are not reused.
	h2 := CreateEngine(p.Det, p.Rec, p.Dict)
	require.NotEqual(t, NullHandle, h2)
	defer DestroyEngine(h2)
	assert.NotEqual(t, h, h2)
}

func TestRelease(t *testing.T) {
	h := createTestEngine(t)
	path := savePNG(t, refmodel.RenderLine("HELLO", 4))

	simple := RecognizeSimple(h, path)
	ReleaseSimpleResult(&simple)
	assert.Equal(t, 0, simple.Count)
	assert.Empty(t, simple.Texts)
	ReleaseSimpleResult(&simple)
	ReleaseSimpleResult(nil)

	detailed := RecognizeDetailed(h, path)
	ReleaseDetailedResult(&detailed)
	assert.Equal(t, 0, detailed.Count)
	assert.Empty(t, detailed.Boxes)
	ReleaseDetailedResult(&detailed)
	ReleaseDetailedResult(nil)

	failed := RecognizeDetailed(NullHandle, path)
	ReleaseDetailedResult(&failed)
	assert.Equal(t, InvalidHandle, failed.Status)
}

func TestResultsOutliveEngine(t *testing.T) {
	p := writeModels(t)
	h := CreateEngine(p.Det, p.Rec, p.Dict)
	require.NotEqual(t, NullHandle, h)

	res := RecognizeDetailed(h, savePNG(t, refmodel.RenderLine("HELLO", 4)))
	require.Equal(t, Success, DestroyEngine(h))
	require.Equal(t, Success, res.Status)
	assert.Equal(t, "HELLO", res.Boxes[0].Text)
}

func TestConcurrentRecognition(t *testing.T) {
	h := createTestEngine(t)
	path := savePNG(t, refmodel.RenderLine("HELLO", 4))

	results := make(chan SimpleResult, 4)
	for i := 0; i < 4; i++ {
		go func() { results <- RecognizeSimple(h, path) }()
	}
	for i := 0; i < 4; i++ {
		res := <-results
		assert.Equal(t, Success, res.Status)
		assert.Equal(t, []string{"HELLO"}, res.Texts)
	}
}

func TestCleanup(t *testing.T) {
	p := writeModels(t)
	h := CreateEngine(p.Det, p.Rec, p.Dict)
	require.NotEqual(t, NullHandle, h)

	Cleanup()
	assert.Equal(t, 0, liveEngines())
	assert.Equal(t, InvalidHandle, DestroyEngine(h))
	Cleanup()

	// The library keeps working after cleanup.
	h2 := CreateEngine(p.Det, p.Rec, p.Dict)
	require.NotEqual(t, NullHandle, h2)
	defer DestroyEngine(h2)
	res := RecognizeSimple(h2, savePNG(t, refmodel.RenderLine("HELLO", 4)))
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, []string{"HELLO"}, res.Texts)
}

func TestVersion(t *testing.T) {
	v := Version()
	assert.Equal(t, v, Version())
	assert.Contains(t, v, "ocr-engine")
	assert.NotEmpty(t, version)
}

func TestSetMeterProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	require.NoError(t, SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))
	t.Cleanup(func() { _ = SetMeterProvider(nil) })

	RecognizeSimple(NullHandle, "unused.png")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != telemetry.MetricRecognitions {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			status, _ := sum.DataPoints[0].Attributes.Value("status")
			assert.Equal(t, "InvalidHandle", status.AsString())
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetectBoxes(t *testing.T) {
	h := createTestEngine(t)

	res := DetectBoxes(h, savePNG(t, refmodel.RenderLines([]string{"HELLO", "HOLE"}, 4)))
	defer ReleaseDetectResult(&res)
	require.Equal(t, Success, res.Status)
	require.Equal(t, 2, res.Count)
	require.Len(t, res.Regions, 2)
	assert.Less(t, res.Regions[0].Top, res.Regions[1].Top)
	for _, r := range res.Regions {
		assert.Greater(t, r.Width, uint32(0))
		assert.Greater(t, r.Height, uint32(0))
		assert.Greater(t, r.Confidence, 0.9)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}

	blank := DetectBoxes(h, savePNG(t, whiteImage(320, 200)))
	assert.Equal(t, Success, blank.Status)
	assert.Equal(t, 0, blank.Count)
	assert.Empty(t, blank.Regions)

	missing := DetectBoxes(h, filepath.Join(t.TempDir(), "missing.png"))
	assert.Equal(t, ImageLoadFailed, missing.Status)
	assert.Equal(t, 0, missing.Count)
	assert.Empty(t, missing.Regions)

	assert.Equal(t, InvalidHandle, DetectBoxes(NullHandle, filepath.Join(t.TempDir(), "x.png")).Status)
}

func TestRecognizeLine(t *testing.T) {
	h := createTestEngine(t)

	// The text spans x 20..55 and y 12..27 at 1x; keep a small margin.
	img := refmodel.RenderLine("HELLO", 4)
	line := img.SubImage(image.Rect(4*18, 4*12, 4*57, 4*29))
	res := RecognizeLine(h, savePNG(t, line))
	defer ReleaseLineResult(&res)
	require.Equal(t, Success, res.Status)
	assert.Equal(t, "HELLO", res.Text)
	assert.Greater(t, res.Confidence, 0.9)

	blank := RecognizeLine(h, savePNG(t, whiteImage(60, 20)))
	assert.Equal(t, Success, blank.Status)
	assert.Empty(t, blank.Text)
	assert.Zero(t, blank.Confidence)

	missing := RecognizeLine(h, filepath.Join(t.TempDir(), "missing.png"))
	assert.Equal(t, ImageLoadFailed, missing.Status)
	assert.Empty(t, missing.Text)

	assert.Equal(t, InvalidHandle, RecognizeLine(NullHandle, filepath.Join(t.TempDir(), "x.png")).Status)

	ReleaseLineResult(&res)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.Confidence)
	ReleaseLineResult(nil)
}

func TestCreateEngineWithBytes_DetectionDryRun(t *testing.T) {
	_, rec, dict, err := refmodel.Bytes()
	require.NoError(t, err)

	doc := refmodel.DetectionDocument()
	doc.Layers[0].Out = 2
	doc.Layers[0].Weights = append(doc.Layers[0].Weights, doc.Layers[0].Weights...)
	doc.Layers[0].Bias = append(doc.Layers[0].Bias, doc.Layers[0].Bias...)
	det, err := inference.Encode(doc)
	require.NoError(t, err)

	before := liveEngines()
	assert.Equal(t, NullHandle, CreateEngineWithBytes(det, rec, dict, DefaultConfig()))
	assert.Equal(t, before, liveEngines())
}

type brokenRunner struct {
	input   inference.InputSpec
	classes int
}

func (r brokenRunner) Input() inference.InputSpec { return r.input }
func (r brokenRunner) NumClasses() int { return r.classes }
func (r brokenRunner) Run(context.Context, *inference.Tensor) (*inference.Tensor, error) {
	return nil, errors.New("inference backend failed")
}

// registerBroken registers an engine whose detection or recognition model
// fails on every call.
func registerBroken(t *testing.T, breakDetection bool) Handle {
	t.Helper()
	det, err := inference.FromDocument(refmodel.DetectionDocument())
	require.NoError(t, err)
	recDoc, err := refmodel.RecognitionDocument()
	require.NoError(t, err)
	rec, err := inference.FromDocument(recDoc)
	require.NoError(t, err)
	dict, err := dictionary.FromBytes(refmodel.Dictionary())
	require.NoError(t, err)

	var e *engine.Engine
	if breakDetection {
		e, err = engine.New(brokenRunner{input: det.Input()}, rec, dict, DefaultConfig())
	} else {
		e, err = engine.New(det, brokenRunner{input: rec.Input(), classes: rec.NumClasses()}, dict, DefaultConfig())
	}
	require.NoError(t, err)
	h := register(e)
	t.Cleanup(func() { DestroyEngine(h) })
	return h
}

func TestRecognize_StageFailures(t *testing.T) {
	path := savePNG(t, refmodel.RenderLine("HELLO", 4))

	tests := []struct {
		name           string
		breakDetection bool
		want           Status
	}{
		{"detection model fails", true, DetectionFailed},
		{"recognition model fails", false, RecognitionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := registerBroken(t, tt.breakDetection)

			simple := RecognizeSimple(h, path)
			assert.Equal(t, tt.want, simple.Status)
			assert.Equal(t, 0, simple.Count)
			assert.Empty(t, simple.Texts)

			detailed := RecognizeDetailed(h, path)
			assert.Equal(t, tt.want, detailed.Status)
			assert.Equal(t, 0, detailed.Count)
			assert.Empty(t, detailed.Boxes)

			ReleaseSimpleResult(&simple)
			ReleaseDetailedResult(&detailed)
		})
	}

	t.Run("detect only", func(t *testing.T) {
		res := DetectBoxes(registerBroken(t, true), path)
		assert.Equal(t, DetectionFailed, res.Status)
		assert.Equal(t, 0, res.Count)
		assert.Empty(t, res.Regions)
	})

	t.Run("single line", func(t *testing.T) {
		res := RecognizeLine(registerBroken(t, false), path)
		assert.Equal(t, RecognitionFailed, res.Status)
		assert.Empty(t, res.Text)
		assert.Zero(t, res.Confidence)
	})
}
