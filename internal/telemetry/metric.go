// Package telemetry records engine metrics through OpenTelemetry. Until a
// provider is installed every instrument is a no-op.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the instrumentation scope of all engine metrics.
const MeterName = "github.com/ironsheep/ocr-engine"

// Metric names.
const (
	MetricRecognitions  = "ocr.recognitions"
	MetricBoxes         = "ocr.boxes"
	MetricStageDuration = "ocr.stage.duration"
)

// Pipeline stages reported by RecordStage.
const (
	StageDetection   = "detection"
	StageRecognition = "recognition"
)

var (
	mu            sync.RWMutex
	meterProvider metric.MeterProvider    = noop.NewMeterProvider()
	recognitions  metric.Int64Counter     = noop.Int64Counter{}
	boxes         metric.Int64Histogram   = noop.Int64Histogram{}
	stageDuration metric.Float64Histogram = noop.Float64Histogram{}
)

// InitMeterProvider installs mp and creates the engine instruments from it.
// A nil mp restores the no-op provider.
func InitMeterProvider(mp metric.MeterProvider) error {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(MeterName)

	counter, err := meter.Int64Counter(
		MetricRecognitions,
		metric.WithDescription("Number of recognition calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricRecognitions, err)
	}
	boxHist, err := meter.Int64Histogram(
		MetricBoxes,
		metric.WithDescription("Text boxes found per image"),
		metric.WithUnit("{box}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricBoxes, err)
	}
	durHist, err := meter.Float64Histogram(
		MetricStageDuration,
		metric.WithDescription("Duration of a pipeline stage"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricStageDuration, err)
	}

	mu.Lock()
	defer mu.Unlock()
	meterProvider = mp
	recognitions = counter
	boxes = boxHist
	stageDuration = durHist
	return nil
}

// MeterProvider returns the installed provider.
func MeterProvider() metric.MeterProvider {
	mu.RLock()
	defer mu.RUnlock()
	return meterProvider
}

// RecordRecognition counts one boundary call. mode is "simple",
// "detailed", "detect" or "line"; status is the boundary status name. Box counts are only
// recorded for successful calls.
func RecordRecognition(ctx context.Context, mode, status string, boxCount int, ok bool) {
	mu.RLock()
	c, h := recognitions, boxes
	mu.RUnlock()

	c.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
	if ok {
		h.Record(ctx, int64(boxCount), metric.WithAttributes(attribute.String("mode", mode)))
	}
}

// RecordStage records how long a pipeline stage took.
func RecordStage(ctx context.Context, stage string, d time.Duration) {
	mu.RLock()
	h := stageDuration
	mu.RUnlock()

	h.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attribute.String("stage", stage)))
}
