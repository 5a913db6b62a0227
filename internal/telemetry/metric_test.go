package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		assert.Equal(t, MeterName, sm.Scope.Name)
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestRecordWithoutProvider(t *testing.T) {
	// The no-op defaults accept records without a provider.
	RecordRecognition(context.Background(), "simple", "Success", 3, true)
	RecordStage(context.Background(), StageDetection, time.Millisecond)
}

func TestInitMeterProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	require.NoError(t, InitMeterProvider(provider))
	t.Cleanup(func() { _ = InitMeterProvider(nil) })

	assert.Equal(t, provider, MeterProvider())

	ctx := context.Background()
	RecordRecognition(ctx, "simple", "Success", 2, true)
	RecordRecognition(ctx, "detailed", "ImageLoadFailed", 0, false)
	RecordStage(ctx, StageDetection, 1500*time.Microsecond)

	got := collect(t, reader)

	counter, ok := got[MetricRecognitions].Data.(metricdata.Sum[int64])
	require.True(t, ok, "recognitions should be an int64 sum")
	require.Len(t, counter.DataPoints, 2)
	var total int64
	for _, dp := range counter.DataPoints {
		total += dp.Value
		mode, _ := dp.Attributes.Value(attribute.Key("mode"))
		assert.Contains(t, []string{"simple", "detailed"}, mode.AsString())
	}
	assert.Equal(t, int64(2), total)

	boxHist, ok := got[MetricBoxes].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, boxHist.DataPoints, 1)
	assert.Equal(t, uint64(1), boxHist.DataPoints[0].Count)
	assert.Equal(t, int64(2), boxHist.DataPoints[0].Sum)

	dur, ok := got[MetricStageDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, dur.DataPoints, 1)
	assert.InDelta(t, 1.5, dur.DataPoints[0].Sum, 1e-9)
	stage, _ := dur.DataPoints[0].Attributes.Value(attribute.Key("stage"))
	assert.Equal(t, StageDetection, stage.AsString())
}
