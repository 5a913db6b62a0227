package ocr

import (
	"math"
	"strings"

	"github.com/ironsheep/ocr-engine/internal/detection"
	"github.com/ironsheep/ocr-engine/internal/engine"
	"github.com/ironsheep/ocr-engine/internal/recognition"
)

// TextBox is one recognized region of an image.
type TextBox struct {
	Left   int32  `json:"left"`
	Top    int32  `json:"top"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`

	// DetConfidence is the detection confidence in [0, 1].
	DetConfidence float64 `json:"det_confidence"`

	// Text may be empty when nothing in the box could be read.
	Text string `json:"text"`

	// RecConfidence is the recognition confidence in [0, 1]; 0 for empty text.
	RecConfidence float64 `json:"rec_confidence"`
}

// SimpleResult holds the recognized strings of an image in detection
// order. Count always equals len(Texts); both are zero unless Status is
// Success.
type SimpleResult struct {
	Status Status   `json:"status"`
	Count  int      `json:"count"`
	Texts  []string `json:"texts"`
}

// DetailedResult holds the recognized boxes of an image in detection
// order. Count always equals len(Boxes); both are zero unless Status is
// Success.
type DetailedResult struct {
	Status Status    `json:"status"`
	Count  int       `json:"count"`
	Boxes  []TextBox `json:"boxes"`
}

// Region is one detected text area, not yet read.
type Region struct {
	Left   int32  `json:"left"`
	Top    int32  `json:"top"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`

	// Confidence is the detection confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}

// DetectResult holds the text regions of an image in detection order.
// Count always equals len(Regions); both are zero unless Status is Success.
type DetectResult struct {
	Status  Status   `json:"status"`
	Count   int      `json:"count"`
	Regions []Region `json:"regions"`
}

// LineResult is the transcription of an image holding a single text line.
// Text is empty and Confidence 0 unless Status is Success.
type LineResult struct {
	Status     Status  `json:"status"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func simpleFailure(s Status) SimpleResult {
	return SimpleResult{Status: s, Texts: []string{}}
}

func detailedFailure(s Status) DetailedResult {
	return DetailedResult{Status: s, Boxes: []TextBox{}}
}

func detectFailure(s Status) DetectResult {
	return DetectResult{Status: s, Regions: []Region{}}
}

// marshalSimple copies the texts of boxes into a new SimpleResult.
func marshalSimple(boxes []engine.TextBox) SimpleResult {
	texts := make([]string, len(boxes))
	for i, b := range boxes {
		texts[i] = strings.Clone(b.Text)
	}
	return SimpleResult{Status: Success, Count: len(texts), Texts: texts}
}

// marshalDetailed converts boxes into a new DetailedResult.
func marshalDetailed(boxes []engine.TextBox) DetailedResult {
	out := make([]TextBox, len(boxes))
	for i, b := range boxes {
		out[i] = TextBox{
			Left:          clampInt32(b.Bounds.X1),
			Top:           clampInt32(b.Bounds.Y1),
			Width:         clampUint32(b.Bounds.Width()),
			Height:        clampUint32(b.Bounds.Height()),
			DetConfidence: unit(b.DetScore),
			Text:          strings.Clone(b.Text),
			RecConfidence: unit(b.RecScore),
		}
	}
	return DetailedResult{Status: Success, Count: len(out), Boxes: out}
}

// marshalRegions converts detected boxes into a new DetectResult.
func marshalRegions(boxes []detection.Box) DetectResult {
	out := make([]Region, len(boxes))
	for i, b := range boxes {
		out[i] = Region{
			Left:       clampInt32(b.Bounds.X1),
			Top:        clampInt32(b.Bounds.Y1),
			Width:      clampUint32(b.Bounds.Width()),
			Height:     clampUint32(b.Bounds.Height()),
			Confidence: unit(b.Score),
		}
	}
	return DetectResult{Status: Success, Count: len(out), Regions: out}
}

func marshalLine(r recognition.Result) LineResult {
	if r.Text == "" {
		return LineResult{Status: Success}
	}
	return LineResult{Status: Success, Text: strings.Clone(r.Text), Confidence: unit(r.Confidence)}
}

// ReleaseSimpleResult empties r. It is safe on failed results, on nil and
// on results that were already released.
func ReleaseSimpleResult(r *SimpleResult) {
	if r == nil {
		return
	}
	r.Count = 0
	r.Texts = nil
}

// ReleaseDetailedResult empties r. It is safe on failed results, on nil and
// on results that were already released.
func ReleaseDetailedResult(r *DetailedResult) {
	if r == nil {
		return
	}
	r.Count = 0
	r.Boxes = nil
}

// ReleaseDetectResult empties r. It is safe on failed results, on nil and
// on results that were already released.
func ReleaseDetectResult(r *DetectResult) {
	if r == nil {
		return
	}
	r.Count = 0
	r.Regions = nil
}

// ReleaseLineResult empties r. It is safe on nil and on results that were
// already released.
func ReleaseLineResult(r *LineResult) {
	if r == nil {
		return
	}
	r.Text = ""
	r.Confidence = 0
}

func clampInt32(v int) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func clampUint32(v int) uint32 {
	switch {
	case v < 0:
		return 0
	case uint64(v) > math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(v)
}

func unit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
