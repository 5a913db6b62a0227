package recognition

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ironsheep/ocr-engine/internal/dictionary"
	"github.com/ironsheep/ocr-engine/internal/inference"
)

// Decoder turns per-step class probabilities into text.
type Decoder struct {
	Dict *dictionary.Dictionary

	// MinScore drops decoded characters whose probability is below it.
	MinScore float64

	// PunctMinScore replaces MinScore for punctuation, which the models
	// usually predict with less certainty.
	PunctMinScore float64
}

// Decode performs greedy best-path decoding of a [1,T,C] tensor: take the
// arg-max class at every step, collapse consecutive repeats, drop blanks and
// characters below their score floor, and map the rest through the
// dictionary.
//
// Confidence is the mean probability of the kept characters, or 0 when
// nothing is kept.
func (d Decoder) Decode(probs *inference.Tensor) (Result, error) {
	if len(probs.Shape) != 3 || probs.Shape[0] != 1 {
		return Result{}, fmt.Errorf("expected [1,T,C] probabilities, got %v", probs.Shape)
	}
	steps, classes := probs.Shape[1], probs.Shape[2]
	if classes != d.Dict.NumClasses() {
		return Result{}, fmt.Errorf("model has %d classes, dictionary %d", classes, d.Dict.NumClasses())
	}
	if len(probs.Data) < steps*classes {
		return Result{}, fmt.Errorf("probability data too short for shape %v", probs.Shape)
	}

	var text strings.Builder
	var sum float64
	var kept int
	prev := -1

	for t := 0; t < steps; t++ {
		row := probs.Data[t*classes : (t+1)*classes]
		idx, p := argmax(row)
		if idx == prev {
			continue
		}
		prev = idx
		if idx == dictionary.Blank {
			continue
		}
		ch, ok := d.Dict.Char(idx)
		if !ok {
			continue
		}
		floor := d.MinScore
		if isPunct(ch) {
			floor = d.PunctMinScore
		}
		if float64(p) < floor {
			// A dropped frame is not emitted, so the next frame of the
			// same character still counts.
			prev = -1
			continue
		}
		text.WriteString(ch)
		sum += float64(p)
		kept++
	}

	if kept == 0 {
		return Result{}, nil
	}
	return Result{Text: text.String(), Confidence: clampUnit(sum / float64(kept))}, nil
}

func argmax(row []float32) (int, float32) {
	best, bestP := 0, row[0]
	for i, p := range row[1:] {
		if p > bestP {
			best, bestP = i+1, p
		}
	}
	return best, bestP
}

func isPunct(ch string) bool {
	r, size := utf8.DecodeRuneInString(ch)
	if size != len(ch) {
		return false
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
