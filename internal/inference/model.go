// Package inference executes the reference detection and recognition models.
//
// A model is a JSON document holding an input description and a sequential
// list of tensor layers. The engine only depends on Model.Run and the input
// metadata, so any backend that turns preprocessed pixels into numeric
// outputs of the same shape can stand in for it.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ironsheep/ocr-engine/internal/ocrerr"
)

// FormatV1 identifies the model document version understood by Parse.
const FormatV1 = "ocr-ref/1"

// Kind names the role a model plays in the pipeline.
type Kind string

const (
	KindDetection   Kind = "detection"
	KindRecognition Kind = "recognition"
)

// Document is the on-disk model representation.
type Document struct {
	Format     string      `json:"format"`
	Kind       Kind        `json:"kind"`
	Name       string      `json:"name,omitempty"`
	Input      InputSpec   `json:"input"`
	NumClasses int         `json:"num_classes,omitempty"`
	Layers     []LayerSpec `json:"layers"`
}

// InputSpec describes the tensor a model expects.
type InputSpec struct {
	Channels int       `json:"channels"`
	Height   int       `json:"height,omitempty"` // fixed input height; 0 means any
	Mean     []float32 `json:"mean"`
	Std      []float32 `json:"std"`
}

// LayerSpec is the union of all layer parameters. Only the fields relevant
// to Type are read.
type LayerSpec struct {
	Type    string     `json:"type"`
	In      int        `json:"in,omitempty"`
	Out     int        `json:"out,omitempty"`
	Kernel  int        `json:"kernel,omitempty"`
	Weights []float32  `json:"weights,omitempty"`
	Bias    []float32  `json:"bias,omitempty"`
	Scale   float32    `json:"scale,omitempty"`
	Shift   float32    `json:"shift,omitempty"`
	KernelW int        `json:"kernel_w,omitempty"`
	KernelH int        `json:"kernel_h,omitempty"`
	Glyph   *GlyphSpec `json:"glyph,omitempty"`
}

// Model is a parsed, validated model. It holds no mutable state, so Run may
// be called from many goroutines at once.
type Model struct {
	doc    Document
	layers []layer
}

type layer interface {
	forward(in *Tensor) (*Tensor, error)
}

// Load reads and parses a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a model document and builds its layers.
func Parse(data []byte) (*Model, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ocrerr.ErrInvalidModel, err)
	}
	return FromDocument(doc)
}

// FromDocument validates doc and builds a runnable model.
func FromDocument(doc Document) (*Model, error) {
	if doc.Format != FormatV1 {
		return nil, fmt.Errorf("%w: unsupported format %q", ocrerr.ErrInvalidModel, doc.Format)
	}
	switch doc.Kind {
	case KindDetection, KindRecognition:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ocrerr.ErrInvalidModel, doc.Kind)
	}
	in := doc.Input
	if in.Channels <= 0 || len(in.Mean) != in.Channels || len(in.Std) != in.Channels {
		return nil, fmt.Errorf("%w: input needs %d mean and std values", ocrerr.ErrInvalidModel, in.Channels)
	}
	for _, s := range in.Std {
		if s == 0 {
			return nil, fmt.Errorf("%w: input std must be non-zero", ocrerr.ErrInvalidModel)
		}
	}
	if doc.Kind == KindRecognition && doc.NumClasses < 2 {
		return nil, fmt.Errorf("%w: recognition model needs num_classes", ocrerr.ErrInvalidModel)
	}
	if len(doc.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ocrerr.ErrInvalidModel)
	}

	m := &Model{doc: doc}
	for i, spec := range doc.Layers {
		l, err := buildLayer(spec, doc.NumClasses)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d (%s): %v", ocrerr.ErrInvalidModel, i, spec.Type, err)
		}
		m.layers = append(m.layers, l)
	}
	return m, nil
}

// Kind reports whether this is a detection or recognition model.
func (m *Model) Kind() Kind { return m.doc.Kind }

// Name is the optional descriptive name from the document.
func (m *Model) Name() string { return m.doc.Name }

// Input returns the expected input description.
func (m *Model) Input() InputSpec { return m.doc.Input }

// NumClasses is the size of the recognition output's class axis.
func (m *Model) NumClasses() int { return m.doc.NumClasses }

// Run executes all layers in order. Detection models return a [1,1,H,W]
// probability map. Recognition models return [1,T,C] class probabilities.
func (m *Model) Run(ctx context.Context, in *Tensor) (*Tensor, error) {
	c, _, _, err := in.CHW()
	if err != nil {
		return nil, err
	}
	if c != m.doc.Input.Channels {
		return nil, fmt.Errorf("model expects %d channels, got %d", m.doc.Input.Channels, c)
	}

	out := in
	for i, l := range m.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err = l.forward(out)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, m.doc.Layers[i].Type, err)
		}
	}

	switch m.doc.Kind {
	case KindDetection:
		if oc, _, _, err := out.CHW(); err != nil || oc != 1 {
			return nil, fmt.Errorf("detection output must be [1,1,H,W], got %v", out.Shape)
		}
	case KindRecognition:
		if len(out.Shape) != 3 || out.Shape[2] != m.doc.NumClasses {
			return nil, fmt.Errorf("recognition output must be [1,T,%d], got %v", m.doc.NumClasses, out.Shape)
		}
	}
	return out, nil
}

// Encode serializes a document in the format Parse accepts.
func Encode(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}
