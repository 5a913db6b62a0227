package server

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/ironsheep/ocr-engine/internal/imaging"
	"github.com/ironsheep/ocr-engine/pkg/ocr"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ocr_recognize").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("tool execution failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "ocr_recognize":
		return s.handleRecognize(args)
	case "ocr_recognize_detailed":
		return s.handleRecognizeDetailed(args)
	case "ocr_annotate":
		return s.handleAnnotate(args)
	case "ocr_version":
		return s.handleVersion()
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type pathArgs struct {
	Path string `json:"path"`
}

func (a pathArgs) validate() error {
	if a.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

func decodeArgs(args json.RawMessage, v interface{ validate() error }) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return err
	}
	return v.validate()
}

// RecognizeResult is returned by ocr_recognize.
type RecognizeResult struct {
	Path  string   `json:"path"`
	Count int      `json:"count"`
	Texts []string `json:"texts"`
}

func (s *Server) handleRecognize(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	res := ocr.RecognizeSimple(s.engine, a.Path)
	defer ocr.ReleaseSimpleResult(&res)
	if res.Status != ocr.Success {
		return nil, fmt.Errorf("recognize %s: %s", a.Path, res.Status)
	}
	return RecognizeResult{Path: a.Path, Count: res.Count, Texts: append([]string{}, res.Texts...)}, nil
}

type recognizeDetailedArgs struct {
	pathArgs
	MinConfidence float64 `json:"min_confidence"`
}

func (a recognizeDetailedArgs) validate() error {
	if err := a.pathArgs.validate(); err != nil {
		return err
	}
	if a.MinConfidence < 0 || a.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be within [0,1]")
	}
	return nil
}

// DetailedRecognizeResult is returned by ocr_recognize_detailed.
type DetailedRecognizeResult struct {
	Path  string        `json:"path"`
	Count int           `json:"count"`
	Boxes []ocr.TextBox `json:"boxes"`
}

func (s *Server) handleRecognizeDetailed(args json.RawMessage) (interface{}, error) {
	var a recognizeDetailedArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	boxes, err := s.detailed(a.Path)
	if err != nil {
		return nil, err
	}
	kept := make([]ocr.TextBox, 0, len(boxes))
	for _, b := range boxes {
		if b.RecConfidence >= a.MinConfidence {
			kept = append(kept, b)
		}
	}
	return DetailedRecognizeResult{Path: a.Path, Count: len(kept), Boxes: kept}, nil
}

type annotateArgs struct {
	pathArgs
	BoxColor string `json:"box_color"`
}

// AnnotateResult is returned by ocr_annotate.
type AnnotateResult struct {
	Path     string `json:"path"`
	Count    int    `json:"count"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`
	Image    string `json:"image"`
}

func (s *Server) handleAnnotate(args json.RawMessage) (interface{}, error) {
	var a annotateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.BoxColor == "" {
		a.BoxColor = imaging.DefaultBoxColor
	}

	boxes, err := s.detailed(a.Path)
	if err != nil {
		return nil, err
	}
	img, _, err := imaging.Load(a.Path)
	if err != nil {
		return nil, err
	}

	annotations := make([]imaging.Annotation, len(boxes))
	for i, b := range boxes {
		annotations[i] = imaging.Annotation{
			Rect:  boxRect(b),
			Label: b.Text,
		}
	}
	out := imaging.Annotate(img, annotations, a.BoxColor)
	encoded, err := imaging.EncodePNGBase64(out)
	if err != nil {
		return nil, err
	}

	return AnnotateResult{
		Path:     a.Path,
		Count:    len(boxes),
		Width:    out.Bounds().Dx(),
		Height:   out.Bounds().Dy(),
		MimeType: "image/png",
		Image:    encoded,
	}, nil
}

// VersionResult is returned by ocr_version.
type VersionResult struct {
	Version string `json:"version"`
	Backend string `json:"backend"`
}

func (s *Server) handleVersion() (interface{}, error) {
	return VersionResult{Version: ocr.Version(), Backend: s.cfg.Recognition.Backend}, nil
}

// detailed runs detailed recognition and copies the boxes out of the
// released result.
func (s *Server) detailed(path string) ([]ocr.TextBox, error) {
	res := ocr.RecognizeDetailed(s.engine, path)
	defer ocr.ReleaseDetailedResult(&res)
	if res.Status != ocr.Success {
		return nil, fmt.Errorf("recognize %s: %s", path, res.Status)
	}
	return append([]ocr.TextBox{}, res.Boxes...), nil
}

func boxRect(b ocr.TextBox) image.Rectangle {
	x, y := int(b.Left), int(b.Top)
	return image.Rect(x, y, x+int(b.Width), y+int(b.Height))
}
