package ocr

import "github.com/ironsheep/ocr-engine/internal/ocrerr"

// Status is the outcome of a boundary call.
type Status int32

const (
	Success Status = iota
	EngineCreationFailed
	ImageLoadFailed
	DetectionFailed
	RecognitionFailed
	InvalidHandle
	DestroyFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case EngineCreationFailed:
		return "EngineCreationFailed"
	case ImageLoadFailed:
		return "ImageLoadFailed"
	case DetectionFailed:
		return "DetectionFailed"
	case RecognitionFailed:
		return "RecognitionFailed"
	case InvalidHandle:
		return "InvalidHandle"
	case DestroyFailed:
		return "DestroyFailed"
	default:
		return "Unknown"
	}
}

// statusOf maps an engine error to a Status, using fallback for errors
// that carry no kind.
func statusOf(err error, fallback Status) Status {
	if err == nil {
		return Success
	}
	switch ocrerr.KindOf(err) {
	case ocrerr.KindEngineCreation:
		return EngineCreationFailed
	case ocrerr.KindImageLoad:
		return ImageLoadFailed
	case ocrerr.KindDetection:
		return DetectionFailed
	case ocrerr.KindRecognition:
		return RecognitionFailed
	case ocrerr.KindHandle:
		return InvalidHandle
	case ocrerr.KindDestroy:
		return DestroyFailed
	default:
		return fallback
	}
}
