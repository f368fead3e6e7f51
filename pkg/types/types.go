package types

import (
	"image"

	"github.com/tidwall/gjson"
)

// Kind selects the geometry of a prediction
type Kind int

const (
	// KindBox is an axis-aligned rectangle
	KindBox Kind = iota
	// KindPolygon is an ordered point sequence filled as a mask
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindPolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// Prediction is one normalized shape returned by a detector.
// Min/Max are set for KindBox, Points for KindPolygon.
type Prediction struct {
	Kind       Kind
	Label      string
	Confidence float64

	Min image.Point
	Max image.Point

	Points []image.Point
}

// Response is the raw body returned by a detector
type Response struct {
	Body []byte
}

// Predictions returns the entries of the "predictions" field, or nil when the
// field is absent or not an array.
func (r *Response) Predictions() []gjson.Result {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	preds := gjson.GetBytes(r.Body, "predictions")
	if !preds.IsArray() {
		return nil
	}
	return preds.Array()
}

// ImageItem is one input image for the duration of a single iteration
type ImageItem struct {
	Name  string
	Path  string
	Image *image.NRGBA
	Err   error
}

// Readable reports whether the image decoded
func (it ImageItem) Readable() bool {
	return it.Err == nil && it.Image != nil
}

// Status is the per-image result recorded in the log
type Status string

const (
	StatusOK              Status = "ok"
	StatusUnreadableImage Status = "unreadable_image"
	StatusInvocationError Status = "invocation_error"
	StatusWriteFailed     Status = "write_failed"
)

// Outcome is the result of invoking a detector for one image
type Outcome struct {
	Status    Status
	Raw       []gjson.Result
	LatencyMs float64
	Err       error
}

// OK reports whether the invocation succeeded
func (o Outcome) OK() bool {
	return o.Status == StatusOK
}

// ResultRow is one line of the result log
type ResultRow struct {
	ImageName       string
	InferenceTimeMs *float64
	DetectionCount  *int
	Status          Status
}

// OKRow builds a successful row
func OKRow(name string, latencyMs float64, count int) ResultRow {
	return ResultRow{
		ImageName:       name,
		InferenceTimeMs: &latencyMs,
		DetectionCount:  &count,
		Status:          StatusOK,
	}
}

// FailedRow builds a row with empty timing and count
func FailedRow(name string, status Status) ResultRow {
	return ResultRow{ImageName: name, Status: status}
}
