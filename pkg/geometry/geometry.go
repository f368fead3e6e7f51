// Package geometry converts raw detector records into drawable shapes.
package geometry

import (
	"image"
	"strconv"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/menta2k/inference-bench/pkg/types"
)

const (
	// DefaultLabel is used when a record carries no class
	DefaultLabel = "obj"
)

// Normalizer turns one raw record into a shape. The bool is false when the
// record does not describe a drawable shape.
type Normalizer func(raw gjson.Result) (types.Prediction, bool)

// For returns the normalizer matching a prediction kind
func For(kind types.Kind) Normalizer {
	if kind == types.KindPolygon {
		return Polygon
	}
	return Box
}

// All normalizes raws in order, dropping records that are not shapes
func All(raws []gjson.Result, fn Normalizer) []types.Prediction {
	out := make([]types.Prediction, 0, len(raws))
	for _, raw := range raws {
		if p, ok := fn(raw); ok {
			out = append(out, p)
		}
	}
	return out
}

// Box converts a center/size record into corner coordinates. Coordinates are
// truncated toward zero and never clamped to the canvas.
func Box(raw gjson.Result) (types.Prediction, bool) {
	fields := gjson.GetMany(raw.Raw, "x", "y", "width", "height")
	if lo.ContainsBy(fields, func(f gjson.Result) bool { return !isNumeric(f) }) {
		return types.Prediction{}, false
	}
	x, y := fields[0].Float(), fields[1].Float()
	w, h := fields[2].Float(), fields[3].Float()

	label, conf := labelAndConfidence(raw)
	return types.Prediction{
		Kind:       types.KindBox,
		Label:      label,
		Confidence: conf,
		Min:        image.Pt(int(x-w/2), int(y-h/2)),
		Max:        image.Pt(int(x+w/2), int(y+h/2)),
	}, true
}

// Polygon converts a record with a "points" list. Missing or empty point lists
// are not shapes.
func Polygon(raw gjson.Result) (types.Prediction, bool) {
	pts := raw.Get("points")
	if !pts.IsArray() {
		return types.Prediction{}, false
	}
	arr := pts.Array()
	if len(arr) == 0 {
		return types.Prediction{}, false
	}

	points := make([]image.Point, 0, len(arr))
	for _, pt := range arr {
		px, py := pt.Get("x"), pt.Get("y")
		if !isNumeric(px) || !isNumeric(py) {
			return types.Prediction{}, false
		}
		points = append(points, image.Pt(int(px.Float()), int(py.Float())))
	}

	label, conf := labelAndConfidence(raw)
	return types.Prediction{
		Kind:       types.KindPolygon,
		Label:      label,
		Confidence: conf,
		Points:     points,
	}, true
}

func labelAndConfidence(raw gjson.Result) (string, float64) {
	label := DefaultLabel
	if c := raw.Get("class"); c.Exists() && c.Type != gjson.Null {
		label = c.String()
	}
	// Float() coerces numeric strings and yields 0 when absent
	return label, raw.Get("confidence").Float()
}

func isNumeric(r gjson.Result) bool {
	switch r.Type {
	case gjson.Number:
		return true
	case gjson.String:
		_, err := strconv.ParseFloat(r.Str, 64)
		return err == nil
	default:
		return false
	}
}
