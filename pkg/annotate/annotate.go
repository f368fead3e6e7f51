// Package annotate renders predictions onto images.
//
// Two annotators are provided: BoxAnnotator outlines rectangles in place and
// MaskAnnotator fills polygons on an overlay that is blended back onto a copy
// of the source. Coordinates outside the canvas are clipped, never rejected.
package annotate

import (
	"image"
	"image/color"

	"github.com/menta2k/inference-bench/pkg/types"
)

// Annotator draws a sequence of predictions onto an image
type Annotator interface {
	Annotate(src *image.NRGBA, preds []types.Prediction) *image.NRGBA
}

// For returns the annotator matching a prediction kind
func For(kind types.Kind) Annotator {
	if kind == types.KindPolygon {
		return NewMaskAnnotator()
	}
	return NewBoxAnnotator()
}

// BoxAnnotator outlines rectangles and labels them
type BoxAnnotator struct {
	Color  color.NRGBA
	Stroke int
}

// NewBoxAnnotator creates a box annotator with a green 2px stroke
func NewBoxAnnotator() *BoxAnnotator {
	return &BoxAnnotator{
		Color:  color.NRGBA{0, 255, 0, 255},
		Stroke: 2,
	}
}

// LabelAnchor returns the text baseline origin for a box whose top-left
// corner is topLeft. The baseline never goes above row 20.
func LabelAnchor(topLeft image.Point) image.Point {
	return image.Pt(topLeft.X, max(20, topLeft.Y-5))
}

// Annotate draws every box prediction onto src and returns src
func (a *BoxAnnotator) Annotate(src *image.NRGBA, preds []types.Prediction) *image.NRGBA {
	for _, p := range preds {
		if p.Kind != types.KindBox {
			continue
		}
		drawRect(src, p.Min, p.Max, a.Color, a.Stroke)
		drawText(src, FormatLabel(p.Label, p.Confidence), LabelAnchor(p.Min), a.Color)
	}
	return src
}
