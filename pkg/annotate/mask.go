package annotate

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"

	"github.com/menta2k/inference-bench/pkg/types"
)

// DefaultMaskAlpha is the overlay weight used when compositing masks
const DefaultMaskAlpha = 0.7

// MaskAnnotator fills polygons with random colors on an overlay and blends the
// overlay onto a copy of the source
type MaskAnnotator struct {
	Alpha     float64
	TextColor color.NRGBA
	intN      func(n int) int
}

// NewMaskAnnotator creates a mask annotator drawing colors from the global
// random source
func NewMaskAnnotator() *MaskAnnotator {
	return &MaskAnnotator{
		Alpha:     DefaultMaskAlpha,
		TextColor: color.NRGBA{255, 255, 255, 255},
		intN:      rand.IntN,
	}
}

// NewMaskAnnotatorWithRand creates a mask annotator with its own random source
func NewMaskAnnotatorWithRand(r *rand.Rand) *MaskAnnotator {
	a := NewMaskAnnotator()
	a.intN = r.IntN
	return a
}

// Annotate returns a new image; src is only read
func (a *MaskAnnotator) Annotate(src *image.NRGBA, preds []types.Prediction) *image.NRGBA {
	overlay := imaging.Clone(src)

	for _, p := range preds {
		if p.Kind != types.KindPolygon || len(p.Points) == 0 {
			continue
		}
		fill := color.NRGBA{
			R: uint8(a.intN(255)),
			G: uint8(a.intN(255)),
			B: uint8(a.intN(255)),
			A: 255,
		}
		fillPolygon(overlay, p.Points, fill)
		drawText(overlay, FormatLabel(p.Label, p.Confidence), p.Points[0], a.TextColor)
	}

	return Blend(overlay, imaging.Clone(src), a.Alpha)
}

// fillPolygon rasterizes a closed polygon onto img. Points are in img's
// coordinate space and may lie outside it.
func fillPolygon(img *image.NRGBA, pts []image.Point, c color.NRGBA) {
	b := img.Bounds()
	if b.Empty() {
		return
	}
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(float32(pts[0].X-b.Min.X), float32(pts[0].Y-b.Min.Y))
	for _, pt := range pts[1:] {
		z.LineTo(float32(pt.X-b.Min.X), float32(pt.Y-b.Min.Y))
	}
	z.ClosePath()
	z.Draw(img, b, image.NewUniform(c), image.Point{})
}

// Blend computes alpha*overlay + (1-alpha)*base per channel into base and
// returns it. Results are rounded to the nearest integer and clamped to
// [0,255]; the alpha channel of base is kept. Both images must share bounds.
func Blend(overlay, base *image.NRGBA, alpha float64) *image.NRGBA {
	beta := 1 - alpha
	b := base.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		oi := overlay.PixOffset(b.Min.X, y)
		bi := base.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			for c := 0; c < 3; c++ {
				v := alpha*float64(overlay.Pix[oi+c]) + beta*float64(base.Pix[bi+c])
				base.Pix[bi+c] = clampChannel(math.Round(v))
			}
			oi += 4
			bi += 4
		}
	}
	return base
}

func clampChannel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
