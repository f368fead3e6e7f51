package onnx

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

// Detection is one decoded box in source image pixels. X and Y are the box
// center.
type Detection struct {
	X, Y, W, H float32
	Class      int
	Score      float32
}

// NumAnchors returns the anchor count of a YOLOv8 head for a square input of
// the given size (strides 8, 16 and 32)
func NumAnchors(inputSize int) int {
	n := 0
	for _, s := range []int{8, 16, 32} {
		g := inputSize / s
		n += g * g
	}
	return n
}

// Decode reads a [1, 4+numClasses, numAnchors] output. Each anchor keeps its
// best class if the score reaches threshold; coordinates are scaled by
// scaleX/scaleY from model input space to source pixels.
func Decode(out []float32, numClasses, numAnchors int, scaleX, scaleY, threshold float32) ([]Detection, error) {
	if want := (4 + numClasses) * numAnchors; len(out) != want {
		return nil, errors.Errorf("unexpected output length: got %d, want %d", len(out), want)
	}

	dets := make([]Detection, 0, 64)
	for a := 0; a < numAnchors; a++ {
		best, score := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if v := out[(4+c)*numAnchors+a]; best < 0 || v > score {
				best, score = c, v
			}
		}
		if best < 0 || score < threshold {
			continue
		}
		dets = append(dets, Detection{
			X:     out[a] * scaleX,
			Y:     out[numAnchors+a] * scaleY,
			W:     out[2*numAnchors+a] * scaleX,
			H:     out[3*numAnchors+a] * scaleY,
			Class: best,
			Score: score,
		})
	}
	return dets, nil
}

// NMS drops boxes overlapping a higher scoring box of the same class by more
// than iouThreshold. The result is sorted by score, highest first.
func NMS(dets []Detection, iouThreshold float32) []Detection {
	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Class == d.Class && IoU(k, d) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

// IoU returns the intersection over union of two center/size boxes
func IoU(a, b Detection) float32 {
	ax0, ay0, ax1, ay1 := a.X-a.W/2, a.Y-a.H/2, a.X+a.W/2, a.Y+a.H/2
	bx0, by0, bx1, by1 := b.X-b.W/2, b.Y-b.H/2, b.X+b.W/2, b.Y+b.H/2

	iw := min(ax1, bx1) - max(ax0, bx0)
	ih := min(ay1, by1) - max(ay0, by0)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.W*a.H + b.W*b.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Response renders detections in the hosted API's prediction layout
func Response(dets []Detection, labels []string, width, height int) ([]byte, error) {
	body := []byte(`{"predictions":[]}`)
	var err error
	for _, d := range dets {
		body, err = sjson.SetBytes(body, "predictions.-1", map[string]any{
			"x":          d.X,
			"y":          d.Y,
			"width":      d.W,
			"height":     d.H,
			"confidence": d.Score,
			"class":      labelFor(labels, d.Class),
			"class_id":   d.Class,
		})
		if err != nil {
			return nil, errors.Wrap(err, "build prediction")
		}
	}
	if body, err = sjson.SetBytes(body, "image.width", width); err != nil {
		return nil, errors.Wrap(err, "build response")
	}
	if body, err = sjson.SetBytes(body, "image.height", height); err != nil {
		return nil, errors.Wrap(err, "build response")
	}
	return body, nil
}

func labelFor(labels []string, class int) string {
	if class >= 0 && class < len(labels) {
		return labels[class]
	}
	return fmt.Sprintf("class_%d", class)
}
