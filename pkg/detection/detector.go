package detection

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/menta2k/inference-bench/pkg/client"
	"github.com/menta2k/inference-bench/pkg/processing"
	"github.com/menta2k/inference-bench/pkg/types"
)

// DefaultPrompt asks a vision model for every object with a normalized box
const DefaultPrompt = `You are an object detector.

Return JSON only:
{
  "objects": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ]
}

HARD RULES
- x, y is the top-left corner of the box; w, h its width and height.
- All coordinates are normalized to [0,1] (NOT pixels).
- One entry per visible object: people, vehicles, animals and other distinct things.
- Labels: lowercase, singular, one or two words.
- If nothing is found, return {"objects": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// ErrNonJSON is returned when the model reply holds no JSON object
var ErrNonJSON = errors.New("model returned non-JSON response")

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// Options tunes how images are uploaded to the model
type Options struct {
	Prompt  string
	MaxDim  int
	Quality int
}

// Detector turns a vision language model into a box detector
type Detector struct {
	client    client.VisionClient
	opts      Options
	processor *processing.Processor
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient, opts Options) *Detector {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 85
	}
	return &Detector{client: client, opts: opts, processor: processing.NewProcessor()}
}

// Infer uploads the image at imagePath and converts the model's normalized
// boxes to pixel center/size predictions
func (d *Detector) Infer(ctx context.Context, imagePath, model string) (*types.Response, error) {
	img, err := d.processor.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}

	imgB64, err := d.processor.PrepareImageForModel(img, "jpg", d.opts.MaxDim, d.opts.Quality)
	if err != nil {
		return nil, errors.Wrap(err, "encode image for model")
	}

	reply, err := d.client.SimpleQuery(ctx, model, d.opts.Prompt, imgB64)
	if err != nil {
		return nil, err
	}

	return ToResponse(reply, img.Bounds().Dx(), img.Bounds().Dy())
}

// ToResponse parses a model reply and rescales its boxes to a width x height
// image. Boxes are clipped to the image; empty boxes are dropped.
func ToResponse(reply string, width, height int) (*types.Response, error) {
	raw := SanitizeModelJSON(reply)
	if !strings.HasPrefix(raw, "{") || !gjson.Valid(raw) {
		return nil, ErrNonJSON
	}

	fw, fh := float64(width), float64(height)
	body := []byte(`{"predictions":[]}`)
	var err error
	for _, obj := range gjson.Get(raw, "objects").Array() {
		box := normalizeBox(obj.Get("box"))
		if box.w <= 0 || box.h <= 0 {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(obj.Get("label").String()))
		if label == "" {
			label = "obj"
		}
		body, err = sjson.SetBytes(body, "predictions.-1", map[string]any{
			"x":          (box.x + box.w/2) * fw,
			"y":          (box.y + box.h/2) * fh,
			"width":      box.w * fw,
			"height":     box.h * fh,
			"class":      label,
			"confidence": clamp(obj.Get("confidence").Float(), 0, 1),
		})
		if err != nil {
			return nil, errors.Wrap(err, "build prediction")
		}
	}
	return &types.Response{Body: body}, nil
}

type normBox struct {
	x, y, w, h float64
}

// normalizeBox clips a normalized box to the unit square
func normalizeBox(b gjson.Result) normBox {
	x0 := clamp(b.Get("x").Float(), 0, 1)
	y0 := clamp(b.Get("y").Float(), 0, 1)
	x1 := clamp(b.Get("x").Float()+b.Get("w").Float(), 0, 1)
	y1 := clamp(b.Get("y").Float()+b.Get("h").Float(), 0, 1)
	return normBox{x: x0, y: y0, w: x1 - x0, h: y1 - y0}
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
