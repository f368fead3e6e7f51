package client

import (
	"context"

	"github.com/menta2k/inference-bench/pkg/types"
)

// Detector runs inference on a single image file. The returned body carries a
// "predictions" array of box records (x, y, width, height, class, confidence)
// or polygon records (points, class, confidence).
type Detector interface {
	Infer(ctx context.Context, imagePath, modelID string) (*types.Response, error)
}

// VisionClient sends one image and a prompt to a vision language model and
// returns the text of its reply
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
