package detection

import (
	"context"
	"encoding/base64"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/inference-bench/pkg/geometry"
)

type fakeVision struct {
	reply    string
	err      error
	gotModel string
	gotImage string
}

func (f *fakeVision) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.gotModel, f.gotImage = model, imgB64
	return f.reply, f.err
}

func TestSanitizeModelJSON(t *testing.T) {
	tests := map[string]string{
		"fenced":         "```json\n{\"objects\":[]}\n```",
		"trailing comma": `{"objects":[],}`,
		"comments":       "{\n// none found\n\"objects\": [] /* empty */\n}",
		"prose around":   `Sure! Here you go: {"objects":[]} Hope that helps.`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			got := SanitizeModelJSON(raw)
			require.NotEmpty(t, got)
			assert.Equal(t, byte('{'), got[0])
			assert.Equal(t, byte('}'), got[len(got)-1])
			resp, err := ToResponse(raw, 100, 100)
			require.NoError(t, err)
			assert.Empty(t, resp.Predictions())
		})
	}
}

func TestToResponseScalesBoxes(t *testing.T) {
	reply := `{"objects":[
		{"label":"Car","confidence":0.8,"box":{"x":0.125,"y":0.25,"w":0.5,"h":0.25}},
		{"label":"","confidence":1.7,"box":{"x":0.75,"y":0.75,"w":0.5,"h":0.5}},
		{"label":"ghost","confidence":0.4,"box":{"x":0.5,"y":0.5,"w":0,"h":0.1}}
	]}`

	resp, err := ToResponse(reply, 200, 400)
	require.NoError(t, err)

	preds := resp.Predictions()
	require.Len(t, preds, 2)

	box, ok := geometry.Box(preds[0])
	require.True(t, ok)
	assert.Equal(t, "car", box.Label)
	assert.Equal(t, image.Pt(25, 100), box.Min)
	assert.Equal(t, image.Pt(125, 200), box.Max)

	clipped, ok := geometry.Box(preds[1])
	require.True(t, ok)
	assert.Equal(t, "obj", clipped.Label)
	assert.Equal(t, 1.0, clipped.Confidence)
	assert.Equal(t, image.Pt(150, 300), clipped.Min)
	assert.Equal(t, image.Pt(200, 400), clipped.Max)
}

func TestToResponseNonJSON(t *testing.T) {
	_, err := ToResponse("I can see a red car parked on the street.", 10, 10)
	assert.ErrorIs(t, err, ErrNonJSON)
}

func TestDetectorInfer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.png")
	require.NoError(t, imaging.Save(imaging.New(300, 100, image.White), path))

	vc := &fakeVision{reply: `{"objects":[{"label":"person","confidence":0.9,"box":{"x":0,"y":0,"w":0.5,"h":1}}]}`}
	d := NewDetector(vc, Options{MaxDim: 150})

	resp, err := d.Infer(context.Background(), path, "qwen2.5vl")
	require.NoError(t, err)

	assert.Equal(t, "qwen2.5vl", vc.gotModel)
	raw, err := base64.StdEncoding.DecodeString(vc.gotImage)
	require.NoError(t, err)
	sent, err := os.CreateTemp(t.TempDir(), "*.jpg")
	require.NoError(t, err)
	_, err = sent.Write(raw)
	require.NoError(t, err)
	require.NoError(t, sent.Close())
	uploaded, err := imaging.Open(sent.Name())
	require.NoError(t, err)
	assert.Equal(t, 150, uploaded.Bounds().Dx(), "upload is downscaled")

	box, ok := geometry.Box(resp.Predictions()[0])
	require.True(t, ok)
	assert.Equal(t, image.Pt(150, 100), box.Max, "boxes use the original size")
}

func TestDetectorInferClientError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, imaging.Save(imaging.New(8, 8, image.Black), path))

	d := NewDetector(&fakeVision{err: errors.New("connection refused")}, Options{})
	_, err := d.Infer(context.Background(), path, "m")
	assert.ErrorContains(t, err, "connection refused")
}
