package processing

import (
	"encoding/base64"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a gradient test image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 255 / width), uint8(y * 255 / height), 90, 255})
		}
	}
	return img
}

func TestSaveAndLoadPNG(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "frame.png")
	src := createTestImage(40, 30)

	require.NoError(t, p.SaveImage(src, path))
	got, err := p.LoadImage(path)
	require.NoError(t, err)

	assert.Equal(t, src.Bounds(), got.Bounds())
	assert.Equal(t, src.Pix, got.Pix)
}

func TestSaveAndLoadJPEG(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "frame.JPG")

	require.NoError(t, p.SaveImage(createTestImage(64, 48), path))
	got, err := p.LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), got.Bounds())

	format, err := imaging.FormatFromFilename(path)
	require.NoError(t, err)
	assert.Equal(t, imaging.JPEG, format)
}

func TestLoadImageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a jpeg"), 0644))

	_, err := NewProcessor().LoadImage(path)
	assert.ErrorContains(t, err, "broken.jpg")
}

func TestSaveImageUnknownExtension(t *testing.T) {
	err := NewProcessor().SaveImage(createTestImage(4, 4), filepath.Join(t.TempDir(), "out.xyz"))
	assert.Error(t, err)
}

func TestReadBase64(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.png")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3, 4}, 0644))

	got, err := NewProcessor().ReadBase64(path)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4}), got)
}

func TestPrepareImageForModelDownscales(t *testing.T) {
	enc, err := NewProcessor().PrepareImageForModel(createTestImage(400, 200), "png", 100, 90)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "small.png")
	require.NoError(t, os.WriteFile(path, raw, 0644))

	img, err := NewProcessor().LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}
