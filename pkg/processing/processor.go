package processing

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultJPEGQuality is used when writing annotated JPEG files
const DefaultJPEGQuality = 95

// Processor handles image decoding and encoding
type Processor struct {
	JPEGQuality int
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{JPEGQuality: DefaultJPEGQuality}
}

// LoadImage decodes a jpg or png file into a private NRGBA buffer, applying
// the EXIF orientation tag if present
func (p *Processor) LoadImage(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba, nil
	}
	return imaging.Clone(img), nil
}

// SaveImage writes img to path; the format follows the file extension
func (p *Processor) SaveImage(img image.Image, path string) error {
	quality := p.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return errors.Wrapf(err, "encode %s", filepath.Base(path))
	}
	return nil
}

// ReadBase64 returns the raw file bytes of path, base64 encoded
func (p *Processor) ReadBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read image")
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models.
// Images larger than maxDim on either side are downscaled first.
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
