package feeder

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
)

// Encoder turns source images into JPEG frames no larger than MaxDimension
// on their longest side.
type Encoder struct {
	MaxDimension int
	Quality      int
}

// Encode decodes an image in any format imaging supports and re-encodes it
// as JPEG.
func (e Encoder) Encode(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img = e.downscale(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.Quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeFile encodes the image stored at path.
func (e Encoder) EncodeFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return e.Encode(f)
}

func (e Encoder) downscale(img image.Image) image.Image {
	if e.MaxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= e.MaxDimension && b.Dy() <= e.MaxDimension {
		return img
	}
	return imaging.Fit(img, e.MaxDimension, e.MaxDimension, imaging.Lanczos)
}
