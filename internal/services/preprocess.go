package services

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const preprocessJPEGQuality = 85

// PreprocessImage normalizes a screenshot for OCR: the EXIF orientation is
// applied, the image is converted to grayscale and lightly sharpened, and the
// result is re-encoded as JPEG. The output depends only on the input bytes,
// so a redelivered message reproduces the same OCR input.
func PreprocessImage(src []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img = imaging.Grayscale(img)
	img = imaging.Sharpen(img, 0.5)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(preprocessJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
