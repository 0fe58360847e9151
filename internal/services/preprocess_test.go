package services

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"testing"
)

func pngFixture(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7 % 256), G: uint8(y * 13 % 256), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestPreprocessImageProducesGrayscaleJPEG(t *testing.T) {
	out, err := PreprocessImage(pngFixture(t, 40, 20))
	if err != nil {
		t.Fatalf("PreprocessImage: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("output format = %q, want jpeg", format)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Fatalf("output bounds = %v, want 40x20", b)
	}

	// A grayscale JPEG decodes with equal channels, within a small
	// tolerance for quantization.
	r, g, b, _ := img.At(20, 10).RGBA()
	if diff(r, g) > 3<<8 || diff(g, b) > 3<<8 {
		t.Fatalf("output pixel is not grayscale: r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}
}

func diff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestPreprocessImageDeterministic(t *testing.T) {
	src := pngFixture(t, 24, 24)

	first, err := PreprocessImage(src)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := PreprocessImage(src)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("same input produced different output bytes")
	}
}

func TestPreprocessImageRejectsNonImage(t *testing.T) {
	if _, err := PreprocessImage([]byte("definitely not pixels")); err == nil {
		t.Fatal("expected error for undecodable input")
	}
	if _, err := PreprocessImage(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
