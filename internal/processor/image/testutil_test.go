package image

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// createTestImage creates a gradient image so resizes are visible.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(255 * x / width),
				G: uint8(255 * y / height),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// writeTestJPEG writes a width x height JPEG into dir and returns its path.
func writeTestJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createTestImage(width, height), &jpeg.Options{Quality: 85}); err != nil {
		t.Fatal(err)
	}
	return writeFile(t, dir, name, buf.Bytes())
}

func writeTestPNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(width, height)); err != nil {
		t.Fatal(err)
	}
	return writeFile(t, dir, name, buf.Bytes())
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// imageDimensions decodes the file at path and returns its size.
func imageDimensions(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	if format != "webp" {
		t.Errorf("format = %q, want webp", format)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
