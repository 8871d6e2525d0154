package camera

import (
	"image/color"
	"testing"

	"chitcam/internal/model"

	"gocv.io/x/gocv"
)

func TestI420Frame_PlanesAndCrop(t *testing.T) {
	b := model.NewBitmap(33, 17)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			b.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	mat, err := bitmapMat(b)
	if err != nil {
		t.Fatalf("Failed to wrap bitmap: %v", err)
	}
	defer mat.Close()

	f, err := i420Frame(mat, gocv.ColorRGBAToYUVI420)
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}

	if f.Width != 32 || f.Height != 16 || f.Encoding != model.EncodingYUV420 {
		t.Fatalf("Unexpected frame %s %dx%d", f.Encoding, f.Width, f.Height)
	}
	sizes := []int{32 * 16, 16 * 8, 16 * 8}
	strides := []int{32, 16, 16}
	for i, p := range f.Planes {
		if len(p.Data) != sizes[i] || p.RowStride != strides[i] || p.PixelStride != 1 {
			t.Errorf("Plane %d: %d bytes, stride %d/%d", i, len(p.Data), p.RowStride, p.PixelStride)
		}
	}

	// neutral grey carries no chroma
	for i := 1; i < 3; i++ {
		for _, v := range f.Planes[i].Data {
			if v < 126 || v > 130 {
				t.Fatalf("Plane %d: chroma %d, expected ~128", i, v)
			}
		}
	}
}

func TestI420Frame_TooSmall(t *testing.T) {
	mat, err := bitmapMat(model.NewBitmap(1, 1))
	if err != nil {
		t.Fatalf("Failed to wrap bitmap: %v", err)
	}
	defer mat.Close()

	if _, err := i420Frame(mat, gocv.ColorRGBAToYUVI420); err == nil {
		t.Error("Expected an error for a 1x1 frame")
	}
}
