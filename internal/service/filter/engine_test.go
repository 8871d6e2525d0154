package filter

import (
	"image/color"
	"sync"
	"testing"

	"chitcam/internal/apperr"
	"chitcam/internal/model"
)

func gradient(w, h int) *model.Bitmap {
	b := model.NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x + y) % 256), A: 255})
		}
	}
	return b
}

func TestApply_IdentityIsPixelEqualCopy(t *testing.T) {
	src := gradient(40, 30)
	out, err := NewEngine().Apply(src, model.DefaultFilters()[0])
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !out.Equal(src) {
		t.Fatal("Identity must be pixel-equal")
	}
	out.Pix[0] ^= 0xFF
	if out.Equal(src) {
		t.Error("Identity must return a copy, not the input")
	}
}

func TestApply_EveryDefaultFilter(t *testing.T) {
	e := NewEngine()
	src := gradient(64, 48)
	before := src.Clone()

	for _, f := range model.DefaultFilters() {
		t.Run(f.Name, func(t *testing.T) {
			out, err := e.Apply(src, f)
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if out.Width != src.Width || out.Height != src.Height {
				t.Errorf("Size changed to %dx%d", out.Width, out.Height)
			}
			if f.Kind != model.KindIdentity && out.Equal(src) {
				t.Errorf("%s left the image unchanged", f.Name)
			}
			if !src.Equal(before) {
				t.Fatal("Apply modified its input")
			}
		})
	}
}

func TestApply_PixelFormulas(t *testing.T) {
	e := NewEngine()
	src := model.NewBitmap(4, 4)
	src.Fill(color.RGBA{R: 100, G: 150, B: 200, A: 255})

	tests := []struct {
		name   string
		filter model.Filter
		want   color.RGBA
	}{
		{"brightness", model.Filter{Kind: model.KindBrightness, Params: []float64{0.3}}, color.RGBA{R: 177, G: 227, B: 255, A: 255}},
		{"contrast", model.Filter{Kind: model.KindContrast, Params: []float64{1.5}}, color.RGBA{R: 86, G: 161, B: 236, A: 255}},
		{"saturation zero", model.Filter{Kind: model.KindSaturation, Params: []float64{0}}, color.RGBA{R: 143, G: 143, B: 143, A: 255}},
		{"brightness default", model.Filter{Kind: model.KindBrightness}, color.RGBA{R: 100, G: 150, B: 200, A: 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Apply(src, tt.filter)
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			got := out.At(1, 1)
			if diff(got.R, tt.want.R) > 1 || diff(got.G, tt.want.G) > 1 || diff(got.B, tt.want.B) > 1 || got.A != tt.want.A {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestApply_GrayscaleChannelsEqual(t *testing.T) {
	out, err := NewEngine().Apply(gradient(20, 20), model.Filter{Name: "Grayscale", Kind: model.KindGrayscale})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := out.At(x, y)
			if c.R != c.G || c.G != c.B {
				t.Fatalf("Pixel (%d,%d) not gray: %+v", x, y, c)
			}
		}
	}
}

func TestApply_VignetteDarkensCorners(t *testing.T) {
	src := model.NewBitmap(50, 50)
	src.Fill(color.RGBA{R: 200, G: 200, B: 200, A: 255})

	out, err := NewEngine().Apply(src, model.DefaultFilters()[6])
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.At(25, 25).R != 200 {
		t.Errorf("Centre should be untouched, got %+v", out.At(25, 25))
	}
	if out.At(0, 0).R >= 100 {
		t.Errorf("Corner should be dark, got %+v", out.At(0, 0))
	}
}

func TestApply_PixelateBlocks(t *testing.T) {
	out, err := NewEngine().Apply(gradient(40, 40), model.Filter{Kind: model.KindPixelate, Params: []float64{10}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	first := out.At(0, 0)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if out.At(x, y) != first {
				t.Fatalf("Pixel (%d,%d) differs inside the first block", x, y)
			}
		}
	}
}

func TestApply_Errors(t *testing.T) {
	e := NewEngine()

	_, err := e.Apply(&model.Bitmap{Width: 2, Height: 2, Pix: make([]byte, 3)}, model.Filter{Kind: model.KindIdentity})
	if !apperr.IsKind(err, apperr.InvalidArgument) {
		t.Errorf("Expected InvalidArgument for malformed bitmap, got %v", err)
	}

	_, err = e.Apply(gradient(4, 4), model.Filter{Name: "Mystery", Kind: model.FilterKind(99)})
	if err == nil {
		t.Error("Expected error for unknown kind")
	}

	_, err = e.Apply(gradient(4, 4), model.Filter{Kind: model.KindVignette, Params: []float64{0.5, 0.5, 0.8, 0.2}})
	if err == nil {
		t.Error("Expected error for inverted vignette range")
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestApply_ConcurrentCallsMatchSerial(t *testing.T) {
	e := NewEngine()
	src := gradient(64, 48)
	filters := model.DefaultFilters()

	want := make([]*model.Bitmap, len(filters))
	for i, f := range filters {
		out, err := e.Apply(src, f)
		if err != nil {
			t.Fatalf("%s: serial Apply failed: %v", f.Name, err)
		}
		want[i] = out
	}

	const rounds = 8
	var wg sync.WaitGroup
	errs := make(chan string, rounds*len(filters))
	for r := 0; r < rounds; r++ {
		for i, f := range filters {
			wg.Add(1)
			go func(i int, f model.Filter) {
				defer wg.Done()
				out, err := e.Apply(src, f)
				if err != nil {
					errs <- f.Name + ": " + err.Error()
					return
				}
				if !out.Equal(want[i]) {
					errs <- f.Name + ": concurrent result differs from serial result"
				}
			}(i, f)
		}
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}
