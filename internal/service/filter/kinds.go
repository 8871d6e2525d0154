package filter

import (
	"fmt"
	"image"
	"math"

	"chitcam/internal/model"

	"gocv.io/x/gocv"
)

// transform writes the filtered version of src into a freshly allocated bitmap.
type transform func(src *model.Bitmap, f model.Filter) (*model.Bitmap, error)

var transforms = map[model.FilterKind]transform{
	model.KindIdentity:   identity,
	model.KindSepia:      sepia,
	model.KindGrayscale:  grayscale,
	model.KindBrightness: brightness,
	model.KindContrast:   contrast,
	model.KindSaturation: saturation,
	model.KindVignette:   vignette,
	model.KindPixelate:   pixelate,
}

// Luminance weights shared by saturation and sepia.
const (
	lumR = 0.2125
	lumG = 0.7154
	lumB = 0.0721
)

func identity(src *model.Bitmap, _ model.Filter) (*model.Bitmap, error) {
	return src.Clone(), nil
}

// mapRGB applies fn to every pixel with channels normalised to [0, 1]. Alpha is kept.
func mapRGB(src *model.Bitmap, fn func(r, g, b float64) (float64, float64, float64)) *model.Bitmap {
	dst := model.NewBitmap(src.Width, src.Height)
	for i := 0; i < len(src.Pix); i += 4 {
		r, g, b := fn(float64(src.Pix[i])/255, float64(src.Pix[i+1])/255, float64(src.Pix[i+2])/255)
		dst.Pix[i] = unit(r)
		dst.Pix[i+1] = unit(g)
		dst.Pix[i+2] = unit(b)
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst
}

// unit converts a [0, 1] channel back to a byte, clamping out of range values.
func unit(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func sepia(src *model.Bitmap, f model.Filter) (*model.Bitmap, error) {
	intensity := f.Param(0, 1.0)
	return mapRGB(src, func(r, g, b float64) (float64, float64, float64) {
		sr := 0.3588*r + 0.7044*g + 0.1368*b
		sg := 0.2990*r + 0.5870*g + 0.1140*b
		sb := 0.2392*r + 0.4696*g + 0.0912*b
		return mix(r, sr, intensity), mix(g, sg, intensity), mix(b, sb, intensity)
	}), nil
}

func brightness(src *model.Bitmap, f model.Filter) (*model.Bitmap, error) {
	offset := f.Param(0, 0)
	return mapRGB(src, func(r, g, b float64) (float64, float64, float64) {
		return r + offset, g + offset, b + offset
	}), nil
}

func contrast(src *model.Bitmap, f model.Filter) (*model.Bitmap, error) {
	scale := f.Param(0, 1.0)
	return mapRGB(src, func(r, g, b float64) (float64, float64, float64) {
		return (r-0.5)*scale + 0.5, (g-0.5)*scale + 0.5, (b-0.5)*scale + 0.5
	}), nil
}

func saturation(src *model.Bitmap, f model.Filter) (*model.Bitmap, error) {
	scale := f.Param(0, 1.0)
	return mapRGB(src, func(r, g, b float64) (float64, float64, float64) {
		l := lumR*r + lumG*g + lumB*b
		return mix(l, r, scale), mix(l, g, scale), mix(l, b, scale)
	}), nil
}

// vignette darkens towards black with distance from the centre, measured in
// normalised texture coordinates.
func vignette(src *model.Bitmap, f model.Filter) (*model.Bitmap, error) {
	cx, cy := f.Param(0, 0.5), f.Param(1, 0.5)
	start, end := f.Param(2, 0.3), f.Param(3, 0.75)
	if end <= start {
		return nil, fmt.Errorf("vignette end %.2f must be greater than start %.2f", end, start)
	}

	dst := model.NewBitmap(src.Width, src.Height)
	for y := 0; y < src.Height; y++ {
		v := (float64(y) + 0.5) / float64(src.Height)
		for x := 0; x < src.Width; x++ {
			u := (float64(x) + 0.5) / float64(src.Width)
			keep := 1 - smoothstep(start, end, math.Hypot(u-cx, v-cy))

			i := y*src.Stride() + x*4
			dst.Pix[i] = unit(float64(src.Pix[i]) / 255 * keep)
			dst.Pix[i+1] = unit(float64(src.Pix[i+1]) / 255 * keep)
			dst.Pix[i+2] = unit(float64(src.Pix[i+2]) / 255 * keep)
			dst.Pix[i+3] = src.Pix[i+3]
		}
	}
	return dst, nil
}

func grayscale(src *model.Bitmap, _ model.Filter) (*model.Bitmap, error) {
	rgba, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer rgba.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(rgba, &gray, gocv.ColorRGBAToGray); err != nil {
		return nil, fmt.Errorf("grayscale: %w", err)
	}

	out := gocv.NewMat()
	defer out.Close()
	if err := gocv.CvtColor(gray, &out, gocv.ColorGrayToRGBA); err != nil {
		return nil, fmt.Errorf("grayscale: %w", err)
	}

	dst, err := fromMat(out)
	if err != nil {
		return nil, err
	}
	copyAlpha(dst, src)
	return dst, nil
}

// pixelate averages block x block cells and scales them back up with nearest neighbour.
func pixelate(src *model.Bitmap, f model.Filter) (*model.Bitmap, error) {
	block := int(f.Param(0, 10))
	if block <= 1 {
		return src.Clone(), nil
	}

	rgba, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer rgba.Close()

	small := gocv.NewMat()
	defer small.Close()
	cells := image.Pt(ceilDiv(src.Width, block), ceilDiv(src.Height, block))
	if err := gocv.Resize(rgba, &small, cells, 0, 0, gocv.InterpolationArea); err != nil {
		return nil, fmt.Errorf("pixelate: %w", err)
	}

	out := gocv.NewMat()
	defer out.Close()
	if err := gocv.Resize(small, &out, image.Pt(src.Width, src.Height), 0, 0, gocv.InterpolationNearestNeighbor); err != nil {
		return nil, fmt.Errorf("pixelate: %w", err)
	}

	return fromMat(out)
}

func toMat(b *model.Bitmap) (gocv.Mat, error) {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	mat, err := gocv.NewMatFromBytes(b.Height, b.Width, gocv.MatTypeCV8UC4, pix)
	if err != nil {
		return mat, fmt.Errorf("failed to wrap bitmap: %w", err)
	}
	return mat, nil
}

func fromMat(mat gocv.Mat) (*model.Bitmap, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty result image")
	}
	b := &model.Bitmap{Width: mat.Cols(), Height: mat.Rows(), Pix: mat.ToBytes()}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func copyAlpha(dst, src *model.Bitmap) {
	for i := 3; i < len(src.Pix); i += 4 {
		dst.Pix[i] = src.Pix[i]
	}
}

func mix(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := (x - edge0) / (edge1 - edge0)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
