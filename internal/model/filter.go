package model

// FilterKind identifies the pixel transform a Filter applies.
type FilterKind int

const (
	KindIdentity FilterKind = iota
	KindSepia
	KindGrayscale
	KindBrightness
	KindContrast
	KindSaturation
	KindVignette
	KindPixelate
)

func (k FilterKind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindSepia:
		return "sepia"
	case KindGrayscale:
		return "grayscale"
	case KindBrightness:
		return "brightness"
	case KindContrast:
		return "contrast"
	case KindSaturation:
		return "saturation"
	case KindVignette:
		return "vignette"
	case KindPixelate:
		return "pixelate"
	default:
		return "unknown"
	}
}

// Filter is a named, parameterised pixel transform. Values are immutable.
type Filter struct {
	Name   string     `json:"name"`
	Kind   FilterKind `json:"-"`
	Params []float64  `json:"params,omitempty"`
}

// Param returns Params[i] or def when the parameter is missing.
func (f Filter) Param(i int, def float64) float64 {
	if i < len(f.Params) {
		return f.Params[i]
	}
	return def
}

// Name of the identity filter, also recorded on fallback artifacts.
const NormalFilterName = "Normal"

// DefaultFilters returns the ordered filter list offered to the user.
//
// Params:
//   - Brightness: offset in [-1, 1] of full scale
//   - Contrast: scale around mid-grey
//   - Saturation: scale around luma
//   - Vignette: centerX, centerY, start, end (fractions of the half diagonal)
//   - Pixelate: block size in pixels
func DefaultFilters() []Filter {
	return []Filter{
		{Name: NormalFilterName, Kind: KindIdentity},
		{Name: "Sepia", Kind: KindSepia},
		{Name: "Grayscale", Kind: KindGrayscale},
		{Name: "Bright", Kind: KindBrightness, Params: []float64{0.3}},
		{Name: "Contrast", Kind: KindContrast, Params: []float64{1.5}},
		{Name: "Saturation", Kind: KindSaturation, Params: []float64{2.0}},
		{Name: "Vignette", Kind: KindVignette, Params: []float64{0.5, 0.5, 0.3, 0.75}},
		{Name: "Pixelated", Kind: KindPixelate, Params: []float64{10}},
	}
}
