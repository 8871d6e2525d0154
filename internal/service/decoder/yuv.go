package decoder

import (
	"fmt"

	"chitcam/internal/model"
)

// packSemiPlanar copies a three-plane YUV 4:2:0 frame into one buffer:
// the full luma plane followed by interleaved chroma in the given order.
// Row and pixel strides of every plane are honoured.
func packSemiPlanar(f *model.Frame, order ChromaOrder) ([]byte, error) {
	if len(f.Planes) != 3 {
		return nil, fmt.Errorf("yuv420 frame needs 3 planes, got %d", len(f.Planes))
	}
	if f.Width <= 0 || f.Height <= 0 || f.Width%2 != 0 || f.Height%2 != 0 {
		return nil, fmt.Errorf("yuv420 frame needs even dimensions, got %dx%d", f.Width, f.Height)
	}

	w, h := f.Width, f.Height
	cw, ch := w/2, h/2
	yp, up, vp := f.Planes[0], f.Planes[1], f.Planes[2]

	if err := checkPlane("Y", yp, w, h); err != nil {
		return nil, err
	}
	if err := checkPlane("U", up, cw, ch); err != nil {
		return nil, err
	}
	if err := checkPlane("V", vp, cw, ch); err != nil {
		return nil, err
	}

	out := make([]byte, w*h+2*cw*ch)
	pos := 0

	for row := 0; row < h; row++ {
		base := row * yp.RowStride
		if pixelStride(yp) == 1 {
			copy(out[pos:pos+w], yp.Data[base:base+w])
			pos += w
			continue
		}
		for col := 0; col < w; col++ {
			out[pos] = yp.Data[base+col*yp.PixelStride]
			pos++
		}
	}

	first, second := vp, up
	if order == ChromaUV {
		first, second = up, vp
	}
	for row := 0; row < ch; row++ {
		for col := 0; col < cw; col++ {
			out[pos] = first.Data[row*first.RowStride+col*pixelStride(first)]
			out[pos+1] = second.Data[row*second.RowStride+col*pixelStride(second)]
			pos += 2
		}
	}

	return out, nil
}

func pixelStride(p model.Plane) int {
	if p.PixelStride <= 0 {
		return 1
	}
	return p.PixelStride
}

// checkPlane verifies the last sample of the plane is addressable.
func checkPlane(name string, p model.Plane, w, h int) error {
	if p.RowStride < (w-1)*pixelStride(p)+1 {
		return fmt.Errorf("%s plane row stride %d too small for width %d", name, p.RowStride, w)
	}
	last := (h-1)*p.RowStride + (w-1)*pixelStride(p)
	if last >= len(p.Data) {
		return fmt.Errorf("%s plane has %d bytes, needs at least %d", name, len(p.Data), last+1)
	}
	return nil
}
