package camera

import (
	"image/color"
	"sync"

	"chitcam/internal/apperr"
	"chitcam/internal/model"
	"chitcam/internal/service/decoder"

	"gocv.io/x/gocv"
)

// SyntheticOpener produces generated frames instead of talking to hardware.
// It backs CAMERA_DRIVER=synthetic and tests.
type SyntheticOpener struct {
	Width        int
	Height       int
	StillWidth   int
	StillHeight  int
	StillQuality int

	// PermissionDenied makes Open fail as if the OS refused camera access.
	PermissionDenied bool
}

// Open returns a synthetic device. The front lens renders a mirrored pattern.
func (o *SyntheticOpener) Open(lens model.LensFacing) (Device, error) {
	if o.PermissionDenied {
		return nil, apperr.Errorf(apperr.PermissionDenied, "camera.Open", "camera access denied")
	}

	w, h := orDefault(o.Width, 640), orDefault(o.Height, 480)
	return &syntheticDevice{
		lens:         lens,
		width:        w,
		height:       h,
		stillWidth:   orDefault(o.StillWidth, w),
		stillHeight:  orDefault(o.StillHeight, h),
		stillQuality: orDefault(o.StillQuality, 95),
	}, nil
}

type syntheticDevice struct {
	mu           sync.Mutex
	lens         model.LensFacing
	width        int
	height       int
	stillWidth   int
	stillHeight  int
	stillQuality int
	flash        model.FlashMode
	tick         int
	closed       bool
}

func (d *syntheticDevice) ReadFrame() (*model.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}

	d.tick++
	mat, err := bitmapMat(d.render(d.width, d.height))
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	return i420Frame(mat, gocv.ColorRGBAToYUVI420)
}

func (d *syntheticDevice) CaptureStill() (*model.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}

	w, h := d.stillWidth, d.stillHeight
	data, err := decoder.EncodeJPEG(d.render(w, h), d.stillQuality)
	if err != nil {
		return nil, err
	}
	return model.NewJPEGFrame(w, h, data), nil
}

func (d *syntheticDevice) SetFlash(mode model.FlashMode) error {
	d.mu.Lock()
	d.flash = mode
	d.mu.Unlock()
	return nil
}

func (d *syntheticDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// pattern is a colour gradient with a band that moves every frame.
// Flash brightens the scene. Caller holds d.mu.
func (d *syntheticDevice) pattern(w, h int) func(x, y int) (uint8, uint8, uint8) {
	tick, mirror := d.tick, d.lens == model.LensFront
	lift := 0
	if d.flash == model.FlashOn {
		lift = 40
	}
	return func(x, y int) (uint8, uint8, uint8) {
		if mirror {
			x = w - 1 - x
		}
		r := x*200/w + lift
		g := y*200/h + lift
		b := 60 + lift
		if (x+tick*4)%w < w/8 {
			b = 220
		}
		return clampByte(r), clampByte(g), clampByte(b)
	}
}

// render draws the current pattern into a w x h bitmap. Caller holds d.mu.
func (d *syntheticDevice) render(w, h int) *model.Bitmap {
	b := model.NewBitmap(w, h)
	rgb := d.pattern(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl := rgb(x, y)
			b.Set(x, y, color.RGBA{R: r, G: g, B: bl, A: 255})
		}
	}
	return b
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
