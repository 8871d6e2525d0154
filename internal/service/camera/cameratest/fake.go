// Package cameratest provides controllable camera devices for tests.
package cameratest

import (
	"errors"
	"image/color"
	"sync"
	"testing"

	"chitcam/internal/model"
	"chitcam/internal/service/camera"
	"chitcam/internal/service/decoder"
)

// Opener hands out a fresh Device for every Open call using its fields as the template.
type Opener struct {
	mu sync.Mutex

	// Still is returned as a JPEG frame by CaptureStill.
	Still []byte
	// StillFrame, when set, is returned instead of Still.
	StillFrame *model.Frame
	StillErr   error
	// Gate, when set, blocks CaptureStill until a value is received or it is closed.
	Gate chan struct{}
	// OpenErr fails every Open.
	OpenErr error

	devices []*Device
	lenses  []model.LensFacing
}

func (o *Opener) Open(lens model.LensFacing) (camera.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.lenses = append(o.lenses, lens)
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}

	d := &Device{
		Lens:       lens,
		still:      o.Still,
		stillFrame: o.StillFrame,
		stillErr:   o.StillErr,
		gate:       o.Gate,
	}
	o.devices = append(o.devices, d)
	return d, nil
}

// SetOpenErr makes every later Open fail with err.
func (o *Opener) SetOpenErr(err error) {
	o.mu.Lock()
	o.OpenErr = err
	o.mu.Unlock()
}

// Opens returns the lenses of every Open call, in order.
func (o *Opener) Opens() []model.LensFacing {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.LensFacing(nil), o.lenses...)
}

// Last returns the most recently opened device.
func (o *Opener) Last() *Device {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.devices) == 0 {
		return nil
	}
	return o.devices[len(o.devices)-1]
}

// Devices returns every device opened so far.
func (o *Opener) Devices() []*Device {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Device(nil), o.devices...)
}

// Device is a fake camera.Device.
type Device struct {
	Lens model.LensFacing

	mu         sync.Mutex
	still      []byte
	stillFrame *model.Frame
	stillErr   error
	gate       chan struct{}
	flash      model.FlashMode
	reads      int
	stills     int
	closed     bool
}

func (d *Device) ReadFrame() (*model.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, camera.ErrDeviceClosed
	}
	if len(d.still) == 0 {
		return nil, errors.New("no frame configured")
	}
	d.reads++
	return model.NewJPEGFrame(0, 0, d.still), nil
}

func (d *Device) CaptureStill() (*model.Frame, error) {
	d.mu.Lock()
	gate := d.gate
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, camera.ErrDeviceClosed
	}
	d.stills++
	if d.stillErr != nil {
		return nil, d.stillErr
	}
	if d.stillFrame != nil {
		return d.stillFrame, nil
	}
	return model.NewJPEGFrame(0, 0, d.still), nil
}

func (d *Device) SetFlash(mode model.FlashMode) error {
	d.mu.Lock()
	d.flash = mode
	d.mu.Unlock()
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Flash returns the last flash mode set.
func (d *Device) Flash() model.FlashMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flash
}

// Stills returns how many stills were taken.
func (d *Device) Stills() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stills
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// JPEG encodes a w x h image with a horizontal colour gradient over base.
func JPEG(t testing.TB, w, h int, base color.RGBA) []byte {
	t.Helper()

	b := model.NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.Set(x, y, color.RGBA{R: base.R, G: uint8(int(base.G) + x*40/w), B: base.B, A: 255})
		}
	}
	data, err := decoder.EncodeJPEG(b, 95)
	if err != nil {
		t.Fatalf("failed to encode test jpeg: %v", err)
	}
	return data
}
