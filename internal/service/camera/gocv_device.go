package camera

import (
	"errors"
	"fmt"
	"sync"

	"chitcam/internal/apperr"
	"chitcam/internal/config"
	"chitcam/internal/model"

	"gocv.io/x/gocv"
)

// GocvOpener opens local capture devices through OpenCV.
type GocvOpener struct {
	BackIndex    int
	FrontIndex   int
	Width        int
	Height       int
	FPS          int
	StillQuality int
}

// NewGocvOpener reads device indexes and preview geometry from the config.
func NewGocvOpener(cfg *config.Config) *GocvOpener {
	return &GocvOpener{
		BackIndex:    cfg.BackCameraIndex,
		FrontIndex:   cfg.FrontCameraIndex,
		Width:        cfg.PreviewWidth,
		Height:       cfg.PreviewHeight,
		FPS:          cfg.PreviewFPS,
		StillQuality: cfg.StillJPEGQuality,
	}
}

func (o *GocvOpener) Open(lens model.LensFacing) (Device, error) {
	index := o.BackIndex
	if lens == model.LensFront {
		index = o.FrontIndex
	}

	capture, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, apperr.New(apperr.DeviceUnavailable, "camera.Open", fmt.Errorf("device %d: %w", index, err))
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, apperr.Errorf(apperr.DeviceUnavailable, "camera.Open", "device %d did not open", index)
	}

	if o.Width > 0 && o.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(o.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(o.Height))
	}
	if o.FPS > 0 {
		capture.Set(gocv.VideoCaptureFPS, float64(o.FPS))
	}

	return &gocvDevice{
		capture:      capture,
		frame:        gocv.NewMat(),
		stillQuality: orDefault(o.StillQuality, 95),
	}, nil
}

// gocvDevice reads BGR frames and hands them out as planar YUV preview frames
// and JPEG stills.
type gocvDevice struct {
	mu           sync.Mutex
	capture      *gocv.VideoCapture
	frame        gocv.Mat
	stillQuality int
	flash        model.FlashMode
	closed       bool
}

func (d *gocvDevice) read() error {
	if d.closed {
		return ErrDeviceClosed
	}
	if ok := d.capture.Read(&d.frame); !ok {
		return errors.New("failed to read frame from camera")
	}
	if d.frame.Empty() {
		return errors.New("captured frame is empty")
	}
	return nil
}

func (d *gocvDevice) ReadFrame() (*model.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.read(); err != nil {
		return nil, err
	}

	return i420Frame(d.frame, gocv.ColorBGRToYUVI420)
}

func (d *gocvDevice) CaptureStill() (*model.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.read(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncodeWithParams(".jpg", d.frame, []int{int(gocv.IMWriteJpegQuality), d.stillQuality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode still: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return model.NewJPEGFrame(d.frame.Cols(), d.frame.Rows(), data), nil
}

// SetFlash records the mode. OpenCV exposes no torch control for UVC devices.
func (d *gocvDevice) SetFlash(mode model.FlashMode) error {
	d.mu.Lock()
	d.flash = mode
	d.mu.Unlock()
	return nil
}

func (d *gocvDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.frame.Close()
	return d.capture.Close()
}
