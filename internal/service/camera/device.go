// Package camera owns the camera device and produces live frames and stills.
package camera

import (
	"errors"
	"sync"

	"chitcam/internal/model"
)

var (
	// ErrHandleOwned is returned when a Handle is claimed by a second FrameSource.
	ErrHandleOwned = errors.New("camera handle already owned")
	// ErrDeviceClosed is returned by devices after Close.
	ErrDeviceClosed = errors.New("camera device closed")
)

// Device is an opened camera bound to one lens.
//
// ReadFrame and CaptureStill are never called concurrently by this package.
type Device interface {
	// ReadFrame returns the next preview/analysis frame.
	ReadFrame() (*model.Frame, error)
	// CaptureStill takes a full quality still, JPEG encoded when possible.
	CaptureStill() (*model.Frame, error)
	SetFlash(mode model.FlashMode) error
	Close() error
}

// Opener opens a Device for a lens. Errors classified as
// apperr.PermissionDenied are passed through, everything else becomes
// apperr.DeviceUnavailable.
type Opener interface {
	Open(lens model.LensFacing) (Device, error)
}

// noCopy triggers go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Handle is the process-wide camera resource. It is created once by the
// application and handed to exactly one FrameSource.
type Handle struct {
	noCopy noCopy

	opener Opener
	mu     sync.Mutex
	owned  bool
}

// NewHandle wraps an Opener.
func NewHandle(opener Opener) *Handle {
	return &Handle{opener: opener}
}

func (h *Handle) claim() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owned {
		return ErrHandleOwned
	}
	h.owned = true
	return nil
}

func (h *Handle) release() {
	h.mu.Lock()
	h.owned = false
	h.mu.Unlock()
}
