package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"chitcam/internal/apperr"
	"chitcam/internal/logger"
	"chitcam/internal/model"

	"github.com/google/uuid"
)

// ErrAlreadySubscribed is returned when a live session's frames are subscribed twice.
var ErrAlreadySubscribed = errors.New("live session already has a frame subscriber")

// FrameSource binds the camera to at most one LiveSession at a time.
type FrameSource struct {
	handle   *Handle
	interval time.Duration
	logger   *logger.Logger

	mu      sync.Mutex
	current *LiveSession
	closed  bool
}

// NewFrameSource claims the handle. fps paces the preview producer.
func NewFrameSource(handle *Handle, fps int, logger *logger.Logger) (*FrameSource, error) {
	if err := handle.claim(); err != nil {
		return nil, err
	}
	if fps <= 0 {
		fps = 30
	}
	return &FrameSource{
		handle:   handle,
		interval: time.Second / time.Duration(fps),
		logger:   logger,
	}, nil
}

// Open binds a new live session. Any session already bound is fully closed first.
func (s *FrameSource) Open(ctx context.Context, lens model.LensFacing, flash model.FlashMode) (*LiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apperr.Errorf(apperr.DeviceUnavailable, "camera.Open", "frame source closed")
	}
	if s.current != nil {
		s.current.shutdown()
		s.current = nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	device, err := s.handle.opener.Open(lens)
	if err != nil {
		if apperr.IsKind(err, apperr.PermissionDenied) || apperr.IsKind(err, apperr.DeviceUnavailable) {
			return nil, err
		}
		return nil, apperr.New(apperr.DeviceUnavailable, "camera.Open", err)
	}
	if err := device.SetFlash(flash); err != nil {
		device.Close()
		return nil, apperr.New(apperr.DeviceUnavailable, "camera.Open", err)
	}

	ls := &LiveSession{
		id:       uuid.NewString(),
		lens:     lens,
		flash:    flash,
		device:   device,
		source:   s,
		mailbox:  newMailbox(),
		done:     make(chan struct{}),
		interval: s.interval,
		logger:   s.logger,
	}
	ls.ready.Store(true)
	ls.wg.Add(1)
	go ls.produce()

	s.current = ls
	s.logger.Info("Camera bound: lens=%s flash=%s session=%s", lens, flash, ls.id)
	return ls, nil
}

// Current returns the bound session or nil.
func (s *FrameSource) Current() *LiveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close unbinds any session and releases the handle.
func (s *FrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.current != nil {
		err = s.current.shutdown()
		s.current = nil
	}
	s.handle.release()
	return err
}

func (s *FrameSource) detach(ls *LiveSession) {
	s.mu.Lock()
	if s.current == ls {
		s.current = nil
	}
	s.mu.Unlock()
}

// LiveSession is the bound state between the camera and its consumers.
type LiveSession struct {
	id       string
	lens     model.LensFacing
	flash    model.FlashMode
	device   Device
	deviceMu sync.Mutex
	source   *FrameSource
	mailbox  *mailbox
	interval time.Duration
	logger   *logger.Logger

	ready      atomic.Bool
	subscribed atomic.Bool
	seq        uint64

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
	wg        sync.WaitGroup
}

// ID identifies the session.
func (ls *LiveSession) ID() string { return ls.id }

// Lens returns the bound lens.
func (ls *LiveSession) Lens() model.LensFacing { return ls.lens }

// Flash returns the flash mode applied to stills.
func (ls *LiveSession) Flash() model.FlashMode { return ls.flash }

// PreviewHandle names the preview surface viewers attach to.
func (ls *LiveSession) PreviewHandle() string {
	return "preview/" + ls.id
}

// Ready reports whether the session can capture.
func (ls *LiveSession) Ready() bool {
	return ls.ready.Load()
}

// CaptureStill takes a full quality still.
func (ls *LiveSession) CaptureStill(ctx context.Context) (*model.Frame, error) {
	if !ls.Ready() {
		return nil, apperr.Errorf(apperr.NotReady, "camera.CaptureStill", "live session closed")
	}

	type result struct {
		frame *model.Frame
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		ls.deviceMu.Lock()
		defer ls.deviceMu.Unlock()
		f, err := ls.device.CaptureStill()
		ch <- result{f, err}
	}()

	select {
	case <-ctx.Done():
		return nil, apperr.New(apperr.CaptureFailed, "camera.CaptureStill", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, apperr.New(apperr.CaptureFailed, "camera.CaptureStill", r.err)
		}
		if r.frame == nil || len(r.frame.Bytes()) == 0 {
			return nil, apperr.Errorf(apperr.CaptureFailed, "camera.CaptureStill", "device returned an empty still")
		}
		return r.frame, nil
	}
}

// SubscribeFrames attaches the single frame consumer. It cannot be restarted.
func (ls *LiveSession) SubscribeFrames() (*FrameStream, error) {
	if !ls.Ready() {
		return nil, apperr.Errorf(apperr.NotReady, "camera.SubscribeFrames", "live session closed")
	}
	if !ls.subscribed.CompareAndSwap(false, true) {
		return nil, apperr.New(apperr.Busy, "camera.SubscribeFrames", ErrAlreadySubscribed)
	}
	return &FrameStream{mailbox: ls.mailbox}, nil
}

// Close stops the producer and releases the device. Safe to call more than once.
func (ls *LiveSession) Close() error {
	err := ls.shutdown()
	ls.source.detach(ls)
	return err
}

func (ls *LiveSession) shutdown() error {
	ls.closeOnce.Do(func() {
		ls.ready.Store(false)
		close(ls.done)
		ls.mailbox.Close()
		ls.wg.Wait()

		ls.deviceMu.Lock()
		ls.closeErr = ls.device.Close()
		ls.deviceMu.Unlock()

		st := ls.mailbox.Stats()
		ls.logger.Info("Camera unbound: session=%s frames=%d dropped=%d", ls.id, st.Published, st.Dropped)
	})
	return ls.closeErr
}

// produce reads device frames into the mailbox at the configured pace. It
// never waits for the consumer.
func (ls *LiveSession) produce() {
	defer ls.wg.Done()

	ticker := time.NewTicker(ls.interval)
	defer ticker.Stop()

	var lastErr string
	for {
		select {
		case <-ls.done:
			return
		case <-ticker.C:
		}

		ls.deviceMu.Lock()
		frame, err := ls.device.ReadFrame()
		ls.deviceMu.Unlock()

		if err != nil {
			if errors.Is(err, ErrDeviceClosed) {
				return
			}
			if err.Error() != lastErr {
				ls.logger.Warning("Frame read failed on session %s: %v", ls.id, err)
				lastErr = err.Error()
			}
			continue
		}
		lastErr = ""

		ls.seq++
		frame.Seq = ls.seq
		ls.mailbox.Publish(frame)
	}
}

// FrameStream delivers the latest live frame to one consumer.
type FrameStream struct {
	mailbox *mailbox
}

// Next blocks until a frame is available. ok is false once the session or
// the stream is closed.
func (fs *FrameStream) Next() (*model.Frame, bool) {
	return fs.mailbox.Take()
}

// Close ends the subscription and wakes a blocked Next.
func (fs *FrameStream) Close() {
	fs.mailbox.Close()
}

// Stats reports published, delivered and dropped counts.
func (fs *FrameStream) Stats() StreamStats {
	return fs.mailbox.Stats()
}
