package camera_test

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"chitcam/internal/apperr"
	"chitcam/internal/logger"
	"chitcam/internal/model"
	"chitcam/internal/service/camera"
	"chitcam/internal/service/camera/cameratest"
)

func newSource(t *testing.T, opener camera.Opener) *camera.FrameSource {
	t.Helper()
	src, err := camera.NewFrameSource(camera.NewHandle(opener), 200, logger.Discard())
	if err != nil {
		t.Fatalf("NewFrameSource failed: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

func TestHandle_SingleOwner(t *testing.T) {
	h := camera.NewHandle(&cameratest.Opener{})

	first, err := camera.NewFrameSource(h, 30, logger.Discard())
	if err != nil {
		t.Fatalf("First claim failed: %v", err)
	}
	if _, err := camera.NewFrameSource(h, 30, logger.Discard()); !errors.Is(err, camera.ErrHandleOwned) {
		t.Fatalf("Expected ErrHandleOwned, got %v", err)
	}

	first.Close()
	second, err := camera.NewFrameSource(h, 30, logger.Discard())
	if err != nil {
		t.Fatalf("Handle should be claimable after Close: %v", err)
	}
	second.Close()
}

func TestOpen_RebindClosesPrevious(t *testing.T) {
	opener := &cameratest.Opener{Still: cameratest.JPEG(t, 16, 16, color.RGBA{R: 200, A: 255})}
	src := newSource(t, opener)
	ctx := context.Background()

	back, err := src.Open(ctx, model.LensBack, model.FlashOff)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	front, err := src.Open(ctx, model.LensFront, model.FlashOn)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	if back.Ready() {
		t.Error("Previous session should be closed")
	}
	devices := opener.Devices()
	if len(devices) != 2 || !devices[0].Closed() || devices[1].Closed() {
		t.Fatalf("Expected first device closed and second open")
	}
	if devices[1].Flash() != model.FlashOn || front.Lens() != model.LensFront {
		t.Error("New session should carry the new lens and flash")
	}
	if src.Current() != front {
		t.Error("Current should be the new session")
	}

	if err := front.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := front.Close(); err != nil {
		t.Fatalf("Second Close should be a no-op, got %v", err)
	}
	if src.Current() != nil {
		t.Error("Closed session should be detached")
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	denied := newSource(t, &camera.SyntheticOpener{PermissionDenied: true})
	if _, err := denied.Open(ctx, model.LensBack, model.FlashOff); !apperr.IsKind(err, apperr.PermissionDenied) {
		t.Errorf("Expected PermissionDenied, got %v", err)
	}

	broken := newSource(t, &cameratest.Opener{OpenErr: errors.New("no such device")})
	if _, err := broken.Open(ctx, model.LensBack, model.FlashOff); !apperr.IsKind(err, apperr.DeviceUnavailable) {
		t.Errorf("Expected DeviceUnavailable, got %v", err)
	}
}

func TestLiveSession_FramesAndStill(t *testing.T) {
	src := newSource(t, &camera.SyntheticOpener{Width: 64, Height: 48})

	ls, err := src.Open(context.Background(), model.LensBack, model.FlashOff)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if ls.PreviewHandle() == "" {
		t.Error("Expected a preview handle")
	}

	stream, err := ls.SubscribeFrames()
	if err != nil {
		t.Fatalf("SubscribeFrames failed: %v", err)
	}
	if _, err := ls.SubscribeFrames(); !errors.Is(err, camera.ErrAlreadySubscribed) {
		t.Errorf("Second subscribe should fail, got %v", err)
	}

	var last uint64
	for i := 0; i < 3; i++ {
		f, ok := stream.Next()
		if !ok {
			t.Fatal("Stream closed unexpectedly")
		}
		if f.Encoding != model.EncodingYUV420 || f.Width != 64 || f.Height != 48 {
			t.Fatalf("Unexpected frame %s %dx%d", f.Encoding, f.Width, f.Height)
		}
		if f.Seq <= last {
			t.Fatalf("Sequence should increase, got %d after %d", f.Seq, last)
		}
		last = f.Seq
	}

	still, err := ls.CaptureStill(context.Background())
	if err != nil {
		t.Fatalf("CaptureStill failed: %v", err)
	}
	if still.Encoding != model.EncodingJPEG || len(still.Bytes()) == 0 {
		t.Error("Expected a JPEG still")
	}

	done := make(chan struct{})
	go func() {
		for {
			if _, ok := stream.Next(); !ok {
				close(done)
				return
			}
		}
	}()
	ls.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close should end the stream")
	}

	if _, err := ls.CaptureStill(context.Background()); !apperr.IsKind(err, apperr.NotReady) {
		t.Errorf("Capture on a closed session should be NotReady, got %v", err)
	}
}

func TestLiveSession_CaptureFailure(t *testing.T) {
	src := newSource(t, &cameratest.Opener{StillErr: errors.New("sensor timeout")})

	ls, err := src.Open(context.Background(), model.LensBack, model.FlashOff)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := ls.CaptureStill(context.Background()); !apperr.IsKind(err, apperr.CaptureFailed) {
		t.Errorf("Expected CaptureFailed, got %v", err)
	}
}
