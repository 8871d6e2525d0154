package service

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chitcam/internal/apperr"
	"chitcam/internal/config"
	"chitcam/internal/logger"
	"chitcam/internal/model"
	"chitcam/internal/repository/sqlite"
	"chitcam/internal/service/camera"
	"chitcam/internal/service/camera/cameratest"
	"chitcam/internal/service/capture"
	"chitcam/internal/service/decoder"
	"chitcam/internal/service/filter"
	"chitcam/internal/service/permission"
	"chitcam/internal/service/preview"
	"chitcam/internal/service/storage"
	"chitcam/internal/service/websocket"
)

// ==================== Helpers ====================

func setupManager(t *testing.T, opener *cameratest.Opener, granted bool) *Manager {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		ImageDirectory:          filepath.Join(dir, "media"),
		Collection:              storage.DefaultCollection,
		PreviewFPS:              30,
		PreviewJPEGQuality:      70,
		OutputJPEGQuality:       90,
		IntermediateJPEGQuality: 100,
		ChromaOrder:             "VU",
		FilteredPrefix:          "FILTERED_",
		OriginalPrefix:          "IMG_",
		DragThreshold:           20,
		CaptureTimeout:          5 * time.Second,
	}

	db, err := sqlite.New(filepath.Join(dir, "artifacts.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	log := logger.Discard()

	source, err := camera.NewFrameSource(camera.NewHandle(opener), cfg.PreviewFPS, log)
	if err != nil {
		t.Fatalf("Failed to create frame source: %v", err)
	}
	dec, err := decoder.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to create decoder: %v", err)
	}

	m := NewManager(cfg, Services{
		Source:     source,
		Decoder:    dec,
		Engine:     filter.NewEngine(),
		Selector:   filter.NewSelector(nil),
		Store:      storage.NewStore(cfg, sqlite.NewArtifactRepository(db), log),
		Permission: permission.NewOnce(&permission.Static{Granted: granted}),
		Hub:        websocket.NewHubService(log),
	}, log)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Shutdown(ctx)
		db.Close()
	})
	return m
}

func redStill(t *testing.T) []byte {
	return cameratest.JPEG(t, 64, 48, color.RGBA{R: 200, G: 40, B: 40, A: 255})
}

func wait(t *testing.T, p *capture.Pending) capture.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Wait(ctx)
	if err != nil {
		t.Fatalf("Capture did not finish: %v", err)
	}
	return res
}

// ==================== Tests ====================

func TestManager_GrayscaleCapture(t *testing.T) {
	m := setupManager(t, &cameratest.Opener{Still: redStill(t)}, true)

	if _, err := m.OpenPreview(context.Background(), model.LensBack, model.FlashOff); err != nil {
		t.Fatalf("OpenPreview failed: %v", err)
	}
	if _, err := m.SetFilterByName("Grayscale"); err != nil {
		t.Fatalf("SetFilterByName failed: %v", err)
	}

	p, err := m.TriggerCapture(context.Background())
	if err != nil {
		t.Fatalf("TriggerCapture failed: %v", err)
	}
	res := wait(t, p)
	if res.Err != nil {
		t.Fatalf("Capture failed: %v", res.Err)
	}

	a := res.Artifact
	if !strings.HasPrefix(a.Filename, "FILTERED_") || !strings.HasSuffix(a.Filename, ".jpg") {
		t.Errorf("Unexpected filename %s", a.Filename)
	}
	if a.FilterName != "Grayscale" || a.Lens != "back" || a.Fallback {
		t.Errorf("Unexpected artifact %+v", a)
	}

	data, err := os.ReadFile(a.FilePath)
	if err != nil {
		t.Fatalf("Artifact file missing: %v", err)
	}
	out, err := decoder.DecodeJPEG(data)
	if err != nil {
		t.Fatalf("Artifact is not a JPEG: %v", err)
	}
	px := out.At(out.Width/2, out.Height/2)
	if diff := int(px.R) - int(px.G); diff > 10 || diff < -10 {
		t.Errorf("Expected gray pixel, got %+v", px)
	}

	valid, err := m.GetStore().Verify(a.Filename)
	if err != nil || !valid {
		t.Errorf("Checksum should verify: %v", err)
	}
}

func TestManager_SequentialTriggers(t *testing.T) {
	m := setupManager(t, &cameratest.Opener{Still: redStill(t)}, true)
	if _, err := m.OpenPreview(context.Background(), model.LensBack, model.FlashOff); err != nil {
		t.Fatalf("OpenPreview failed: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		p, err := m.TriggerCapture(context.Background())
		if err != nil {
			t.Fatalf("Trigger %d rejected: %v", i, err)
		}
		res := <-p.Done()
		if res.Err != nil {
			t.Fatalf("Capture %d failed: %v", i, res.Err)
		}
		if seen[res.Artifact.Filename] {
			t.Errorf("Duplicate artifact %s", res.Artifact.Filename)
		}
		seen[res.Artifact.Filename] = true

		select {
		case extra := <-p.Done():
			t.Errorf("Second result delivered: %+v", extra)
		default:
		}
	}

	if st := m.Status(); st.Captures != 3 || st.Failures != 0 || st.Capturing {
		t.Errorf("Unexpected status %+v", st)
	}
}

func TestManager_BusyWhileCapturing(t *testing.T) {
	gate := make(chan struct{})
	opener := &cameratest.Opener{Still: redStill(t), Gate: gate}
	m := setupManager(t, opener, true)

	if _, err := m.OpenPreview(context.Background(), model.LensBack, model.FlashOff); err != nil {
		t.Fatalf("OpenPreview failed: %v", err)
	}

	first, err := m.TriggerCapture(context.Background())
	if err != nil {
		t.Fatalf("First trigger failed: %v", err)
	}

	if _, err := m.TriggerCapture(context.Background()); !apperr.IsKind(err, apperr.Busy) {
		t.Errorf("Expected Busy for second trigger, got %v", err)
	}
	if _, err := m.SwitchLens(context.Background(), model.LensFront); !apperr.IsKind(err, apperr.Busy) {
		t.Errorf("Expected Busy for lens switch, got %v", err)
	}
	if err := m.SetFlash(context.Background(), model.FlashOn); !apperr.IsKind(err, apperr.Busy) {
		t.Errorf("Expected Busy for flash change, got %v", err)
	}
	if err := m.ClosePreview(); !apperr.IsKind(err, apperr.Busy) {
		t.Errorf("Expected Busy for close, got %v", err)
	}

	close(gate)
	res := wait(t, first)
	if res.Err != nil {
		t.Fatalf("First capture failed: %v", res.Err)
	}
	if _, err := os.Stat(res.Artifact.FilePath); err != nil {
		t.Errorf("First artifact should be intact: %v", err)
	}

	if got := opener.Opens(); len(got) != 1 || got[0] != model.LensBack {
		t.Errorf("Lens must not change during capture, opens: %v", got)
	}
	if opener.Last().Stills() != 1 {
		t.Errorf("Expected exactly one still, got %d", opener.Last().Stills())
	}
}

func TestManager_SwitchLens(t *testing.T) {
	opener := &cameratest.Opener{Still: redStill(t)}
	m := setupManager(t, opener, true)

	first, err := m.OpenPreview(context.Background(), model.LensBack, model.FlashOff)
	if err != nil {
		t.Fatalf("OpenPreview failed: %v", err)
	}
	second, err := m.SwitchLens(context.Background(), model.LensFront)
	if err != nil {
		t.Fatalf("SwitchLens failed: %v", err)
	}

	if first.Ready() || first.ID() == second.ID() {
		t.Error("Previous session should be closed after switching")
	}
	devices := opener.Devices()
	if len(devices) != 2 || !devices[0].Closed() || devices[1].Lens != model.LensFront {
		t.Errorf("Unexpected devices after switch")
	}

	if err := m.SetFlash(context.Background(), model.FlashOn); err != nil {
		t.Fatalf("SetFlash failed: %v", err)
	}
	if last := opener.Last(); last.Flash() != model.FlashOn || last.Lens != model.LensFront {
		t.Errorf("Flash should rebind the front camera, got %s on %s", last.Flash(), last.Lens)
	}

	if err := m.ClosePreview(); err != nil {
		t.Fatalf("ClosePreview failed: %v", err)
	}
	if err := m.ClosePreview(); err != nil {
		t.Errorf("Second ClosePreview should be a no-op: %v", err)
	}
	if !opener.Last().Closed() {
		t.Error("Device should be released")
	}
}

func TestManager_TriggerWithoutPreview(t *testing.T) {
	m := setupManager(t, &cameratest.Opener{Still: redStill(t)}, true)

	if _, err := m.TriggerCapture(context.Background()); !apperr.IsKind(err, apperr.NotReady) {
		t.Errorf("Expected NotReady, got %v", err)
	}
	if _, err := m.SwitchLens(context.Background(), model.LensFront); !apperr.IsKind(err, apperr.NotReady) {
		t.Errorf("Expected NotReady, got %v", err)
	}
}

func TestManager_PermissionDenied(t *testing.T) {
	opener := &cameratest.Opener{Still: redStill(t)}
	m := setupManager(t, opener, false)

	if _, err := m.OpenPreview(context.Background(), model.LensBack, model.FlashOff); !apperr.IsKind(err, apperr.PermissionDenied) {
		t.Fatalf("Expected PermissionDenied, got %v", err)
	}
	if len(opener.Opens()) != 0 {
		t.Error("Camera must not be opened without permission")
	}

	granted, err := m.RequestPermission(context.Background())
	if err != nil || granted {
		t.Errorf("Expected a repeated denial, got %v, %v", granted, err)
	}
}

func TestManager_CaptureFailureReturnsToIdle(t *testing.T) {
	opener := &cameratest.Opener{Still: redStill(t), StillErr: os.ErrDeadlineExceeded}
	m := setupManager(t, opener, true)
	if _, err := m.OpenPreview(context.Background(), model.LensBack, model.FlashOff); err != nil {
		t.Fatalf("OpenPreview failed: %v", err)
	}

	p, err := m.TriggerCapture(context.Background())
	if err != nil {
		t.Fatalf("TriggerCapture failed: %v", err)
	}
	if res := wait(t, p); !apperr.IsKind(res.Err, apperr.CaptureFailed) || res.Artifact != nil {
		t.Errorf("Expected CaptureFailed, got %+v", res)
	}

	if st := m.Status(); st.Capturing || st.Failures != 1 || st.LastState != "idle" {
		t.Errorf("Unexpected status %+v", st)
	}
	if _, err := m.TriggerCapture(context.Background()); err != nil {
		t.Errorf("A new trigger should be accepted after failure: %v", err)
	}
}

func TestManager_FilterControls(t *testing.T) {
	m := setupManager(t, &cameratest.Opener{Still: redStill(t)}, true)

	if f := m.NextFilter(); f.Name != "Sepia" {
		t.Errorf("Expected Sepia, got %s", f.Name)
	}
	if f := m.PreviousFilter(); f.Name != model.NormalFilterName {
		t.Errorf("Expected Normal, got %s", f.Name)
	}
	if f := m.PreviousFilter(); f.Name != "Pixelated" {
		t.Errorf("Expected wrap to Pixelated, got %s", f.Name)
	}
	if _, err := m.SetFilter(99); !apperr.IsKind(err, apperr.InvalidArgument) {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}

	m.SetFilter(0)
	if _, changed := m.Drag(-15); changed {
		t.Error("Drag below threshold should not change the filter")
	}
	if f, changed := m.Drag(-10); !changed || f.Name != "Sepia" {
		t.Errorf("Expected Sepia after a left drag, got %s (%v)", f.Name, changed)
	}
}

func TestManager_FailedRebindClearsPreview(t *testing.T) {
	opener := &cameratest.Opener{Still: redStill(t)}
	m := setupManager(t, opener, true)

	if _, err := m.OpenPreview(context.Background(), model.LensBack, model.FlashOff); err != nil {
		t.Fatalf("OpenPreview failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for m.Status().Stream.Published == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Preview produced no frames")
		}
		time.Sleep(10 * time.Millisecond)
	}

	opener.SetOpenErr(errors.New("device gone"))
	if _, err := m.SwitchLens(context.Background(), model.LensFront); !apperr.IsKind(err, apperr.DeviceUnavailable) {
		t.Fatalf("Expected DeviceUnavailable, got %v", err)
	}

	st := m.Status()
	if st.Previewing || st.Session != "" {
		t.Errorf("Preview should be closed, got %+v", st)
	}
	if st.Preview != (preview.Stats{}) || st.Stream != (camera.StreamStats{}) {
		t.Errorf("Stale preview stats reported: %+v %+v", st.Preview, st.Stream)
	}

	opener.SetOpenErr(nil)
	if _, err := m.OpenPreview(context.Background(), model.LensBack, model.FlashOff); err != nil {
		t.Errorf("Reopen after failure should succeed: %v", err)
	}
}

func TestManager_CaptureResultLookup(t *testing.T) {
	m := setupManager(t, &cameratest.Opener{Still: redStill(t)}, true)

	if _, err := m.OpenPreview(context.Background(), model.LensBack, model.FlashOff); err != nil {
		t.Fatalf("OpenPreview failed: %v", err)
	}
	p, err := m.TriggerCapture(context.Background())
	if err != nil {
		t.Fatalf("TriggerCapture failed: %v", err)
	}
	wait(t, p)

	got, err := m.CaptureResult(p.ID())
	if err != nil || got != p {
		t.Fatalf("Expected the same pending, got %v, %v", got, err)
	}
	if _, err := m.CaptureResult("missing"); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}

	// older results are evicted once the window is full
	m.mu.Lock()
	for i := 0; i < keptResults; i++ {
		m.rememberLocked(capture.NewPending(fmt.Sprintf("filler-%d", i)))
	}
	m.mu.Unlock()

	if _, err := m.CaptureResult(p.ID()); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("Oldest result should be evicted, got %v", err)
	}
	if _, err := m.CaptureResult(fmt.Sprintf("filler-%d", keptResults-1)); err != nil {
		t.Errorf("Newest result should be kept: %v", err)
	}
}
