// Package service coordinates the camera, the preview pipeline and captures.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"chitcam/internal/apperr"
	"chitcam/internal/config"
	"chitcam/internal/logger"
	"chitcam/internal/model"
	"chitcam/internal/service/camera"
	"chitcam/internal/service/capture"
	"chitcam/internal/service/decoder"
	"chitcam/internal/service/filter"
	"chitcam/internal/service/permission"
	"chitcam/internal/service/preview"
	"chitcam/internal/service/storage"
	"chitcam/internal/service/websocket"

	"github.com/google/uuid"
)

// Services are the components a Manager drives.
type Services struct {
	Source     *camera.FrameSource
	Decoder    *decoder.Decoder
	Engine     *filter.Engine
	Selector   *filter.Selector
	Store      *storage.Store
	Recovery   *storage.RecoveryBuffer // optional
	Permission *permission.Once
	Hub        *websocket.HubService
}

// Status is a snapshot of the manager.
type Status struct {
	Previewing    bool               `json:"previewing"`
	Session       string             `json:"session,omitempty"`
	PreviewHandle string             `json:"previewHandle,omitempty"`
	Lens          string             `json:"lens"`
	Flash         string             `json:"flash"`
	Capturing     bool               `json:"capturing"`
	LastState     string             `json:"lastState,omitempty"`
	Filter        string             `json:"filter"`
	FilterIndex   int                `json:"filterIndex"`
	Collection    string             `json:"collection"`
	Preview       preview.Stats      `json:"preview"`
	Stream        camera.StreamStats `json:"stream"`
	Viewers       websocket.HubStats `json:"viewers"`
	Captures      uint64             `json:"captures"`
	Failures      uint64             `json:"failures"`
	Fallbacks     uint64             `json:"fallbacks"`
	Recovery      int                `json:"recoveryPending"`
}

// keptResults bounds how many capture results stay retrievable by id.
const keptResults = 32

type captureJob struct {
	session *capture.Session
	pending *capture.Pending
}

// Manager owns the live session and runs captures one at a time.
type Manager struct {
	cfg      *config.Config
	source   *camera.FrameSource
	decoder  *decoder.Decoder
	engine   *filter.Engine
	selector *filter.Selector
	drag     *filter.DragTracker
	store    *storage.Store
	recovery *storage.RecoveryBuffer
	perm     *permission.Once
	hub      *websocket.HubService
	namer    storage.Namer
	logger   *logger.Logger

	mu          sync.Mutex
	live        *camera.LiveSession
	stream      *camera.FrameStream
	pipeline    *preview.Pipeline
	stopPreview context.CancelFunc
	previewDone chan struct{}
	lens        model.LensFacing
	flash       model.FlashMode
	capturing   bool
	lastState   capture.State
	closed      bool

	queue   chan captureJob
	wg      sync.WaitGroup
	results map[string]*capture.Pending
	order   []string

	captures  atomic.Uint64
	failures  atomic.Uint64
	fallbacks atomic.Uint64
}

// NewManager starts the capture worker.
func NewManager(cfg *config.Config, s Services, logger *logger.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		source:   s.Source,
		decoder:  s.Decoder,
		engine:   s.Engine,
		selector: s.Selector,
		drag:     filter.NewDragTracker(s.Selector, cfg.DragThreshold),
		store:    s.Store,
		recovery: s.Recovery,
		perm:     s.Permission,
		hub:      s.Hub,
		logger:   logger,
		queue:    make(chan captureJob, 1),
		results:  make(map[string]*capture.Pending),
	}

	m.wg.Add(1)
	go m.captureWorker()

	m.logger.Info("🎬 Manager started - %d filters, collection %s", s.Selector.Len(), s.Store.Collection())
	return m
}

// OpenPreview binds the camera to lens and starts rendering the preview.
// Permission is consulted once per process; a denial is terminal until
// RequestPermission is called.
func (m *Manager) OpenPreview(ctx context.Context, lens model.LensFacing, flash model.FlashMode) (*camera.LiveSession, error) {
	granted, err := m.perm.Request(ctx, permission.Camera)
	if err != nil {
		return nil, apperr.New(apperr.PermissionDenied, "manager.OpenPreview", err)
	}
	if !granted {
		m.logger.Warning("Camera permission denied")
		return nil, apperr.Errorf(apperr.PermissionDenied, "manager.OpenPreview", "camera permission denied")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIdleLocked("manager.OpenPreview"); err != nil {
		return nil, err
	}
	return m.bindLocked(ctx, lens, flash)
}

// ClosePreview stops the preview and releases the camera. Closing twice is a no-op.
func (m *Manager) ClosePreview() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capturing {
		return apperr.Errorf(apperr.Busy, "manager.ClosePreview", "capture in progress")
	}
	return m.unbindLocked()
}

// SwitchLens rebinds the live session to lens, keeping the flash mode.
func (m *Manager) SwitchLens(ctx context.Context, lens model.LensFacing) (*camera.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIdleLocked("manager.SwitchLens"); err != nil {
		return nil, err
	}
	if m.live == nil {
		return nil, apperr.Errorf(apperr.NotReady, "manager.SwitchLens", "preview is not open")
	}
	if lens == m.lens {
		return m.live, nil
	}
	return m.bindLocked(ctx, lens, m.flash)
}

// SetFlash changes the flash mode used for stills. An open preview is rebound.
func (m *Manager) SetFlash(ctx context.Context, flash model.FlashMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIdleLocked("manager.SetFlash"); err != nil {
		return err
	}
	if m.live == nil || flash == m.flash {
		m.flash = flash
		return nil
	}
	_, err := m.bindLocked(ctx, m.lens, flash)
	return err
}

func (m *Manager) checkIdleLocked(op string) error {
	if m.closed {
		return apperr.Errorf(apperr.NotReady, op, "manager shut down")
	}
	if m.capturing {
		return apperr.Errorf(apperr.Busy, op, "capture in progress")
	}
	return nil
}

// bindLocked replaces the live session and its preview pipeline.
func (m *Manager) bindLocked(ctx context.Context, lens model.LensFacing, flash model.FlashMode) (*camera.LiveSession, error) {
	m.stopPipelineLocked()

	live, err := m.source.Open(ctx, lens, flash)
	if err != nil {
		m.live = nil
		m.logger.Error("Failed to open %s camera: %v", lens, err)
		return nil, err
	}
	stream, err := live.SubscribeFrames()
	if err != nil {
		live.Close()
		m.live = nil
		return nil, err
	}

	pipeline := preview.NewPipeline(live.ID(), stream, preview.Deps{
		Codec:   m.decoder,
		Engine:  m.engine,
		Filters: m.selector,
		Out:     m.hub,
		Quality: m.cfg.PreviewJPEGQuality,
		Logger:  m.logger,
	})
	pctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		pipeline.Run(pctx)
	}()

	m.live, m.stream, m.pipeline = live, stream, pipeline
	m.stopPreview, m.previewDone = cancel, done
	m.lens, m.flash = lens, flash
	return live, nil
}

func (m *Manager) stopPipelineLocked() {
	if m.stopPreview == nil {
		return
	}
	m.stopPreview()
	<-m.previewDone
	m.stopPreview, m.previewDone = nil, nil
	m.pipeline, m.stream = nil, nil
}

func (m *Manager) unbindLocked() error {
	m.stopPipelineLocked()
	if m.live == nil {
		return nil
	}
	err := m.live.Close()
	m.live, m.stream = nil, nil
	return err
}

// SetFilter selects the filter at index.
func (m *Manager) SetFilter(index int) (model.Filter, error) {
	f, err := m.selector.Select(index)
	if err == nil {
		m.drag.Reset()
	}
	return f, err
}

// SetFilterByName selects a filter by its display name.
func (m *Manager) SetFilterByName(name string) (model.Filter, error) {
	f, err := m.selector.SelectByName(name)
	if err == nil {
		m.drag.Reset()
	}
	return f, err
}

func (m *Manager) NextFilter() model.Filter {
	m.drag.Reset()
	return m.selector.Next()
}

func (m *Manager) PreviousFilter() model.Filter {
	m.drag.Reset()
	return m.selector.Previous()
}

// Drag feeds one horizontal swipe delta to the filter selector.
func (m *Manager) Drag(dx float64) (model.Filter, bool) {
	return m.drag.Drag(dx)
}

// TriggerCapture starts a capture with the current filter. The returned
// Pending resolves exactly once. A trigger while a capture is outstanding is
// rejected with Busy; without an open preview it is rejected with NotReady.
func (m *Manager) TriggerCapture(ctx context.Context) (*capture.Pending, error) {
	const op = "manager.TriggerCapture"

	if err := ctx.Err(); err != nil {
		return nil, apperr.New(apperr.NotReady, op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, apperr.Errorf(apperr.NotReady, op, "manager shut down")
	}
	if m.live == nil || !m.live.Ready() {
		return nil, apperr.Errorf(apperr.NotReady, op, "preview is not open")
	}
	if m.capturing {
		return nil, apperr.Errorf(apperr.Busy, op, "capture in progress")
	}

	req := model.CaptureRequest{
		ID:          uuid.NewString(),
		Filter:      m.selector.Current(),
		Lens:        m.live.Lens(),
		RequestedAt: time.Now(),
	}
	deps := capture.Deps{
		Camera:         m.live,
		Codec:          m.decoder,
		Engine:         m.engine,
		Store:          m.store,
		Namer:          m.namer,
		Logger:         m.logger,
		Lens:           req.Lens,
		Collection:     m.store.Collection(),
		OutputQuality:  m.cfg.OutputJPEGQuality,
		FilteredPrefix: m.cfg.FilteredPrefix,
		OriginalPrefix: m.cfg.OriginalPrefix,
		KeepOriginal:   m.cfg.KeepOriginal,
	}
	if m.recovery != nil {
		deps.Recovery = m.recovery
	}

	job := captureJob{session: capture.New(req, deps), pending: capture.NewPending(req.ID)}
	select {
	case m.queue <- job:
	default:
		return nil, apperr.Errorf(apperr.Busy, op, "capture queue full")
	}
	m.capturing = true
	m.rememberLocked(job.pending)

	m.logger.Info("📸 Capture %s queued: filter=%s lens=%s", req.ID, req.Filter.Name, req.Lens)
	return job.pending, nil
}

// CaptureTimeout bounds a single capture run from dequeue to terminal state.
func (m *Manager) CaptureTimeout() time.Duration {
	if m.cfg.CaptureTimeout > 0 {
		return m.cfg.CaptureTimeout
	}
	return 10 * time.Second
}

// rememberLocked keeps p retrievable through CaptureResult, evicting the oldest.
func (m *Manager) rememberLocked(p *capture.Pending) {
	m.results[p.ID()] = p
	m.order = append(m.order, p.ID())
	if len(m.order) > keptResults {
		delete(m.results, m.order[0])
		m.order = m.order[1:]
	}
}

// CaptureResult returns the future of a recent capture request.
func (m *Manager) CaptureResult(id string) (*capture.Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.results[id]
	if !ok {
		return nil, apperr.Errorf(apperr.NotFound, "manager.CaptureResult", "no capture %q", id)
	}
	return p, nil
}

// captureWorker runs queued captures one at a time.
func (m *Manager) captureWorker() {
	defer m.wg.Done()

	for job := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), m.CaptureTimeout())
		res := job.session.Run(ctx)
		cancel()

		m.report(job.session, res)

		m.mu.Lock()
		m.capturing = false
		m.lastState = job.session.State()
		m.mu.Unlock()

		job.pending.Resolve(res)
	}
}

// report logs the terminal outcome of a capture exactly once.
func (m *Manager) report(s *capture.Session, res capture.Result) {
	m.captures.Add(1)
	switch {
	case res.Err != nil:
		m.failures.Add(1)
		switch apperr.KindOf(res.Err) {
		case apperr.StorageError:
			m.logger.Error("Capture %s failed to persist: %v", res.RequestID, res.Err)
		default:
			m.logger.Warning("Capture %s failed: %v", res.RequestID, res.Err)
		}
	case res.Artifact.Fallback:
		m.fallbacks.Add(1)
		m.logger.Warning("Capture %s saved without filter %s: %s", res.RequestID, s.Request().Filter.Name, res.Artifact.Filename)
	default:
		m.logger.Info("Capture %s saved: %s", res.RequestID, res.Artifact.Filename)
	}
}

// RequestPermission asks for camera permission again, clearing an earlier denial.
func (m *Manager) RequestPermission(ctx context.Context) (bool, error) {
	m.perm.Reset()
	granted, err := m.perm.Request(ctx, permission.Camera)
	if err != nil {
		return false, apperr.New(apperr.PermissionDenied, "manager.RequestPermission", err)
	}
	return granted, nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Previewing:  m.live != nil,
		Lens:        m.lens.String(),
		Flash:       m.flash.String(),
		Capturing:   m.capturing,
		Filter:      m.selector.Current().Name,
		FilterIndex: m.selector.Index(),
		Viewers:     m.hub.Stats(),
		Captures:    m.captures.Load(),
		Failures:    m.failures.Load(),
		Fallbacks:   m.fallbacks.Load(),
		Collection:  m.store.Collection(),
	}
	if m.captures.Load() > 0 {
		st.LastState = m.lastState.String()
	}
	if m.live != nil {
		st.Session = m.live.ID()
		st.PreviewHandle = m.live.PreviewHandle()
	}
	if m.stream != nil {
		st.Stream = m.stream.Stats()
	}
	if m.pipeline != nil {
		st.Preview = m.pipeline.Stats()
	}
	if m.recovery != nil {
		st.Recovery = m.recovery.Pending()
	}
	return st
}

// Shutdown waits for an outstanding capture, then closes the preview and
// releases the camera.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warning("Shutdown interrupted while a capture was running")
		return ctx.Err()
	}

	m.mu.Lock()
	err := m.unbindLocked()
	m.mu.Unlock()

	if cerr := m.source.Close(); err == nil {
		err = cerr
	}
	m.logger.Info("🛑 Manager stopped")
	return err
}

func (m *Manager) GetHubService() *websocket.HubService {
	return m.hub
}

func (m *Manager) GetStore() *storage.Store {
	return m.store
}

func (m *Manager) GetSelector() *filter.Selector {
	return m.selector
}

func (m *Manager) GetRecovery() *storage.RecoveryBuffer {
	return m.recovery
}
