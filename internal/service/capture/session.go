// Package capture runs one capture request from shutter to persisted artifact.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"chitcam/internal/apperr"
	"chitcam/internal/logger"
	"chitcam/internal/model"
	"chitcam/internal/service/storage"
)

// ErrSessionUsed is returned when Run is called on a session that already ran.
var ErrSessionUsed = errors.New("capture session already used")

// State is a step of the capture state machine.
type State int

const (
	Idle State = iota
	Capturing
	RawReceived
	Filtering
	Persisted
	PersistFailed
	FallbackDelivered
	Delivered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case RawReceived:
		return "raw_received"
	case Filtering:
		return "filtering"
	case Persisted:
		return "persisted"
	case PersistFailed:
		return "persist_failed"
	case FallbackDelivered:
		return "fallback_delivered"
	case Delivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// StillSource takes a still. *camera.LiveSession implements it.
type StillSource interface {
	CaptureStill(ctx context.Context) (*model.Frame, error)
}

// Codec decodes frames and encodes bitmaps. *decoder.Decoder implements it.
type Codec interface {
	Decode(f *model.Frame) (*model.Bitmap, error)
	Encode(b *model.Bitmap, quality int) ([]byte, error)
}

// Filterer applies a filter. *filter.Engine implements it.
type Filterer interface {
	Apply(src *model.Bitmap, f model.Filter) (*model.Bitmap, error)
}

// Persister stores artifact bytes. *storage.Store implements it.
type Persister interface {
	Persist(ctx context.Context, data []byte, filename, mimeType, collection string, opts ...storage.Option) (*model.Artifact, error)
	MarkFallback(name string) (*model.Artifact, error)
}

// Recovery keeps stills whose persistence failed. *storage.RecoveryBuffer implements it.
type Recovery interface {
	Add(requestID, filename string, data []byte, reason string) bool
}

// Deps are the collaborators of a session.
type Deps struct {
	Camera   StillSource
	Codec    Codec
	Engine   Filterer
	Store    Persister
	Recovery Recovery // optional
	Namer    storage.Namer
	Logger   *logger.Logger

	Lens           model.LensFacing
	Collection     string
	OutputQuality  int
	FilteredPrefix string
	OriginalPrefix string
	// KeepOriginal persists the raw still before filtering.
	KeepOriginal bool
}

// Session is a single-use capture state machine.
type Session struct {
	req  model.CaptureRequest
	deps Deps
	used atomic.Bool

	mu      sync.Mutex
	state   State
	history []Transition
}

// New creates a session for req.
func New(req model.CaptureRequest, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.FilteredPrefix == "" {
		deps.FilteredPrefix = "FILTERED_"
	}
	if deps.OriginalPrefix == "" {
		deps.OriginalPrefix = "IMG_"
	}
	if deps.OutputQuality <= 0 {
		deps.OutputQuality = 90
	}
	return &Session{req: req, deps: deps, state: Idle}
}

// Request returns the capture request.
func (s *Session) Request() model.CaptureRequest {
	return s.req
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns every transition so far.
func (s *Session) History() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transition(nil), s.history...)
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.history = append(s.history, Transition{From: from, To: to, At: time.Now()})
	s.mu.Unlock()

	s.deps.Logger.Debug("Capture %s: %s -> %s", s.req.ID, from, to)
}

// Run executes the capture once and returns its terminal result.
func (s *Session) Run(ctx context.Context) Result {
	if !s.used.CompareAndSwap(false, true) {
		return Result{RequestID: s.req.ID, Err: apperr.New(apperr.Busy, "capture.Run", ErrSessionUsed)}
	}

	s.transition(Capturing)
	still, err := s.deps.Camera.CaptureStill(ctx)
	if err != nil {
		s.transition(Idle)
		if apperr.KindOf(err) == apperr.Unknown {
			err = apperr.New(apperr.CaptureFailed, "capture.Run", err)
		}
		return s.result(nil, err)
	}
	s.transition(RawReceived)

	raw := still.Bytes()
	rawIsJPEG := still.Encoding == model.EncodingJPEG && len(raw) > 0

	var original *model.Artifact
	if s.deps.KeepOriginal && rawIsJPEG {
		original, err = s.deps.Store.Persist(ctx, raw, s.deps.Namer.Name(s.deps.OriginalPrefix), storage.DefaultMimeType,
			s.deps.Collection, storage.WithLens(s.deps.Lens))
		if err != nil {
			s.deps.Logger.Warning("Capture %s: saving original failed: %v", s.req.ID, err)
			original = nil
		}
	}

	s.transition(Filtering)
	filtered, filterErr := s.filter(still)
	if filterErr != nil {
		return s.fallback(ctx, still, original, filterErr)
	}

	name := s.deps.Namer.Name(s.deps.FilteredPrefix)
	artifact, err := s.deps.Store.Persist(ctx, filtered, name, storage.DefaultMimeType, s.deps.Collection,
		storage.WithFilter(s.req.Filter.Name), storage.WithLens(s.deps.Lens))
	if err != nil {
		return s.persistFailed(still, err)
	}

	s.transition(Persisted)
	s.transition(Delivered)
	return s.result(artifact, nil)
}

// filter decodes, filters and re-encodes the still.
func (s *Session) filter(still *model.Frame) ([]byte, error) {
	bitmap, err := s.deps.Codec.Decode(still)
	if err != nil {
		return nil, fmt.Errorf("decode still: %w", err)
	}
	out, err := s.deps.Engine.Apply(bitmap, s.req.Filter)
	if err != nil {
		return nil, fmt.Errorf("apply filter %s: %w", s.req.Filter.Name, err)
	}
	data, err := s.deps.Codec.Encode(out, s.deps.OutputQuality)
	if err != nil {
		return nil, fmt.Errorf("encode filtered image: %w", err)
	}
	return data, nil
}

// fallback delivers the unfiltered still after a post-capture failure.
func (s *Session) fallback(ctx context.Context, still *model.Frame, original *model.Artifact, cause error) Result {
	if still.Encoding != model.EncodingJPEG || len(still.Bytes()) == 0 {
		s.transition(Idle)
		return s.result(nil, apperr.New(apperr.CaptureFailed, "capture.Run",
			fmt.Errorf("still is %s and cannot be delivered unfiltered: %w", still.Encoding, cause)))
	}

	s.transition(FallbackDelivered)
	s.deps.Logger.Debug("Capture %s: filter %s failed, delivering original: %v", s.req.ID, s.req.Filter.Name, cause)

	if original != nil {
		marked, err := s.deps.Store.MarkFallback(original.Filename)
		if err == nil {
			s.transition(Delivered)
			return s.result(marked, nil)
		}
		s.deps.Logger.Warning("Capture %s: flagging %s as fallback failed, saving a copy: %v", s.req.ID, original.Filename, err)
	}

	name := s.deps.Namer.Name(s.deps.OriginalPrefix)
	artifact, err := s.deps.Store.Persist(ctx, still.Bytes(), name, storage.DefaultMimeType, s.deps.Collection,
		storage.AsFallback(), storage.WithLens(s.deps.Lens))
	if err != nil {
		return s.persistFailed(still, err)
	}

	s.transition(Delivered)
	return s.result(artifact, nil)
}

// persistFailed hands the raw still to the recovery buffer and reports StorageError.
func (s *Session) persistFailed(still *model.Frame, err error) Result {
	s.transition(PersistFailed)
	if s.deps.Recovery != nil && len(still.Bytes()) > 0 {
		s.deps.Recovery.Add(s.req.ID, s.deps.Namer.Name(s.deps.OriginalPrefix), still.Bytes(), err.Error())
	}
	if !apperr.IsKind(err, apperr.StorageError) {
		err = apperr.New(apperr.StorageError, "capture.Run", err)
	}
	return s.result(nil, err)
}

func (s *Session) result(a *model.Artifact, err error) Result {
	return Result{RequestID: s.req.ID, Artifact: a, Err: err}
}
