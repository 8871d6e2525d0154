// Package preview turns live frames into filtered JPEGs for viewers.
package preview

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"

	"chitcam/internal/logger"
	"chitcam/internal/model"
)

// Stream is the consumer side of a live session's frame mailbox.
type Stream interface {
	Next() (*model.Frame, bool)
	Close()
}

type Codec interface {
	Decode(f *model.Frame) (*model.Bitmap, error)
	Encode(b *model.Bitmap, quality int) ([]byte, error)
}

type Filterer interface {
	Apply(src *model.Bitmap, f model.Filter) (*model.Bitmap, error)
}

// FilterSource reports the filter currently selected.
type FilterSource interface {
	Current() model.Filter
}

type Broadcaster interface {
	Broadcast(message []byte) bool
}

// Message is what viewers receive for every rendered frame.
type Message struct {
	Session string `json:"session"`
	Filter  string `json:"filter"`
	Seq     uint64 `json:"seq"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Image   string `json:"image"`
}

// Stats counts the work done by a pipeline.
type Stats struct {
	Frames    uint64 `json:"frames"`
	Rendered  uint64 `json:"rendered"`
	Delivered uint64 `json:"delivered"`
	Errors    uint64 `json:"errors"`
	LastSeq   uint64 `json:"lastSeq"`
}

// Pipeline renders one live session's frames until the stream ends.
type Pipeline struct {
	session string
	stream  Stream
	codec   Codec
	engine  Filterer
	filters FilterSource
	out     Broadcaster
	quality int
	logger  *logger.Logger

	mu      sync.Mutex
	stats   Stats
	lastErr string
}

// Deps are the collaborators of a pipeline.
type Deps struct {
	Codec   Codec
	Engine  Filterer
	Filters FilterSource
	Out     Broadcaster
	Quality int
	Logger  *logger.Logger
}

func NewPipeline(session string, stream Stream, deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Quality <= 0 {
		deps.Quality = 70
	}
	return &Pipeline{
		session: session,
		stream:  stream,
		codec:   deps.Codec,
		engine:  deps.Engine,
		filters: deps.Filters,
		out:     deps.Out,
		quality: deps.Quality,
		logger:  deps.Logger,
	}
}

// Run consumes frames until the stream closes or ctx is done.
func (p *Pipeline) Run(ctx context.Context) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.stream.Close()
		case <-stop:
		}
	}()

	for {
		frame, ok := p.stream.Next()
		if !ok {
			st := p.Stats()
			p.logger.Debug("Preview %s stopped: frames=%d rendered=%d errors=%d", p.session, st.Frames, st.Rendered, st.Errors)
			return
		}
		p.render(frame)
	}
}

func (p *Pipeline) render(frame *model.Frame) {
	p.count(func(s *Stats) {
		s.Frames++
		s.LastSeq = frame.Seq
	})

	f := p.filters.Current()
	msg, err := p.encode(frame, f)
	if err != nil {
		p.fail(err)
		return
	}
	p.count(func(s *Stats) { s.Rendered++ })

	if p.out.Broadcast(msg) {
		p.count(func(s *Stats) { s.Delivered++ })
	}
}

func (p *Pipeline) encode(frame *model.Frame, f model.Filter) ([]byte, error) {
	bitmap, err := p.codec.Decode(frame)
	if err != nil {
		return nil, err
	}
	out, err := p.engine.Apply(bitmap, f)
	if err != nil {
		return nil, err
	}
	data, err := p.codec.Encode(out, p.quality)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Message{
		Session: p.session,
		Filter:  f.Name,
		Seq:     frame.Seq,
		Width:   out.Width,
		Height:  out.Height,
		Image:   base64.StdEncoding.EncodeToString(data),
	})
}

// fail counts err and logs it unless it repeats the previous error.
func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	p.stats.Errors++
	repeated := err.Error() == p.lastErr
	p.lastErr = err.Error()
	p.mu.Unlock()

	if !repeated {
		p.logger.Warning("Preview %s: frame dropped: %v", p.session, err)
	}
}

func (p *Pipeline) count(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}

func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
