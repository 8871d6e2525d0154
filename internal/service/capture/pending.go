package capture

import (
	"context"
	"sync"

	"chitcam/internal/model"
)

// Result is the terminal outcome of one capture request.
type Result struct {
	RequestID string
	Artifact  *model.Artifact
	Err       error
}

// Pending is a one-shot future for a capture request.
type Pending struct {
	id     string
	once   sync.Once
	ch     chan Result
	ready  chan struct{}
	result Result
}

// NewPending creates an unresolved future for request id.
func NewPending(id string) *Pending {
	return &Pending{
		id:    id,
		ch:    make(chan Result, 1),
		ready: make(chan struct{}),
	}
}

// ID returns the capture request id.
func (p *Pending) ID() string {
	return p.id
}

// Resolve delivers r. Only the first call has any effect; it reports whether this call won.
func (p *Pending) Resolve(r Result) bool {
	resolved := false
	p.once.Do(func() {
		r.RequestID = p.id
		p.result = r
		p.ch <- r
		close(p.ready)
		resolved = true
	})
	return resolved
}

// Done yields the result exactly once.
func (p *Pending) Done() <-chan Result {
	return p.ch
}

// Wait blocks until the result is available or ctx is done. Unlike Done it
// can be called any number of times.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.ready:
		return p.result, nil
	case <-ctx.Done():
		return Result{RequestID: p.id}, ctx.Err()
	}
}

// Resolved reports whether a result has been delivered.
func (p *Pending) Resolved() bool {
	select {
	case <-p.ready:
		return true
	default:
		return false
	}
}
