package camera

import (
	"sync"

	"chitcam/internal/model"
)

// StreamStats reports mailbox activity for one subscription.
type StreamStats struct {
	Published uint64 `json:"published"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	LastSeq   uint64 `json:"lastSeq"`
}

// mailbox is a single-slot frame buffer with overwrite semantics.
//
// Publish never blocks: an unconsumed frame is replaced and counted as dropped.
// Take blocks until a frame is available or the mailbox is closed.
// Take must be called from a single goroutine.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *model.Frame
	closed bool
	stats  StreamStats
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores f, replacing any unconsumed frame. Returns false once closed.
func (m *mailbox) Publish(f *model.Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	if m.frame != nil {
		m.stats.Dropped++
	}
	m.frame = f
	m.stats.Published++
	m.cond.Signal()
	return true
}

// Take returns the latest frame, or ok=false after Close.
func (m *mailbox) Take() (*model.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return nil, false
	}

	f := m.frame
	m.frame = nil
	m.stats.Delivered++
	m.stats.LastSeq = f.Seq
	return f, true
}

// Close wakes a blocked Take. Safe to call more than once.
func (m *mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.frame = nil
	m.cond.Broadcast()
}

func (m *mailbox) Stats() StreamStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
