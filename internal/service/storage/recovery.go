package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chitcam/internal/config"
	"chitcam/internal/dto"
	"chitcam/internal/logger"
)

const (
	// DefaultRecoveryLimit limits how many failed stills are held before new ones are dropped.
	DefaultRecoveryLimit = 10
	// DefaultRecoveryFlushInterval defines how often (seconds) held stills are written out.
	DefaultRecoveryFlushInterval = 30
)

// RecoveryBuffer keeps raw stills whose persistence failed and periodically
// writes them to the recovery directory. It never touches the collection or
// the repository, and never retries the original persist.
type RecoveryBuffer struct {
	dir      string
	limit    int
	interval time.Duration
	stills   []dto.RecoveredStill
	dropped  int
	mu       sync.Mutex
	logger   *logger.Logger
}

// NewRecoveryBuffer creates a RecoveryBuffer from RECOVERY_* settings.
func NewRecoveryBuffer(cfg *config.Config, logger *logger.Logger) *RecoveryBuffer {
	limit := cfg.RecoveryBufferLimit
	if limit <= 0 {
		limit = DefaultRecoveryLimit
	}
	interval := cfg.RecoveryFlushInterval
	if interval <= 0 {
		interval = DefaultRecoveryFlushInterval
	}
	return &RecoveryBuffer{
		dir:      cfg.RecoveryDirectory,
		limit:    limit,
		interval: time.Duration(interval) * time.Second,
		stills:   make([]dto.RecoveredStill, 0),
		logger:   logger,
	}
}

// Run flushes on a ticker until ctx is done, then flushes once more.
func (b *RecoveryBuffer) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

// Add holds a still. Returns false when the buffer is full and the still was dropped.
func (b *RecoveryBuffer) Add(requestID, filename string, data []byte, reason string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.stills) >= b.limit {
		b.dropped++
		b.logger.Warning("Recovery buffer full (%d/%d), dropping still %s", len(b.stills), b.limit, filename)
		return false
	}

	b.stills = append(b.stills, dto.RecoveredStill{
		RequestID: requestID,
		Filename:  filename,
		Data:      data,
		Reason:    reason,
		FailedAt:  time.Now(),
	})
	b.logger.Info("Recovery buffer size: %d/%d", len(b.stills), b.limit)
	return true
}

// Pending returns how many stills wait to be flushed.
func (b *RecoveryBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stills)
}

// Dropped returns how many stills were refused because the buffer was full.
func (b *RecoveryBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Flush writes held stills to disk and returns how many were saved. Stills
// that fail to write stay buffered for the next flush.
func (b *RecoveryBuffer) Flush() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.stills) == 0 {
		return 0
	}

	if err := os.MkdirAll(b.dir, 0755); err != nil {
		b.logger.Error("Error creating recovery directory: %v", err)
		return 0
	}

	remaining := b.stills[:0]
	saved := 0
	for _, still := range b.stills {
		fullpath := filepath.Join(b.dir, filepath.Base(still.Filename))
		if err := os.WriteFile(fullpath, still.Data, 0644); err != nil {
			b.logger.Error("Error saving recovered still %s: %v", still.Filename, err)
			remaining = append(remaining, still)
			continue
		}
		saved++
	}

	b.stills = remaining
	b.logger.Info("Flushed %d recovered still(s) to %s", saved, b.dir)
	return saved
}
