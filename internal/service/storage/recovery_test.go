package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chitcam/internal/config"
	"chitcam/internal/logger"
)

func TestRecoveryBuffer_AddAndFlush(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recovery")
	b := NewRecoveryBuffer(&config.Config{RecoveryDirectory: dir, RecoveryBufferLimit: 2}, logger.Discard())

	if !b.Add("r1", "IMG_1.jpg", []byte("one"), "disk full") || !b.Add("r2", "IMG_2.jpg", []byte("two"), "disk full") {
		t.Fatal("Add should accept stills up to the limit")
	}
	if b.Add("r3", "IMG_3.jpg", []byte("three"), "disk full") {
		t.Error("Add should refuse stills beyond the limit")
	}
	if b.Pending() != 2 || b.Dropped() != 1 {
		t.Errorf("Expected 2 pending and 1 dropped, got %d and %d", b.Pending(), b.Dropped())
	}

	if saved := b.Flush(); saved != 2 {
		t.Errorf("Expected 2 saved, got %d", saved)
	}
	if b.Pending() != 0 {
		t.Errorf("Buffer should be empty after flush, got %d", b.Pending())
	}

	data, err := os.ReadFile(filepath.Join(dir, "IMG_2.jpg"))
	if err != nil || string(data) != "two" {
		t.Errorf("Recovered file mismatch: %q, %v", data, err)
	}
}

func TestRecoveryBuffer_RunFlushesOnCancel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recovery")
	b := NewRecoveryBuffer(&config.Config{RecoveryDirectory: dir, RecoveryFlushInterval: 3600}, logger.Discard())
	b.Add("r1", "IMG_1.jpg", []byte("one"), "insert failed")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(filepath.Join(dir, "IMG_1.jpg")); err != nil {
		t.Errorf("Still should be flushed on shutdown: %v", err)
	}
}
