// Package permission asks the platform whether the process may use the camera.
package permission

import (
	"context"
	"strings"
	"sync"

	"chitcam/internal/config"
)

// Permission names a platform capability.
type Permission string

const Camera Permission = "camera"

// Gate answers permission requests.
type Gate interface {
	Request(ctx context.Context, p Permission) (bool, error)
}

// Static grants or denies every request according to a fixed answer.
type Static struct {
	Granted bool
}

// NewStatic reads CAMERA_PERMISSION ("granted" or anything else for denied).
func NewStatic(cfg *config.Config) *Static {
	v := strings.ToLower(strings.TrimSpace(cfg.CameraPermission))
	return &Static{Granted: v == "" || v == "granted" || v == "true" || v == "yes"}
}

func (s *Static) Request(ctx context.Context, _ Permission) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Granted, nil
}

// Once caches the first answer of a Gate. A denial stays in place until Reset.
type Once struct {
	gate Gate

	mu       sync.Mutex
	asked    bool
	granted  bool
	requests int
}

// NewOnce wraps gate.
func NewOnce(gate Gate) *Once {
	return &Once{gate: gate}
}

// Request asks the gate the first time and returns the cached answer afterwards.
// Errors are not cached.
func (o *Once) Request(ctx context.Context, p Permission) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.asked {
		return o.granted, nil
	}
	o.requests++
	granted, err := o.gate.Request(ctx, p)
	if err != nil {
		return false, err
	}
	o.asked, o.granted = true, granted
	return granted, nil
}

// Reset forgets the cached answer so the next Request asks again.
func (o *Once) Reset() {
	o.mu.Lock()
	o.asked, o.granted = false, false
	o.mu.Unlock()
}

// Requests returns how many times the underlying gate was consulted.
func (o *Once) Requests() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requests
}
