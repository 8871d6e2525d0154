// Package filter implements the pixel filters and the user's filter selection.
package filter

import (
	"fmt"

	"chitcam/internal/apperr"
	"chitcam/internal/model"
)

// Engine applies filters to bitmaps. It keeps no state between calls and is
// safe for concurrent use.
type Engine struct{}

// NewEngine creates a filter engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Apply returns a new bitmap holding src transformed by f. src is never modified.
func (e *Engine) Apply(src *model.Bitmap, f model.Filter) (*model.Bitmap, error) {
	if err := src.Validate(); err != nil {
		return nil, apperr.New(apperr.InvalidArgument, "filter.Apply", err)
	}

	fn, ok := transforms[f.Kind]
	if !ok {
		return nil, apperr.Errorf(apperr.InvalidArgument, "filter.Apply", "unknown filter kind %d (%s)", f.Kind, f.Name)
	}

	out, err := fn(src, f)
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", f.Name, err)
	}
	return out, nil
}
