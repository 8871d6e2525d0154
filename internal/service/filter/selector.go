package filter

import (
	"errors"
	"strings"
	"sync"

	"chitcam/internal/apperr"
	"chitcam/internal/model"
)

// ErrIndexOutOfRange is returned by Select for an index outside the list.
var ErrIndexOutOfRange = errors.New("filter index out of range")

// Selector tracks the current filter over a fixed, non-empty list.
// Next and Previous wrap around in both directions.
type Selector struct {
	mu      sync.RWMutex
	filters []model.Filter
	index   int
}

// NewSelector creates a selector positioned on the first filter.
// An empty list falls back to DefaultFilters.
func NewSelector(filters []model.Filter) *Selector {
	if len(filters) == 0 {
		filters = model.DefaultFilters()
	}
	list := make([]model.Filter, len(filters))
	copy(list, filters)
	return &Selector{filters: list}
}

// Current returns the selected filter.
func (s *Selector) Current() model.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters[s.index]
}

// Index returns the position of the selected filter.
func (s *Selector) Index() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Len returns the number of filters.
func (s *Selector) Len() int {
	return len(s.filters)
}

// Filters returns a copy of the filter list.
func (s *Selector) Filters() []model.Filter {
	list := make([]model.Filter, len(s.filters))
	copy(list, s.filters)
	return list
}

// Next advances to the following filter, wrapping to the first.
func (s *Selector) Next() model.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = (s.index + 1) % len(s.filters)
	return s.filters[s.index]
}

// Previous steps back to the preceding filter, wrapping to the last.
func (s *Selector) Previous() model.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = (s.index - 1 + len(s.filters)) % len(s.filters)
	return s.filters[s.index]
}

// Select jumps to index.
func (s *Selector) Select(index int) (model.Filter, error) {
	if index < 0 || index >= len(s.filters) {
		return model.Filter{}, apperr.New(apperr.InvalidArgument, "selector.Select", ErrIndexOutOfRange)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = index
	return s.filters[index], nil
}

// SelectByName jumps to the filter with the given name, ignoring case.
func (s *Selector) SelectByName(name string) (model.Filter, error) {
	for i, f := range s.filters {
		if strings.EqualFold(f.Name, strings.TrimSpace(name)) {
			s.mu.Lock()
			s.index = i
			s.mu.Unlock()
			return f, nil
		}
	}
	return model.Filter{}, apperr.Errorf(apperr.NotFound, "selector.SelectByName", "no filter named %q", name)
}
