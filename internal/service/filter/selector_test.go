package filter

import (
	"errors"
	"testing"

	"chitcam/internal/apperr"
	"chitcam/internal/model"
)

func TestSelector_NextPreviousInverse(t *testing.T) {
	s := NewSelector(model.DefaultFilters())

	for start := 0; start < s.Len(); start++ {
		if _, err := s.Select(start); err != nil {
			t.Fatalf("Select(%d) failed: %v", start, err)
		}

		s.Next()
		s.Previous()
		if s.Index() != start {
			t.Errorf("next then previous from %d landed on %d", start, s.Index())
		}

		s.Previous()
		s.Next()
		if s.Index() != start {
			t.Errorf("previous then next from %d landed on %d", start, s.Index())
		}
	}
}

func TestSelector_Wraps(t *testing.T) {
	s := NewSelector(model.DefaultFilters())

	if got := s.Previous(); got.Name != "Pixelated" {
		t.Errorf("Previous from first should wrap to Pixelated, got %s", got.Name)
	}
	if got := s.Next(); got.Name != model.NormalFilterName {
		t.Errorf("Next from last should wrap to Normal, got %s", got.Name)
	}

	for i := 0; i < s.Len(); i++ {
		s.Next()
	}
	if s.Index() != 0 {
		t.Errorf("A full cycle should return to 0, got %d", s.Index())
	}
}

func TestSelector_Select(t *testing.T) {
	s := NewSelector(nil)

	f, err := s.Select(2)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if f.Name != "Grayscale" || s.Current().Name != "Grayscale" {
		t.Errorf("Expected Grayscale, got %s", f.Name)
	}

	for _, idx := range []int{-1, s.Len()} {
		_, err := s.Select(idx)
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Select(%d): expected ErrIndexOutOfRange, got %v", idx, err)
		}
	}
	if s.Index() != 2 {
		t.Errorf("Failed select must not move the index, got %d", s.Index())
	}
}

func TestSelector_SelectByName(t *testing.T) {
	s := NewSelector(nil)

	f, err := s.SelectByName("sepia")
	if err != nil {
		t.Fatalf("SelectByName failed: %v", err)
	}
	if f.Kind != model.KindSepia || s.Index() != 1 {
		t.Errorf("Expected Sepia at 1, got %s at %d", f.Name, s.Index())
	}

	_, err = s.SelectByName("Lomo")
	if !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestDragTracker(t *testing.T) {
	s := NewSelector(nil)
	d := NewDragTracker(s, 20)

	if _, changed := d.Drag(-15); changed {
		t.Fatal("A drag below the threshold must not change the filter")
	}
	f, changed := d.Drag(-10)
	if !changed || f.Name != "Sepia" {
		t.Fatalf("Dragging left past the threshold should select the next filter, got %s", f.Name)
	}

	// accumulator was reset, so a small drag right does nothing
	if _, changed := d.Drag(15); changed {
		t.Fatal("Accumulator should reset after a step")
	}
	f, changed = d.Drag(10)
	if !changed || f.Name != model.NormalFilterName {
		t.Fatalf("Dragging right past the threshold should select the previous filter, got %s", f.Name)
	}

	d.Drag(19)
	d.Reset()
	if _, changed := d.Drag(19); changed {
		t.Error("Reset should drop the partial drag")
	}
}
