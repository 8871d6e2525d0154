package dto

// PreviewRequest opens or rebinds the live preview.
type PreviewRequest struct {
	Lens  string `json:"lens"`
	Flash string `json:"flash"`
}

// FilterSelectRequest selects a filter by index or by name. Name wins when both are set.
type FilterSelectRequest struct {
	Index *int   `json:"index,omitempty"`
	Name  string `json:"name,omitempty"`
}

// DragRequest carries one horizontal drag delta in pixels.
type DragRequest struct {
	DX float64 `json:"dx"`
}
