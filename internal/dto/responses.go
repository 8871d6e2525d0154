package dto

import "chitcam/internal/model"

// FilterState describes the filter list and the current selection.
type FilterState struct {
	Filters []string `json:"filters"`
	Index   int      `json:"index"`
	Current string   `json:"current"`
	Changed bool     `json:"changed"`
}

// CaptureResponse is returned once a capture reaches a terminal state.
type CaptureResponse struct {
	RequestID string          `json:"requestId"`
	Artifact  *model.Artifact `json:"artifact"`
	Fallback  bool            `json:"fallback"`
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// VerifyResponse reports whether a stored artifact still matches its checksum.
type VerifyResponse struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
}
