package model

import "time"

// Artifact represents a persisted capture record.
type Artifact struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	URI        string    `json:"uri"`
	FilePath   string    `json:"filepath"`
	Collection string    `json:"collection"`
	MimeType   string    `json:"mimeType"`
	FilterName string    `json:"filter"`
	Lens       string    `json:"lens"`
	Fallback   bool      `json:"fallback"` // true when the unfiltered still was delivered
	FileSize   int64     `json:"filesize"`
	Checksum   string    `json:"checksum"`
	Timestamp  time.Time `json:"timestamp"`
}

// CaptureRequest is the ephemeral "capture now with filter F" value owned by one capture session.
type CaptureRequest struct {
	ID          string
	Filter      Filter
	Lens        LensFacing
	RequestedAt time.Time
}
