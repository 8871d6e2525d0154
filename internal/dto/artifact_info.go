package dto

import (
	"encoding/json"
	"time"
)

// ArtifactInfo represents one persisted capture in the gallery listing.
type ArtifactInfo struct {
	Name      string    `json:"name"`
	URI       string    `json:"uri"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Filter    string    `json:"filter"`
	Lens      string    `json:"lens"`
	Fallback  bool      `json:"fallback"`
	Size      int64     `json:"size"`
}

// MarshalJSON customizes JSON output for ArtifactInfo to format date and time-of-day.
func (a ArtifactInfo) MarshalJSON() ([]byte, error) {
	type Alias ArtifactInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      a.Date.Format("02-01-2006"),
		TimeOfDay: a.TimeOfDay.Format("15:04"),
		Alias:     (Alias)(a),
	})
}
