// ArtifactsData is a paginated response payload for the artifact gallery.
package dto

type ArtifactsData struct {
	Artifacts   []ArtifactInfo `json:"artifacts"`
	Collection  string         `json:"collection"`
	Filters     []string       `json:"filters"`
	Size        int64          `json:"size"`
	MaxSize     int64          `json:"maxSize"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}
