// ArtifactFilters describe user-provided filters to narrow the artifact list.
package dto

import "time"

type ArtifactFilters struct {
	FilterName string
	Lens       string
	Prefix     string // e.g. FILTERED_ or IMG_
	Fallback   *bool
	DateAfter  time.Time
	DateBefore time.Time
	TimeAfter  time.Time
	TimeBefore time.Time
	Limit      int
	Offset     int
}
