package storage

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the second-resolution stamp embedded in artifact names.
const TimestampLayout = "20060102_150405"

var filenamePattern = regexp.MustCompile(`^([A-Za-z]+_)(\d{8}_\d{6})(?:_([0-9a-f]{8}))?\.jpg$`)

// Namer builds collision resistant artifact filenames.
type Namer struct {
	Now func() time.Time
}

// Name returns "<prefix><yyyyMMdd_HHmmss>_<8 hex>.jpg".
func (n Namer) Name(prefix string) string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s%s_%s.jpg", prefix, now().Format(TimestampLayout), suffix)
}

// ParsedName is the decoded form of an artifact filename.
type ParsedName struct {
	Prefix    string
	Timestamp time.Time
	Suffix    string
}

// ParseFilename decodes names produced by Name, and the suffix-less form
// "<prefix><yyyyMMdd_HHmmss>.jpg" older captures use.
func ParseFilename(name string) (*ParsedName, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("invalid artifact filename: %s", name)
	}

	ts, err := time.ParseInLocation(TimestampLayout, m[2], time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp in %s: %w", name, err)
	}
	return &ParsedName{Prefix: m[1], Timestamp: ts, Suffix: m[3]}, nil
}
