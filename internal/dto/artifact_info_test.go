package dto

import (
	"strings"
	"testing"
	"time"
)

func TestArtifactInfo_MarshalJSON(t *testing.T) {
	info := ArtifactInfo{
		Name:      "FILTERED_20250615_143000_deadbeef.jpg",
		Date:      time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC),
		TimeOfDay: time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC),
		Filter:    "Sepia",
		Lens:      "back",
	}

	data, err := info.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	jsonStr := string(data)

	// Check date format (DD-MM-YYYY)
	if !strings.Contains(jsonStr, `"date":"15-06-2025"`) {
		t.Errorf("Expected date format DD-MM-YYYY, got: %s", jsonStr)
	}

	// Check time format (HH:MM)
	if !strings.Contains(jsonStr, `"timeOfDay":"14:30"`) {
		t.Errorf("Expected time format HH:MM, got: %s", jsonStr)
	}

	if !strings.Contains(jsonStr, `"filter":"Sepia"`) {
		t.Errorf("Expected filter field, got: %s", jsonStr)
	}
}
