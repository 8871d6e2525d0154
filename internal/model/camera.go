package model

import (
	"fmt"
	"strings"
)

// LensFacing selects the physical camera.
type LensFacing int

const (
	LensBack LensFacing = iota
	LensFront
)

func (l LensFacing) String() string {
	switch l {
	case LensBack:
		return "back"
	case LensFront:
		return "front"
	default:
		return "unknown"
	}
}

// ParseLensFacing accepts "back"/"front" in any case. Empty means back.
func ParseLensFacing(s string) (LensFacing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "back", "rear":
		return LensBack, nil
	case "front", "selfie":
		return LensFront, nil
	default:
		return LensBack, fmt.Errorf("unknown lens facing %q", s)
	}
}

// FlashMode is applied when a still is captured.
type FlashMode int

const (
	FlashOff FlashMode = iota
	FlashOn
	FlashAuto
)

func (f FlashMode) String() string {
	switch f {
	case FlashOff:
		return "off"
	case FlashOn:
		return "on"
	case FlashAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseFlashMode accepts "off"/"on"/"auto" in any case. Empty means off.
func ParseFlashMode(s string) (FlashMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return FlashOff, nil
	case "on":
		return FlashOn, nil
	case "auto":
		return FlashAuto, nil
	default:
		return FlashOff, fmt.Errorf("unknown flash mode %q", s)
	}
}
