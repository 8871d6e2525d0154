package dto

import "time"

// RecoveredStill holds a raw still whose persistence failed, waiting to be
// written to the recovery directory.
type RecoveredStill struct {
	RequestID string
	Filename  string
	Data      []byte
	Reason    string
	FailedAt  time.Time
}
