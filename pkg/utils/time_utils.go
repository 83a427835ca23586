package utils

import (
	"time"
)

// TimePtr returns a pointer to t truncated to millisecond precision,
// matching what the database stores.
func TimePtr(t time.Time) *time.Time {
	truncated := t.Truncate(time.Millisecond)
	return &truncated
}
