package models

import "time"

// Duration is a time span persisted and serialized as integer milliseconds.
type Duration int64

// DurationFrom converts a time.Duration to a millisecond Duration.
func DurationFrom(d time.Duration) Duration {
	return Duration(d.Milliseconds())
}

// Std converts back to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d) * time.Millisecond
}

// Millis returns the raw millisecond count.
func (d Duration) Millis() int64 {
	return int64(d)
}
