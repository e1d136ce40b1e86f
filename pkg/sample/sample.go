package sample

import (
	"errors"
	"time"
)

// ErrNotReady is returned while no frame has been acquired yet.
var ErrNotReady = errors.New("no frame acquired yet")

// Debugf receives per-decode trace output. It discards by default.
var Debugf = func(format string, args ...any) {}

// Sample represents one decoded and filtered channel value.
type Sample struct {
	Timestamp time.Time
	Channel   int
	Raw       float64 // Value as decoded from the frame
	Filtered  float64 // Value after the channel filter
	High      bool    // Gate flag for this channel after the update
	Stale     bool    // Round started on a frame that was already decoded
}
