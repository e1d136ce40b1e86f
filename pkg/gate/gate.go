// Package gate latches threshold crossings per channel and turns them into
// navigation decisions.
package gate

import "sync"

// Action is the navigation decision for one cycle.
type Action int

const (
	None Action = iota
	Select
	Right
	Down
)

func (a Action) String() string {
	switch a {
	case None:
		return "none"
	case Select:
		return "select"
	case Right:
		return "right"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// Gate keeps a sticky "high" flag per channel. A flag is set by Update when
// the filtered value exceeds the threshold and stays set until Tick.
type Gate struct {
	mu        sync.Mutex
	threshold float64
	high      []bool
}

// New creates a gate for the given channel count.
func New(channels int, threshold float64) *Gate {
	if channels < 1 {
		channels = 1
	}
	return &Gate{
		threshold: threshold,
		high:      make([]bool, channels),
	}
}

// Channels returns the number of channels.
func (g *Gate) Channels() int {
	return len(g.high)
}

// Threshold returns the comparison threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Update latches channel high when filtered is strictly above the threshold.
// It reports the channel's flag after the update. Unknown channels are ignored.
func (g *Gate) Update(channel int, filtered float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if channel < 0 || channel >= len(g.high) {
		return false
	}
	if filtered > g.threshold {
		g.high[channel] = true
	}
	return g.high[channel]
}

// Tick clears all flags.
func (g *Gate) Tick() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.high {
		g.high[i] = false
	}
}

// ShouldSelect reports whether every channel is high.
func (g *Gate) ShouldSelect() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allHigh()
}

// ShouldRight reports channel 1 high while channel 0 is not.
func (g *Gate) ShouldRight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.right()
}

// ShouldDown reports channel 0 high while channel 1 is not.
func (g *Gate) ShouldDown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.down()
}

// Decide returns a single action from one consistent view of the flags,
// preferring Select over Right over Down.
func (g *Gate) Decide() Action {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.allHigh():
		return Select
	case g.right():
		return Right
	case g.down():
		return Down
	default:
		return None
	}
}

// Snapshot returns a copy of the flags.
func (g *Gate) Snapshot() []bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]bool(nil), g.high...)
}

func (g *Gate) allHigh() bool {
	for _, h := range g.high {
		if !h {
			return false
		}
	}
	return true
}

// Directions need two channels; with one channel only Select can fire.
func (g *Gate) right() bool {
	return len(g.high) >= 2 && g.high[1] && !g.high[0]
}

func (g *Gate) down() bool {
	return len(g.high) >= 2 && g.high[0] && !g.high[1]
}
