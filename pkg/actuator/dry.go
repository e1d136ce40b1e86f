package actuator

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Dry logs actions and tracks where the cursor would be without moving it.
type Dry struct {
	mu      sync.Mutex
	x, y    float64
	clicks  int
	history []string
}

// NewDry creates a dry-run actuator with the cursor at (0, 0).
func NewDry() *Dry {
	return &Dry{}
}

func (d *Dry) MoveTo(x, y float64, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.x, d.y = x, y
	d.record(fmt.Sprintf("move_to %.0f,%.0f", x, y))
	log.Printf("Cursor: move to (%.0f, %.0f) over %v", x, y, dur)
	return nil
}

func (d *Dry) MoveRelative(dx, dy float64, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.x += dx
	d.y += dy
	d.record(fmt.Sprintf("move_relative %.0f,%.0f", dx, dy))
	log.Printf("Cursor: move by (%.0f, %.0f) to (%.0f, %.0f) over %v", dx, dy, d.x, d.y, dur)
	return nil
}

func (d *Dry) Click() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.clicks++
	d.record(fmt.Sprintf("click %.0f,%.0f", d.x, d.y))
	log.Printf("Cursor: click at (%.0f, %.0f)", d.x, d.y)
	return nil
}

// Position returns the tracked cursor position.
func (d *Dry) Position() (x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.x, d.y
}

// Clicks returns the number of clicks issued.
func (d *Dry) Clicks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clicks
}

// History returns the recorded actions in order.
func (d *Dry) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.history...)
}

func (d *Dry) record(action string) {
	d.history = append(d.history, action)
}
