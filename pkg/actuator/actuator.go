// Package actuator moves the cursor and clicks on behalf of the navigator.
package actuator

import (
	"fmt"
	"time"

	"github.com/itohio/emgkb/pkg/config"
)

// Actuator executes cursor movements and clicks.
type Actuator interface {
	// MoveTo moves the cursor to absolute screen coordinates over d.
	MoveTo(x, y float64, d time.Duration) error
	// MoveRelative moves the cursor by an offset over d.
	MoveRelative(dx, dy float64, d time.Duration) error
	// Click clicks at the current cursor position.
	Click() error
}

// Closer is implemented by actuators that hold a connection.
type Closer interface {
	Close() error
}

var (
	_ Actuator = (*Dry)(nil)
	_ Actuator = (*MQTT)(nil)
)

// New creates the actuator selected by cfg.Kind. session tags remote commands.
func New(cfg config.ActuatorConfig, session string) (Actuator, error) {
	switch cfg.Kind {
	case config.ActuatorDry, "":
		return NewDry(), nil
	case config.ActuatorMQTT:
		return DialMQTT(cfg.MQTT, session)
	default:
		return nil, fmt.Errorf("unknown actuator kind %q", cfg.Kind)
	}
}
