package nav

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itohio/emgkb/pkg/acquire"
	"github.com/itohio/emgkb/pkg/actuator"
	"github.com/itohio/emgkb/pkg/calibrate"
	"github.com/itohio/emgkb/pkg/config"
	"github.com/itohio/emgkb/pkg/gate"
	"github.com/itohio/emgkb/pkg/telemetry"
)

// Gate is the part of the threshold gate the controller drives. The
// controller is the only caller of Tick.
type Gate interface {
	Tick()
	Decide() gate.Action
}

// Controller runs the navigation cycle: tick the gate, let it accumulate for
// the settle period, act on its decision, then pause if something happened.
type Controller struct {
	acquire.Lifecycle

	nav   *Navigator
	gate  Gate
	act   actuator.Actuator
	ready <-chan struct{}
	cfg   config.NavigationConfig
	calib calibrate.Calibration

	metrics *telemetry.Metrics
	hub     *telemetry.Hub

	cycles uint64
}

// NewController creates a controller. ready is closed once sensor data is
// flowing; navigation does not start before that.
func NewController(nav *Navigator, g Gate, act actuator.Actuator, ready <-chan struct{}, cfg config.NavigationConfig, calib calibrate.Calibration, metrics *telemetry.Metrics, hub *telemetry.Hub) *Controller {
	return &Controller{
		nav:     nav,
		gate:    g,
		act:     act,
		ready:   ready,
		cfg:     cfg,
		calib:   calib,
		metrics: metrics,
		hub:     hub,
	}
}

// Run opens the keyboard, moves to the origin key and runs cycles until ctx
// is cancelled. Only startup actuator failures are returned; failures during
// navigation are logged and the position is held.
func (c *Controller) Run(ctx context.Context) error {
	if !c.Start() {
		return acquire.ErrAlreadyStarted
	}
	defer c.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-c.ready:
	}

	if c.calib.Open != nil {
		if err := c.act.MoveTo(c.calib.Open.X, c.calib.Open.Y, c.cfg.MoveDuration); err != nil {
			return fmt.Errorf("move to keyboard button: %w", err)
		}
		if err := c.act.Click(); err != nil {
			return fmt.Errorf("open keyboard: %w", err)
		}
	}

	c.nav.Home()
	if err := c.act.MoveTo(c.calib.Origin.X, c.calib.Origin.Y, c.cfg.StartDelay); err != nil {
		return fmt.Errorf("move to origin %q: %w", c.calib.OriginName, err)
	}
	log.Printf("Navigation: origin %q at (%.0f, %.0f), %d rows", c.calib.OriginName, c.calib.Origin.X, c.calib.Origin.Y, c.nav.Grid().Rows())

	if !sleep(ctx, c.cfg.StartDelay) {
		return nil
	}

	for {
		if _, ok := c.Cycle(ctx); !ok {
			log.Printf("Navigation stopped after %d cycles", c.cycles)
			return nil
		}
	}
}

// Cycle runs one navigation cycle. ok is false when ctx was cancelled.
func (c *Controller) Cycle(ctx context.Context) (action gate.Action, ok bool) {
	c.gate.Tick()
	if !sleep(ctx, c.cfg.Settle) {
		return gate.None, false
	}

	c.cycles++
	action = c.gate.Decide()
	if action == gate.None {
		return action, true
	}

	if err := c.apply(action); err != nil {
		log.Printf("Warning: navigation %s failed: %v", action, err)
	}
	row, col := c.nav.Position()
	c.metrics.NavAction(action.String(), row, col)
	c.hub.PublishPosition(telemetry.Position{Row: row, Col: col, Action: action.String()})

	return action, sleep(ctx, c.cfg.ActionDelay)
}

// Position returns the navigator's current cell.
func (c *Controller) Position() (row, col int) {
	return c.nav.Position()
}

func (c *Controller) apply(action gate.Action) error {
	switch action {
	case gate.Select:
		return c.act.Click()
	case gate.Right:
		row, col := c.nav.Position()
		wrapped := c.nav.AdvanceColumn()
		return c.move(row, col, !wrapped)
	case gate.Down:
		row, col := c.nav.Position()
		c.nav.AdvanceRow()
		return c.move(row, col, false)
	default:
		return nil
	}
}

// move positions the cursor on the navigator's new cell. A step within a row
// is issued as a relative move. On failure the navigator returns to
// (prevRow, prevCol).
func (c *Controller) move(prevRow, prevCol int, relative bool) error {
	target, err := c.nav.Offset()
	if err == nil && relative {
		var prev Point
		if prev, err = c.nav.Grid().Offset(prevRow, prevCol); err == nil {
			err = c.act.MoveRelative(target.X-prev.X, target.Y-prev.Y, c.cfg.MoveDuration)
		}
	} else if err == nil {
		err = c.act.MoveTo(c.calib.Origin.X+target.X, c.calib.Origin.Y+target.Y, c.cfg.MoveDuration)
	}

	if err != nil {
		c.nav.row, c.nav.col = prevRow, prevCol
		if errors.Is(err, ErrOutOfBounds) {
			c.metrics.BoundsError()
		}
		return err
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
