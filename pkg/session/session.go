// Package session wires the sensor, decoder and navigator into one run.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/itohio/emgkb/pkg/acquire"
	"github.com/itohio/emgkb/pkg/actuator"
	"github.com/itohio/emgkb/pkg/calibrate"
	"github.com/itohio/emgkb/pkg/config"
	"github.com/itohio/emgkb/pkg/frame"
	"github.com/itohio/emgkb/pkg/gate"
	"github.com/itohio/emgkb/pkg/nav"
	"github.com/itohio/emgkb/pkg/recovery"
	"github.com/itohio/emgkb/pkg/sample"
	"github.com/itohio/emgkb/pkg/sensor"
	"github.com/itohio/emgkb/pkg/telemetry"
)

// Session owns one acquisition and navigation run. It is not reusable.
type Session struct {
	ID string

	cfg      *config.Config
	src      sensor.Source
	act      actuator.Actuator
	provider calibrate.Provider

	codec   *frame.Codec
	buf     *acquire.Buffer
	gate    *gate.Gate
	grid    *nav.Grid
	metrics *telemetry.Metrics
	hub     *telemetry.Hub

	acquirer   *acquire.Acquirer
	decoder    *sample.Decoder
	controller *nav.Controller
}

// Deps are the external collaborators of a session.
type Deps struct {
	ID       string // generated when empty
	Source   sensor.Source
	Actuator actuator.Actuator
	Anchors  calibrate.Provider
}

// NewID returns a fresh session ID.
func NewID() string {
	return uuid.NewString()
}

// New validates the configuration and builds the pipeline. Nothing is opened
// until Run.
func New(cfg *config.Config, deps Deps) (*Session, error) {
	if deps.Source == nil || deps.Actuator == nil || deps.Anchors == nil {
		return nil, errors.New("session needs a source, an actuator and an anchor provider")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	codec, err := frame.NewCodec(cfg.Frame.SampleBytes, cfg.Frame.Channels, cfg.Frame.ByteOrder)
	if err != nil {
		return nil, err
	}
	grid, err := nav.NewGrid(cfg.Navigation.Rows)
	if err != nil {
		return nil, err
	}

	if deps.ID == "" {
		deps.ID = NewID()
	}

	s := &Session{
		ID:       deps.ID,
		cfg:      cfg,
		src:      deps.Source,
		act:      deps.Actuator,
		provider: deps.Anchors,
		codec:    codec,
		buf:      acquire.NewBuffer(codec.Size()),
		gate:     gate.New(codec.Channels(), cfg.Filter.Threshold),
		grid:     grid,
		metrics:  telemetry.NewMetrics(),
	}
	s.hub = telemetry.NewHub(s.ID, s.metrics)

	s.acquirer = acquire.New(s.src, s.buf, cfg.Serial.FlushDelay, s.metrics)
	s.decoder, err = sample.NewDecoder(cfg.Filter, s.buf, codec, s.gate, s.metrics, s.hub)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Run opens the sensor, resolves the calibration anchors and runs the
// acquirer, decoder and navigator until ctx is cancelled or one of them
// fails. The sensor is closed after all of them have stopped.
//
// A cancelled ctx returns nil. Startup failures wrap sensor.ErrConnection or
// calibrate.ErrCalibration; a lost sensor wraps sensor.ErrIO.
func (s *Session) Run(ctx context.Context) error {
	if err := s.src.Open(); err != nil {
		s.closeActuator()
		return err
	}
	defer s.closeSource()

	calib, err := calibrate.Resolve(s.provider, s.cfg.Calibration)
	if err != nil {
		return err
	}

	s.controller = nav.NewController(nav.NewNavigator(s.grid), s.gate, s.act, s.buf.Ready(), s.cfg.Navigation, calib, s.metrics, s.hub)

	log.Printf("Session %s: %d channel(s) of %s, policy %s, alpha %.2f, threshold %.1f",
		s.ID, s.codec.Channels(), s.codec.Encoding(), s.cfg.Filter.Policy, s.cfg.Filter.Alpha, s.gate.Threshold())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(recovery.Guard("acquirer", func() error { return s.acquirer.Run(gctx) }))
	g.Go(recovery.Guard("decoder", func() error { return s.decoder.Run(gctx) }))
	g.Go(recovery.Guard("navigator", func() error { return s.controller.Run(gctx) }))
	if s.cfg.Telemetry.Enabled {
		srv := telemetry.NewServer(s.cfg.Telemetry, s.metrics, s.hub, s.decoder)
		g.Go(recovery.Guard("telemetry", func() error { return srv.Run(gctx) }))
	}

	// Loops return nil on cancellation, so the first failure cancels the
	// others and is what Wait reports.
	if err := g.Wait(); err != nil {
		log.Printf("Session %s: %v", s.ID, err)
		return err
	}
	log.Printf("Session %s: shut down", s.ID)
	return nil
}

func (s *Session) closeSource() {
	if err := s.src.Close(); err != nil {
		log.Printf("Warning: failed to close sensor: %v", err)
	}
	s.closeActuator()
}

func (s *Session) closeActuator() {
	if c, ok := s.act.(actuator.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("Warning: failed to close actuator: %v", err)
		}
	}
}

// Metrics returns the session's collectors.
func (s *Session) Metrics() *telemetry.Metrics {
	return s.metrics
}

// Hub returns the session's stream hub.
func (s *Session) Hub() *telemetry.Hub {
	return s.hub
}

// Gate returns the threshold gate.
func (s *Session) Gate() *gate.Gate {
	return s.gate
}

// Acquirer returns the acquisition loop.
func (s *Session) Acquirer() *acquire.Acquirer {
	return s.acquirer
}

// Decoder returns the decode loop.
func (s *Session) Decoder() *sample.Decoder {
	return s.decoder
}

// Controller returns the navigation loop. It is nil until Run resolved the
// calibration.
func (s *Session) Controller() *nav.Controller {
	return s.controller
}
