package acquire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itohio/emgkb/pkg/sensor"
	"github.com/itohio/emgkb/pkg/telemetry"
)

// ErrAlreadyStarted indicates Run was called more than once.
var ErrAlreadyStarted = errors.New("acquirer already started")

// Acquirer continuously reads frames from a sensor into a Buffer.
type Acquirer struct {
	Lifecycle

	src        sensor.Source
	buf        *Buffer
	flushDelay time.Duration
	metrics    *telemetry.Metrics
}

// New creates an Acquirer. Input received during flushDelay after Run starts
// is discarded before the first frame is read.
func New(src sensor.Source, buf *Buffer, flushDelay time.Duration, metrics *telemetry.Metrics) *Acquirer {
	return &Acquirer{
		src:        src,
		buf:        buf,
		flushDelay: flushDelay,
		metrics:    metrics,
	}
}

// Run reads frames until ctx is cancelled or the sensor fails. A cancelled
// context returns nil; a read failure is returned wrapped and is not retried.
// The sensor is not closed by Run.
func (a *Acquirer) Run(ctx context.Context) error {
	if !a.Start() {
		return ErrAlreadyStarted
	}
	defer a.Stop()

	if a.flushDelay > 0 {
		timer := time.NewTimer(a.flushDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}

	if err := a.src.Flush(); err != nil {
		return fmt.Errorf("flush sensor input: %w", err)
	}

	scratch := make([]byte, a.buf.Size())
	first := true
	for {
		if err := a.src.ReadFrame(ctx, scratch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("acquire frame: %w", err)
		}

		a.buf.Store(scratch)
		a.metrics.FrameRead()

		if first {
			log.Printf("Receiving sensor data (%d byte frames)", len(scratch))
			first = false
		}
	}
}
