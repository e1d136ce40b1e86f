package sample

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itohio/emgkb/pkg/acquire"
	"github.com/itohio/emgkb/pkg/config"
	"github.com/itohio/emgkb/pkg/frame"
	"github.com/itohio/emgkb/pkg/gate"
	"github.com/itohio/emgkb/pkg/telemetry"
)

// Decoder periodically decodes the shared buffer, filters each channel and
// feeds the threshold gate. It never blocks on the sensor.
type Decoder struct {
	acquire.Lifecycle

	buf     *acquire.Buffer
	demux   *Demux
	filters *Filters
	gate    *gate.Gate
	windows []*Window
	period  time.Duration

	metrics *telemetry.Metrics
	hub     *telemetry.Hub

	lastTick time.Time
	interval time.Duration
}

// NewDecoder creates a decoder for the given buffer layout.
func NewDecoder(cfg config.FilterConfig, buf *acquire.Buffer, codec *frame.Codec, g *gate.Gate, metrics *telemetry.Metrics, hub *telemetry.Hub) (*Decoder, error) {
	demux, err := NewDemux(buf, codec)
	if err != nil {
		return nil, err
	}
	filters, err := NewFilters(cfg.Policy, cfg.Alpha, codec.Channels())
	if err != nil {
		return nil, err
	}
	if g.Channels() != codec.Channels() {
		return nil, fmt.Errorf("gate has %d channels, frame has %d", g.Channels(), codec.Channels())
	}
	if cfg.DecodePeriod <= 0 {
		return nil, fmt.Errorf("decode period must be positive, got %v", cfg.DecodePeriod)
	}

	windows := make([]*Window, codec.Channels())
	for i := range windows {
		windows[i] = NewWindow(cfg.HistoryLength)
	}

	return &Decoder{
		buf:     buf,
		demux:   demux,
		filters: filters,
		gate:    g,
		windows: windows,
		period:  cfg.DecodePeriod,
		metrics: metrics,
		hub:     hub,
	}, nil
}

// Run decodes one channel every period until ctx is cancelled. It waits for
// the first acquired frame before decoding.
func (d *Decoder) Run(ctx context.Context) error {
	if !d.Start() {
		return acquire.ErrAlreadyStarted
	}
	defer d.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-d.buf.Ready():
	}

	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Decoder stopped (%d stale rounds)", d.demux.Stale())
			return nil
		case now := <-ticker.C:
			if _, err := d.Step(now); err != nil && !errors.Is(err, ErrNotReady) {
				log.Printf("Warning: %v", err)
			}
		}
	}
}

// Step decodes and filters the next channel. now is the tick time used for
// interval measurement.
func (d *Decoder) Step(now time.Time) (Sample, error) {
	if !d.lastTick.IsZero() {
		d.interval = now.Sub(d.lastTick)
		d.metrics.DecodeTick(d.interval)
	}
	d.lastTick = now

	ch, raw, stale, err := d.demux.Next()
	if err != nil {
		return Sample{}, err
	}
	if stale && ch == 0 {
		d.metrics.StaleSnapshot()
	}

	filtered := d.filters.Apply(ch, raw)
	high := d.gate.Update(ch, filtered)
	d.windows[ch].Push(filtered)

	d.metrics.Filtered(ch, filtered)
	d.metrics.GateHigh(ch, high)
	if d.hub.Subscribers() > 0 {
		mean, stddev := d.windows[ch].Stats()
		d.hub.PublishSample(telemetry.Sample{
			Channel:    ch,
			Raw:        raw,
			Filtered:   filtered,
			High:       d.gate.Snapshot(),
			IntervalMS: float64(d.interval) / float64(time.Millisecond),
			Mean:       mean,
			StdDev:     stddev,
		})
	}
	Debugf("decode ch=%d raw=%.1f filtered=%.1f high=%v stale=%v interval=%v", ch, raw, filtered, high, stale, d.interval)

	return Sample{
		Timestamp: now,
		Channel:   ch,
		Raw:       raw,
		Filtered:  filtered,
		High:      high,
		Stale:     stale,
	}, nil
}

// Window returns the rolling history of a channel.
func (d *Decoder) Window(channel int) *Window {
	return d.windows[channel]
}

// Filters returns the per-channel filter state.
func (d *Decoder) Filters() *Filters {
	return d.filters
}

// Interval returns the measured time between the last two steps.
func (d *Decoder) Interval() time.Duration {
	return d.interval
}

// Stale returns the number of rounds that reused an already decoded frame.
func (d *Decoder) Stale() uint64 {
	return d.demux.Stale()
}
