package sensor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/emgkb/pkg/config"
	"github.com/itohio/emgkb/pkg/frame"
)

// Mock simulates an EMG sensor for testing and development.
// It produces a resting baseline with noise and, once per burst period, a
// contraction on a rotating set of channels: channel 0 alone, channel 1 alone,
// then all channels together.
type Mock struct {
	cfg   *config.MockConfig
	codec *frame.Codec

	mu        sync.Mutex
	connected bool
	startTime time.Time
	next      time.Time
	frames    int
	failAfter int // 0 = never fail
}

// NewMock creates a new mocked sensor producing frames laid out by codec.
func NewMock(cfg *config.MockConfig, codec *frame.Codec) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	return &Mock{
		cfg:   cfg,
		codec: codec,
	}
}

// FailAfter makes ReadFrame fail with ErrIO after n successful frames,
// simulating a cable being pulled.
func (m *Mock) FailAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
}

// Open simulates connecting to the sensor.
func (m *Mock) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("%w: mock already open", ErrConnection)
	}

	m.connected = true
	m.startTime = time.Now()
	m.next = m.startTime
	m.frames = 0

	return nil
}

// ReadFrame waits for the next sample period and fills buf with a frame.
func (m *Mock) ReadFrame(ctx context.Context, buf []byte) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return fmt.Errorf("%w: mock not open", ErrIO)
	}
	if m.failAfter > 0 && m.frames >= m.failAfter {
		m.mu.Unlock()
		return fmt.Errorf("%w: mock disconnected after %d frames", ErrIO, m.frames)
	}
	m.next = m.next.Add(m.cfg.SampleRate)
	wait := time.Until(m.next)
	m.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := time.Since(m.startTime)
	for ch := 0; ch < m.codec.Channels(); ch++ {
		if err := m.codec.Encode(buf, ch, m.generateValue(ch, elapsed)); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	m.frames++

	return nil
}

// Flush restarts the frame clock so no backlog of frames is produced.
func (m *Mock) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = time.Now()
	return nil
}

// Close stops the mocked sensor.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Frames returns the number of frames produced so far.
func (m *Mock) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// IsConnected returns whether the mock is open.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// generateValue generates a single simulated sample for channel ch.
func (m *Mock) generateValue(ch int, elapsed time.Duration) float64 {
	// Noise: two incommensurate sinusoids, phase shifted per channel
	t := float64(elapsed.Nanoseconds())
	noise := (math.Sin(t*0.001+float64(ch)) + math.Cos(t*0.0013+float64(ch))) * m.cfg.NoiseLevel * 0.5

	value := m.cfg.Baseline + noise
	if m.burstActive(ch, elapsed) {
		value += m.cfg.BurstLevel
	}
	return value
}

// burstActive reports whether channel ch is contracting at elapsed.
func (m *Mock) burstActive(ch int, elapsed time.Duration) bool {
	if m.cfg.BurstPeriod <= 0 || m.cfg.BurstLevel == 0 {
		return false
	}

	cycle := int(elapsed / m.cfg.BurstPeriod)
	if elapsed%m.cfg.BurstPeriod >= m.cfg.BurstDuration {
		return false
	}

	channels := m.codec.Channels()
	pattern := cycle % (channels + 1)
	if pattern == channels {
		return true // all channels
	}
	return pattern == ch
}
