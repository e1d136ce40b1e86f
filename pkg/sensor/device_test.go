package sensor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itohio/emgkb/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort implements serial.Port, serving chunks and timeouts from a script.
type fakePort struct {
	mu      sync.Mutex
	chunks  [][]byte // nil entry = one timed out read
	readErr error
	flushed int
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.chunks) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	chunk := p.chunks[0]
	n := copy(b, chunk)
	if n < len(chunk) {
		p.chunks[0] = chunk[n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushed++
	p.chunks = nil
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetMode(*serial.Mode) error                          { return nil }
func (p *fakePort) Write(b []byte) (int, error)                         { return len(b), nil }
func (p *fakePort) Drain() error                                        { return nil }
func (p *fakePort) ResetOutputBuffer() error                            { return nil }
func (p *fakePort) SetDTR(bool) error                                   { return nil }
func (p *fakePort) SetRTS(bool) error                                   { return nil }
func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return &serial.ModemStatusBits{}, nil }
func (p *fakePort) SetReadTimeout(time.Duration) error                  { return nil }
func (p *fakePort) Break(time.Duration) error                           { return nil }

func newFakeSerial(port *fakePort) *Serial {
	d := New("fake", 0, 0)
	d.conn = port
	d.connected = true
	return d
}

func TestNew_Defaults(t *testing.T) {
	d := New("/dev/ttyUSB0", 0, 0)
	assert.Equal(t, DefaultBaudRate, d.baudRate)
	assert.Equal(t, DefaultReadTimeout, d.readTimeout)
	assert.False(t, d.IsConnected())
}

func TestDefaultBaudRate_MatchesConfig(t *testing.T) {
	assert.Equal(t, 115200, DefaultBaudRate, "firmware UART_BAUD_RATE")
	assert.Equal(t, DefaultBaudRate, config.Default().Serial.BaudRate)
}

func TestOpen_MissingPort(t *testing.T) {
	d := New("/dev/emgkb-does-not-exist", 9600, 0)
	err := d.Open()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, d.IsConnected())
}

func TestReadFrame_NotOpen(t *testing.T) {
	d := New("/dev/ttyUSB0", 9600, 0)
	err := d.ReadFrame(context.Background(), make([]byte, 4))
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, d.Flush(), ErrIO)
}

func TestReadFrame_AssemblesPartialReads(t *testing.T) {
	port := &fakePort{chunks: [][]byte{{0x01}, nil, {0x02, 0x03}, nil, nil, {0x04, 0x05}}}
	d := newFakeSerial(port)

	buf := make([]byte, 4)
	require.NoError(t, d.ReadFrame(context.Background(), buf))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf)

	// Leftover byte starts the next frame
	port.chunks = append(port.chunks, []byte{0x06, 0x07, 0x08})
	require.NoError(t, d.ReadFrame(context.Background(), buf))
	assert.Equal(t, []byte{0x05, 0x06, 0x07, 0x08}, buf)
}

func TestReadFrame_ReadError(t *testing.T) {
	port := &fakePort{readErr: errors.New("device unplugged")}
	d := newFakeSerial(port)

	err := d.ReadFrame(context.Background(), make([]byte, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestReadFrame_CancelledWhileIdle(t *testing.T) {
	d := newFakeSerial(&fakePort{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.ReadFrame(ctx, make([]byte, 4))
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadFrame did not observe cancellation")
	}
}

func TestFlushAndClose(t *testing.T) {
	port := &fakePort{chunks: [][]byte{{0xFF, 0xFF}}}
	d := newFakeSerial(port)

	require.NoError(t, d.Flush())
	assert.Equal(t, 1, port.flushed)
	assert.Empty(t, port.chunks)

	require.NoError(t, d.Close())
	assert.True(t, port.closed)
	assert.False(t, d.IsConnected())

	// Closing twice is a no-op
	require.NoError(t, d.Close())
}
