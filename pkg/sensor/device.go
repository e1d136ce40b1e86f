package sensor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the baud rate of the EMG sensor firmware.
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds a single blocking read.
	DefaultReadTimeout = 500 * time.Millisecond
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reads binary frames from a serial-attached sensor.
type Serial struct {
	port        string
	baudRate    int
	readTimeout time.Duration

	mu        sync.RWMutex
	conn      serial.Port
	connected bool
}

// New creates a new Serial source with the specified port, baud rate and read timeout.
func New(port string, baudRate int, readTimeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	return &Serial{
		port:        port,
		baudRate:    baudRate,
		readTimeout: readTimeout,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Open opens the serial port.
func (d *Serial) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("%w: %s already open", ErrConnection, d.port)
	}

	log.Printf("Trying to connect to %s at %d baud", d.port, d.baudRate)

	mode := &serial.Mode{
		BaudRate: d.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("%w: open %s at %d baud: %w", ErrConnection, d.port, d.baudRate, err)
	}

	if err := port.SetReadTimeout(d.readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("%w: set read timeout on %s: %w", ErrConnection, d.port, err)
	}

	d.conn = port
	d.connected = true
	log.Printf("Connected to %s at %d baud", d.port, d.baudRate)

	return nil
}

// ReadFrame blocks until buf is filled. Each underlying read is bounded by the
// read timeout, after which ctx is checked again.
func (d *Serial) ReadFrame(ctx context.Context, buf []byte) error {
	d.mu.RLock()
	conn := d.conn
	d.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("%w: %s not open", ErrIO, d.port)
	}

	n := 0
	for n < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}

		m, err := conn.Read(buf[n:])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: read %s: %w", ErrIO, d.port, err)
		}
		// m == 0 means the read timed out
		n += m
	}

	return nil
}

// Flush discards pending input.
func (d *Serial) Flush() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.conn == nil {
		return fmt.Errorf("%w: %s not open", ErrIO, d.port)
	}
	if err := d.conn.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w: flush %s: %w", ErrIO, d.port, err)
	}
	return nil
}

// Close closes the serial port.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	err := d.conn.Close()
	d.conn = nil
	d.connected = false

	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", d.port, err)
	}
	log.Printf("Disconnected from %s", d.port)
	return nil
}

// IsConnected returns whether the port is currently open.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}
