package sensor

import (
	"context"
	"errors"
)

var (
	// ErrConnection indicates the sensor could not be opened.
	ErrConnection = errors.New("sensor connection failed")
	// ErrIO indicates a read failure after the sensor was opened.
	ErrIO = errors.New("sensor read failed")
)

// Source defines the interface for sensor frame sources (real or mocked).
type Source interface {
	// Open connects to the sensor. Errors wrap ErrConnection.
	Open() error
	// ReadFrame fills buf with the next frame. It returns ctx.Err() once ctx
	// is done and an error wrapping ErrIO when the link fails.
	ReadFrame(ctx context.Context, buf []byte) error
	// Flush discards input received but not yet read.
	Flush() error
	// Close releases the sensor.
	Close() error
}

// Ensure Serial implements Source.
var _ Source = (*Serial)(nil)

// Ensure Mock implements Source.
var _ Source = (*Mock)(nil)
