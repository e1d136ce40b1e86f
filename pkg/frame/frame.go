// Package frame encodes and decodes the fixed-size binary frames streamed by
// the sensor. A frame carries one sample per channel, each SampleBytes wide:
// 2 bytes for a signed 16-bit integer, 4 bytes for an IEEE 754 float32.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

var (
	// ErrSampleWidth indicates an unsupported sample width.
	ErrSampleWidth = errors.New("sample width must be 2 or 4 bytes")
	// ErrChannel indicates a channel index outside the frame.
	ErrChannel = errors.New("channel out of range")
	// ErrShortFrame indicates a buffer smaller than the frame size.
	ErrShortFrame = errors.New("buffer shorter than frame")
	// ErrNotFinite indicates a float sample that is NaN or infinite.
	ErrNotFinite = errors.New("sample is not a finite number")
)

// Encoding is the numeric type of a single sample.
type Encoding int

const (
	Int16 Encoding = iota
	Float32
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case Int16:
		return "int16"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Codec decodes channel values from frames of a fixed layout.
type Codec struct {
	encoding    Encoding
	sampleBytes int
	channels    int
	order       binary.ByteOrder
}

// NewCodec creates a codec for frames of channels samples, each sampleBytes wide.
// byteOrder is "little" (the default when empty) or "big".
func NewCodec(sampleBytes, channels int, byteOrder string) (*Codec, error) {
	var enc Encoding
	switch sampleBytes {
	case 2:
		enc = Int16
	case 4:
		enc = Float32
	default:
		return nil, fmt.Errorf("%w, got %d", ErrSampleWidth, sampleBytes)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: need at least one channel, got %d", ErrChannel, channels)
	}

	var order binary.ByteOrder
	switch byteOrder {
	case "", "little":
		order = binary.LittleEndian
	case "big":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("unknown byte order %q", byteOrder)
	}

	return &Codec{
		encoding:    enc,
		sampleBytes: sampleBytes,
		channels:    channels,
		order:       order,
	}, nil
}

// Size returns the frame length in bytes.
func (c *Codec) Size() int {
	return c.sampleBytes * c.channels
}

// Channels returns the number of channels per frame.
func (c *Codec) Channels() int {
	return c.channels
}

// Encoding returns the sample encoding.
func (c *Codec) Encoding() Encoding {
	return c.encoding
}

// Decode returns the value of channel ch in buf.
func (c *Codec) Decode(buf []byte, ch int) (float64, error) {
	off, err := c.offset(buf, ch)
	if err != nil {
		return 0, err
	}

	b := buf[off : off+c.sampleBytes]
	switch c.encoding {
	case Int16:
		return float64(int16(c.order.Uint16(b))), nil
	default:
		f := math32.Float32frombits(c.order.Uint32(b))
		if math32.IsNaN(f) || math32.IsInf(f, 0) {
			return 0, fmt.Errorf("channel %d: %w", ch, ErrNotFinite)
		}
		return float64(f), nil
	}
}

// Encode writes v as channel ch into buf. Integer values are truncated toward
// zero and saturated to the int16 range. NaN and Inf are rejected and buf is
// left untouched.
func (c *Codec) Encode(buf []byte, ch int, v float64) error {
	off, err := c.offset(buf, ch)
	if err != nil {
		return err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("channel %d: %w", ch, ErrNotFinite)
	}

	b := buf[off : off+c.sampleBytes]
	switch c.encoding {
	case Int16:
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		c.order.PutUint16(b, uint16(int16(v)))
	default:
		c.order.PutUint32(b, math32.Float32bits(float32(v)))
	}
	return nil
}

func (c *Codec) offset(buf []byte, ch int) (int, error) {
	if ch < 0 || ch >= c.channels {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrChannel, ch, c.channels)
	}
	if len(buf) < c.Size() {
		return 0, fmt.Errorf("%w: %d < %d", ErrShortFrame, len(buf), c.Size())
	}
	return ch * c.sampleBytes, nil
}
