package sample

import (
	"fmt"

	"github.com/itohio/emgkb/pkg/acquire"
	"github.com/itohio/emgkb/pkg/frame"
)

// Demux decodes one channel per call, round-robin. The shared buffer is
// copied once at the start of each round so every channel of a round comes
// from the same frame.
type Demux struct {
	buf   *acquire.Buffer
	codec *frame.Codec

	snap       []byte
	idx        int
	lastSeq    uint64
	roundStale bool
	stale      uint64
}

// NewDemux creates a demultiplexer over buf.
func NewDemux(buf *acquire.Buffer, codec *frame.Codec) (*Demux, error) {
	if buf.Size() != codec.Size() {
		return nil, fmt.Errorf("%w: buffer holds %d bytes, codec needs %d", frame.ErrShortFrame, buf.Size(), codec.Size())
	}
	return &Demux{
		buf:   buf,
		codec: codec,
		snap:  make([]byte, codec.Size()),
	}, nil
}

// Next decodes the channel at the current index and advances the index.
// stale reports that the current round reuses a frame decoded in an earlier
// round; the value is still valid. The index does not move on ErrNotReady.
func (d *Demux) Next() (channel int, value float64, stale bool, err error) {
	if d.idx == 0 {
		seq, ok := d.buf.Snapshot(d.snap)
		if !ok {
			return 0, 0, false, ErrNotReady
		}
		d.roundStale = seq == d.lastSeq
		if d.roundStale {
			d.stale++
		}
		d.lastSeq = seq
	}

	channel = d.idx
	d.idx = (d.idx + 1) % d.codec.Channels()

	value, err = d.codec.Decode(d.snap, channel)
	if err != nil {
		return channel, 0, d.roundStale, fmt.Errorf("decode channel %d: %w", channel, err)
	}
	return channel, value, d.roundStale, nil
}

// Stale returns the number of rounds that reused an already decoded frame.
func (d *Demux) Stale() uint64 {
	return d.stale
}

// Channels returns the channel count.
func (d *Demux) Channels() int {
	return d.codec.Channels()
}
