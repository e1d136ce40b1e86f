package acquire

import "sync"

// Buffer holds the most recent raw frame. The writer copies a complete frame
// in and readers copy a complete frame out, so a reader never observes a
// frame that is half old and half new.
type Buffer struct {
	mu    sync.RWMutex
	data  []byte
	seq   uint64
	ready chan struct{}
	once  sync.Once
}

// NewBuffer creates a buffer for frames of size bytes.
func NewBuffer(size int) *Buffer {
	return &Buffer{
		data:  make([]byte, size),
		ready: make(chan struct{}),
	}
}

// Size returns the frame size in bytes.
func (b *Buffer) Size() int {
	return len(b.data)
}

// Store replaces the buffered frame with frame and marks the buffer ready.
func (b *Buffer) Store(frame []byte) {
	b.mu.Lock()
	copy(b.data, frame)
	b.seq++
	b.mu.Unlock()

	b.once.Do(func() { close(b.ready) })
}

// Snapshot copies the current frame into dst and returns its sequence number.
// ok is false until the first frame was stored.
func (b *Buffer) Snapshot(dst []byte) (seq uint64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.seq == 0 {
		return 0, false
	}
	copy(dst, b.data)
	return b.seq, true
}

// Ready is closed once the first frame has been stored.
func (b *Buffer) Ready() <-chan struct{} {
	return b.ready
}

// IsReady reports whether at least one frame has been stored.
func (b *Buffer) IsReady() bool {
	select {
	case <-b.ready:
		return true
	default:
		return false
	}
}
