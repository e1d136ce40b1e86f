package acquire

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_NotReadyUntilStore(t *testing.T) {
	b := NewBuffer(4)
	assert.Equal(t, 4, b.Size())
	assert.False(t, b.IsReady())

	dst := make([]byte, 4)
	_, ok := b.Snapshot(dst)
	assert.False(t, ok)

	b.Store([]byte{1, 2, 3, 4})
	assert.True(t, b.IsReady())

	select {
	case <-b.Ready():
	default:
		t.Fatal("Ready channel not closed after Store")
	}

	seq, ok := b.Snapshot(dst)
	require.True(t, ok)
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, []byte{1, 2, 3, 4}, dst)
}

func TestBuffer_SnapshotIsACopy(t *testing.T) {
	b := NewBuffer(2)
	src := []byte{7, 8}
	b.Store(src)
	src[0] = 0 // caller reuses its scratch buffer

	dst := make([]byte, 2)
	b.Snapshot(dst)
	assert.Equal(t, []byte{7, 8}, dst)

	dst[1] = 0
	again := make([]byte, 2)
	b.Snapshot(again)
	assert.Equal(t, []byte{7, 8}, again)
}

func TestBuffer_SequenceAdvances(t *testing.T) {
	b := NewBuffer(1)
	dst := make([]byte, 1)

	b.Store([]byte{1})
	s1, _ := b.Snapshot(dst)
	s2, _ := b.Snapshot(dst)
	assert.Equal(t, s1, s2, "no new frame, same sequence")

	b.Store([]byte{2})
	s3, _ := b.Snapshot(dst)
	assert.Greater(t, s3, s1)
}

// TestBuffer_NoTornReads writes frames whose bytes are all equal and checks
// that every snapshot is uniform.
func TestBuffer_NoTornReads(t *testing.T) {
	const size = 64
	b := NewBuffer(size)
	b.Store(make([]byte, size))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		frame := make([]byte, size)
		for k := byte(0); ; k++ {
			select {
			case <-stop:
				return
			default:
			}
			for i := range frame {
				frame[i] = k
			}
			b.Store(frame)
		}
	}()

	dst := make([]byte, size)
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		b.Snapshot(dst)
		for i := 1; i < size; i++ {
			if dst[i] != dst[0] {
				close(stop)
				wg.Wait()
				t.Fatalf("torn read: byte %d = %d, byte 0 = %d", i, dst[i], dst[0])
			}
		}
	}

	close(stop)
	wg.Wait()
}

func TestLifecycle(t *testing.T) {
	var l Lifecycle
	assert.Equal(t, NotStarted, l.State())
	assert.True(t, l.Start())
	assert.Equal(t, Running, l.State())
	assert.False(t, l.Start())
	l.Stop()
	assert.Equal(t, Stopped, l.State())
	assert.False(t, l.Start(), "a stopped loop cannot be restarted")

	assert.Equal(t, "not started", NotStarted.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "unknown", State(9).String())
}
