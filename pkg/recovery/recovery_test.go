package recovery

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture redirects stderr and exit for the duration of a test.
func capture(t *testing.T) (*bytes.Buffer, *int) {
	t.Helper()
	var out bytes.Buffer
	code := -1

	oldStderr, oldExit := stderr, exit
	stderr = &out
	exit = func(c int) { code = c }
	t.Cleanup(func() {
		stderr, exit = oldStderr, oldExit
	})
	return &out, &code
}

func TestHandlePanic_NoPanic(t *testing.T) {
	out, code := capture(t)
	func() {
		defer HandlePanic()
	}()
	assert.Equal(t, -1, *code)
	assert.Empty(t, out.String())
}

func TestHandlePanic_ExitsOnPanic(t *testing.T) {
	out, code := capture(t)
	func() {
		defer HandlePanic()
		panic("test panic")
	}()
	assert.Equal(t, 1, *code)
	assert.Contains(t, out.String(), "FATAL: test panic")
	assert.Contains(t, out.String(), "Stack trace")
}

func TestHandlePanicFunc(t *testing.T) {
	_, code := capture(t)
	cleaned := false
	func() {
		defer HandlePanicFunc(func() { cleaned = true })
		panic("boom")
	}()
	assert.True(t, cleaned)
	assert.Equal(t, 1, *code)

	cleaned = false
	func() {
		defer HandlePanicFunc(func() { cleaned = true })
	}()
	assert.False(t, cleaned, "cleanup only runs on panic")

	assert.NotPanics(t, func() {
		func() {
			defer HandlePanicFunc(nil)
			panic("nil cleanup")
		}()
	})
}

func TestGuard(t *testing.T) {
	out, code := capture(t)

	err := Guard("decoder", func() error { panic("index out of range") })()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "decoder")
	assert.Contains(t, err.Error(), "index out of range")
	assert.Contains(t, out.String(), "Stack trace")
	assert.Equal(t, -1, *code, "guard does not exit")

	want := errors.New("plain failure")
	assert.Equal(t, want, Guard("x", func() error { return want })())
	assert.NoError(t, Guard("x", func() error { return nil })())
}
