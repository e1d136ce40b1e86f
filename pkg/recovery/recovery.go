package recovery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
)

// ErrPanic marks an error produced from a recovered panic.
var ErrPanic = errors.New("panic")

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// HandlePanic should be deferred at the top of main().
// It prints the panic and stack trace and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		report(r)
		exit(1)
	}
}

// HandlePanicFunc is HandlePanic with a cleanup step before exiting.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		report(r)
		if cleanup != nil {
			cleanup()
		}
		exit(1)
	}
}

// Guard wraps a session loop so that a panic inside it is returned as an
// error wrapping ErrPanic instead of crashing the process. The stack trace is
// printed to stderr.
func Guard(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				report(r)
				err = fmt.Errorf("%s: %w: %v", name, ErrPanic, r)
			}
		}()
		return fn()
	}
}

func report(r any) {
	_, _ = fmt.Fprintf(stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
}
