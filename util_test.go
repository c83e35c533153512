package atomcell

import (
	"fmt"
	"testing"
	"time"
)

// recoverError calls fn, returning the recovered panic value as an error.
func recoverError(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var ok bool
			if err, ok = r.(error); !ok {
				err = fmt.Errorf(`%v`, r)
			}
		}
	}()
	fn()
	return nil
}

// runWithin fails the test if fn doesn't return within timeout.
func runWithin(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf(`timed out after %s`, timeout)
	}
}
