// Package sync contains helpers for waiting on goroutines.
package sync

import (
	"sync"
	"time"
)

// WaitGroupTimeout waits for wg, at most for timeout.
// It returns true when the timeout elapsed before wg was done.
// A non-positive timeout waits without limit.
func WaitGroupTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	if timeout <= 0 {
		wg.Wait()
		return false
	}

	wgClosed := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgClosed)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-wgClosed:
		return false
	case <-timer.C:
		return true
	}
}
