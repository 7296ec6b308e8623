//go:build deadlock

// Package syncutil holds the lock types used by the accessnode packages.
// Building with -tags=deadlock swaps them for go-deadlock so a wedged
// receive loop or sender reports the goroutines holding the lock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// Mutex is a go-deadlock mutex under the deadlock tag.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a go-deadlock RWMutex under the deadlock tag.
type RWMutex struct {
	deadlock.RWMutex
}

// DetectionEnabled reports whether locks are instrumented.
const DetectionEnabled = true

// SetLockTimeout sets how long a lock may be waited on before go-deadlock
// reports it. Polling a wedged chip can hold a bus lock for a long time,
// so the node raises this above the library default.
func SetLockTimeout(d time.Duration) {
	deadlock.Opts.DeadlockTimeout = d
}
