//go:build !deadlock

// Package syncutil holds the lock types used by the accessnode packages.
// Building with -tags=deadlock swaps them for go-deadlock so a wedged
// receive loop or sender reports the goroutines holding the lock.
package syncutil

import (
	"sync"
	"time"
)

// Mutex is a plain sync.Mutex.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a plain sync.RWMutex.
type RWMutex struct {
	sync.RWMutex
}

// DetectionEnabled reports whether locks are instrumented.
const DetectionEnabled = false

// SetLockTimeout is a no-op without the deadlock tag.
func SetLockTimeout(time.Duration) {}
