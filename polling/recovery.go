// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package polling

import (
	"context"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/internal/syncutil"
)

// Recoverer brings a reader back after repeated bus failures or a stall.
type Recoverer interface {
	// AttemptRecovery tries to recover the reader.
	// Returns nil if recovery was successful, error otherwise.
	AttemptRecovery(ctx context.Context) error

	// Reader returns the current reader (may change after reconnection)
	Reader() CardReader
}

// Initializer is a reader that can be re-initialized in place.
type Initializer interface {
	Init(ctx context.Context) error
}

// ReopenFunc reopens the bus and returns a fresh, initialized reader.
type ReopenFunc func(ctx context.Context) (CardReader, error)

// DefaultRecoverer implements a tiered recovery strategy:
// 1. Re-Init the reader in place if it supports it
// 2. Full reconnection via user-provided reopen function
type DefaultRecoverer struct {
	reader      CardReader
	reopenFunc  ReopenFunc
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewDefaultRecoverer creates a recoverer with tiered recovery strategy.
// If reopenFunc is nil, only re-initialization will be attempted.
func NewDefaultRecoverer(
	reader CardReader,
	reopenFunc ReopenFunc,
	backoff time.Duration,
	maxAttempts int,
) *DefaultRecoverer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &DefaultRecoverer{
		reader:      reader,
		reopenFunc:  reopenFunc,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// AttemptRecovery implements tiered recovery:
// 1. Re-Init the current reader
// 2. If that fails and reopenFunc is provided, try full reconnection
func (r *DefaultRecoverer) AttemptRecovery(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lastErr := accessnode.ErrDeviceNotReady

	for attempt := range r.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
		}

		if in, ok := r.reader.(Initializer); ok {
			err := in.Init(ctx)
			if err == nil {
				accessnode.Debugf("polling: reader re-initialized on attempt %d", attempt+1)
				return nil
			}
			lastErr = err
		}

		if r.reopenFunc != nil {
			if c, ok := r.reader.(accessnode.Closer); ok {
				_ = c.Close()
			}
			reader, err := r.reopenFunc(ctx)
			if err == nil {
				accessnode.Debugf("polling: reader reopened on attempt %d", attempt+1)
				r.reader = reader
				return nil
			}
			lastErr = err
		}
	}

	return lastErr
}

// Reader returns the current reader.
// This may return a different reader after a successful reconnection.
func (r *DefaultRecoverer) Reader() CardReader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reader
}
