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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/mfrc522"
)

// fakeClock is advanced by hand.
type fakeClock struct {
	t  time.Time
	mu sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// scriptedReader answers Request and AntiCollision from a queue of
// outcomes. With an empty queue the field is empty.
type scriptedReader struct {
	script   []outcome
	calls    []string
	initErr  error
	inits    int
	closed   bool
	haltErr  error
	selected [][4]byte
	mu       sync.Mutex
}

type outcome struct {
	err error
	uid [4]byte
}

// errEmptyField is what Request returns when nothing answers.
var errEmptyField = &mfrc522.CardError{
	Op:  "request",
	Err: fmt.Errorf("%w: %w", mfrc522.ErrNoAnswer, mfrc522.ErrNoTag),
}

var errBus = accessnode.NewTransportError("tx", "test", accessnode.ErrTransportWrite, accessnode.ErrorTypeTransient)

func card(uid ...byte) outcome {
	var o outcome
	copy(o.uid[:], uid)
	return o
}

func fail(err error) outcome {
	return outcome{err: err}
}

func (r *scriptedReader) push(o ...outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, o...)
}

func (r *scriptedReader) next() outcome {
	if len(r.script) == 0 {
		return outcome{err: errEmptyField}
	}
	o := r.script[0]
	r.script = r.script[1:]
	return o
}

func (r *scriptedReader) Request(byte) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "request")
	if len(r.script) == 0 || r.script[0].err != nil {
		return 0, r.next().err
	}
	return 0x0400, nil
}

func (r *scriptedReader) AntiCollision() ([4]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "anticollision")
	o := r.next()
	return o.uid, o.err
}

func (r *scriptedReader) Select(uid [4]byte) (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "select")
	r.selected = append(r.selected, uid)
	return 0x08, nil
}

func (r *scriptedReader) Halt() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "halt")
	return r.haltErr
}

func (r *scriptedReader) Init(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits++
	return r.initErr
}

func (r *scriptedReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

var errCallback = errors.New("callback failed")
