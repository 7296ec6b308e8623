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

package testing

import (
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/internal/syncutil"
)

// Transaction is one recorded chip-select bracket.
type Transaction struct {
	Timestamp time.Time
	Out       []byte
	In        []byte
}

// Recorder wraps a bus and keeps every transaction so tests can assert on
// what went over the wire.
type Recorder struct {
	bus accessnode.Bus
	log []Transaction
	mu  syncutil.Mutex
}

var _ accessnode.Bus = (*Recorder)(nil)

// NewRecorder records traffic to bus.
func NewRecorder(bus accessnode.Bus) *Recorder {
	return &Recorder{bus: bus}
}

// Tx implements accessnode.Bus.
func (r *Recorder) Tx(w, rd []byte) error {
	err := r.bus.Tx(w, rd)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, Transaction{
		Timestamp: time.Now(),
		Out:       append([]byte(nil), w...),
		In:        append([]byte(nil), rd...),
	})
	return err
}

// Delay implements accessnode.Bus.
func (r *Recorder) Delay(d time.Duration) {
	r.bus.Delay(d)
}

// Transactions returns the log.
func (r *Recorder) Transactions() []Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transaction(nil), r.log...)
}

// Len returns the number of recorded transactions.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}

// Count returns how many transactions started with the given bytes.
func (r *Recorder) Count(prefix ...byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.log {
		if hasPrefix(t.Out, prefix) {
			n++
		}
	}
	return n
}

// Since returns the transactions recorded after the first mark entries.
func (r *Recorder) Since(mark int) []Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mark >= len(r.log) {
		return nil
	}
	return append([]Transaction(nil), r.log[mark:]...)
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
