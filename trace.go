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

package accessnode

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultTraceEntries = 32

// TraceEntry is one chip-select bracket as seen on the wire. SPI is full
// duplex so both directions are kept on the same entry.
type TraceEntry struct {
	Timestamp time.Time
	Note      string
	Out       []byte
	In        []byte
}

func (e TraceEntry) String() string {
	s := fmt.Sprintf("[%s] > %s", e.Timestamp.Format("15:04:05.000"), FormatHex(e.Out))
	if len(e.In) > 0 {
		s += " < " + FormatHex(e.In)
	}
	if e.Note != "" {
		s += " (" + e.Note + ")"
	}
	return s
}

// TraceableError carries the last bus transactions before a failure.
//
//	var te *accessnode.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("bus trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace renders the trace one transaction per line, oldest first.
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s:%s] bus trace (%d transactions):\n", e.Transport, e.Port, len(e.Trace))
	for _, entry := range e.Trace {
		_, _ = fmt.Fprintf(&sb, "  > %s", FormatHex(entry.Out))
		if len(entry.In) > 0 {
			_, _ = fmt.Fprintf(&sb, "  < %s", FormatHex(entry.In))
		}
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, " (%s)", entry.Note)
		}
		_ = sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatHex prints bytes as space separated upper-case hex, eliding
// anything past 32 bytes.
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	n := min(len(data), 32)
	var sb strings.Builder
	for i := range n {
		if i > 0 {
			_ = sb.WriteByte(' ')
		}
		_, _ = fmt.Fprintf(&sb, "%02X", data[i])
	}
	if len(data) > n {
		_, _ = fmt.Fprintf(&sb, " ... (%d bytes total)", len(data))
	}
	return sb.String()
}

// TraceBuffer is a fixed-size ring of recent bus transactions.
// It is not safe for concurrent use; a transport owns one.
type TraceBuffer struct {
	transport string
	port      string
	entries   []TraceEntry
	next      int
	full      bool
}

// NewTraceBuffer returns a ring holding the last size transactions.
func NewTraceBuffer(transport, port string, size int) *TraceBuffer {
	if size <= 0 {
		size = defaultTraceEntries
	}
	return &TraceBuffer{
		transport: transport,
		port:      port,
		entries:   make([]TraceEntry, size),
	}
}

// Record stores one transaction. Both slices are copied.
func (tb *TraceBuffer) Record(out, in []byte, note string) {
	tb.entries[tb.next] = TraceEntry{
		Timestamp: time.Now(),
		Note:      note,
		Out:       append([]byte(nil), out...),
		In:        append([]byte(nil), in...),
	}
	tb.next++
	if tb.next == len(tb.entries) {
		tb.next = 0
		tb.full = true
	}
}

// Entries returns the recorded transactions, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	if !tb.full {
		return append([]TraceEntry(nil), tb.entries[:tb.next]...)
	}
	out := make([]TraceEntry, 0, len(tb.entries))
	out = append(out, tb.entries[tb.next:]...)
	return append(out, tb.entries[:tb.next]...)
}

// Len reports how many transactions are held.
func (tb *TraceBuffer) Len() int {
	if tb.full {
		return len(tb.entries)
	}
	return tb.next
}

// WrapError attaches a snapshot of the ring to err. nil stays nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Transport: tb.transport,
		Port:      tb.port,
		Trace:     tb.Entries(),
	}
}

// Clear drops all recorded transactions.
func (tb *TraceBuffer) Clear() {
	clear(tb.entries)
	tb.next = 0
	tb.full = false
}

// HasTrace reports whether err carries a bus trace.
func HasTrace(err error) bool {
	var te *TraceableError
	return errors.As(err, &te)
}

// GetTrace extracts the bus trace from err, or nil.
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
