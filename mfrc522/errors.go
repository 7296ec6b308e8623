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

package mfrc522

import (
	"errors"
	"fmt"
)

// Card protocol errors. Every error returned by a card operation wraps one
// of these or a bus error from the transport.
var (
	ErrNoTag          = errors.New("no card in field")
	ErrNoAnswer       = errors.New("no answer to request")
	ErrTimeout        = errors.New("reader command timed out")
	ErrBufferOverflow = errors.New("reader FIFO overflow")
	ErrCollision      = errors.New("bit collision in field")
	ErrCRC            = errors.New("card response CRC mismatch")
	ErrProtocol       = errors.New("card protocol violation")
	ErrBitCount       = errors.New("unexpected response length")
	ErrChecksum       = errors.New("UID check byte mismatch")
	ErrAuth           = errors.New("card authentication failed")
	ErrNAK            = errors.New("card did not acknowledge")
	ErrCRCTimeout     = errors.New("CRC coprocessor timed out")
	ErrSessionState   = errors.New("operation not valid in current card session state")
)

// CardError reports a failed card operation.
type CardError struct {
	Err  error
	Op   string
	Bits int
}

func (e *CardError) Error() string {
	if e.Bits > 0 {
		return fmt.Sprintf("mfrc522 %s: %v (%d bits)", e.Op, e.Err, e.Bits)
	}
	return fmt.Sprintf("mfrc522 %s: %v", e.Op, e.Err)
}

func (e *CardError) Unwrap() error {
	return e.Err
}

// SessionError is returned when an operation is called out of order.
// Nothing is sent to the reader.
type SessionError struct {
	Op    string
	State State
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("mfrc522 %s: %v (state %s)", e.Op, ErrSessionState, e.State)
}

func (e *SessionError) Unwrap() error {
	return ErrSessionState
}

// Status is the three-valued outcome reported by card operations.
type Status int

const (
	StatusOK Status = iota
	StatusNoTag
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoTag:
		return "NO_TAG"
	default:
		return "ERROR"
	}
}

// StatusOf collapses an error from this package onto Status. A Request
// that got no answer is StatusError even though it wraps ErrNoTag.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNoAnswer):
		return StatusError
	case errors.Is(err, ErrNoTag):
		return StatusNoTag
	default:
		return StatusError
	}
}

func cardErr(op string, err error) error {
	return &CardError{Op: op, Err: err}
}

func bitsErr(op string, bits int) error {
	return &CardError{Op: op, Err: ErrBitCount, Bits: bits}
}
