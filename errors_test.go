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
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "transport timeout", err: ErrTransportTimeout, want: true},
		{name: "transport read", err: ErrTransportRead, want: true},
		{name: "transport write", err: ErrTransportWrite, want: true},
		{name: "poll budget", err: ErrPollBudgetExpired, want: true},
		{name: "wrapped timeout", err: fmt.Errorf("ctx: %w", ErrTransportTimeout), want: true},
		{name: "invalid parameter", err: ErrInvalidParameter, want: false},
		{name: "data too large", err: ErrDataTooLarge, want: false},
		{name: "transport error transient", err: NewTransportError("read", "spi0", ErrTransportRead, ErrorTypeTransient), want: true},
		{name: "transport error permanent", err: NewDataTooLargeError("send", "spi0"), want: false},
		{name: "poll budget error", err: NewPollBudgetError("wait", 10), want: true},
		{name: "random error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "closed", err: ErrTransportClosed, want: true},
		{name: "not found", err: ErrDeviceNotFound, want: true},
		{name: "eof", err: io.EOF, want: true},
		{name: "EIO", err: fmt.Errorf("ioctl: %w", syscall.EIO), want: true},
		{name: "ENODEV", err: syscall.ENODEV, want: true},
		{name: "EAGAIN", err: syscall.EAGAIN, want: false},
		{name: "permanent transport error", err: NewTransportClosedError("tx", "spi0"), want: true},
		{name: "timeout", err: NewTimeoutError("tx", "spi0"), want: false},
		{name: "poll budget", err: NewPollBudgetError("wait", 1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError("phy read", "/dev/spidev0.0")
	assert.Equal(t, "phy read /dev/spidev0.0: transport timeout", err.Error())
	assert.True(t, err.Retryable)
	assert.Equal(t, ErrorTypeTimeout, err.Type)
	assert.ErrorIs(t, err, ErrTransportTimeout)

	noPort := NewPollBudgetError("crc", 255)
	assert.Equal(t, "crc: hardware poll budget exhausted after 255 polls", noPort.Error())
	assert.ErrorIs(t, noPort, ErrPollBudgetExpired)

	var te *TransportError
	assert.ErrorAs(t, fmt.Errorf("outer: %w", err), &te)
	assert.Equal(t, "phy read", te.Op)
}

func TestErrorTypeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "transient", ErrorTypeTransient.String())
	assert.Equal(t, "permanent", ErrorTypePermanent.String())
	assert.Equal(t, "timeout", ErrorTypeTimeout.String())
	assert.Equal(t, "ErrorType(9)", ErrorType(9).String())
}
