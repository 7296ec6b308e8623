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

// Package spi implements accessnode.Bus on top of periph.io SPI ports.
package spi

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/internal/syncutil"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// Both chips sample on the rising edge with an idle-low clock.
	mode = spi.Mode0
	bits = 8

	defaultTraceDepth = 32
)

type config struct {
	speed      physic.Frequency
	traceDepth int
	sleep      func(time.Duration)
}

// Option configures a Transport.
type Option func(*config)

// WithSpeed sets the SPI clock. Both chips accept up to 10 MHz.
func WithSpeed(f physic.Frequency) Option {
	return func(c *config) { c.speed = f }
}

// WithTraceDepth sets how many transactions are kept for error traces.
func WithTraceDepth(n int) Option {
	return func(c *config) { c.traceDepth = n }
}

// WithSleep replaces time.Sleep for Delay. Tests use it to skip reset waits.
func WithSleep(fn func(time.Duration)) Option {
	return func(c *config) { c.sleep = fn }
}

func newConfig(opts []Option) config {
	cfg := config{
		speed:      accessnode.DefaultSPISpeed * physic.Hertz,
		traceDepth: defaultTraceDepth,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Transport is an accessnode.Bus over one SPI chip select.
type Transport struct {
	port     spi.PortCloser
	conn     spi.Conn
	trace    *accessnode.TraceBuffer
	sleep    func(time.Duration)
	portName string
	mu       syncutil.Mutex
	closed   bool
}

var _ accessnode.Bus = (*Transport)(nil)

// New initializes the periph host drivers and opens portName, which may be
// a spireg name such as "SPI0.1" or a spidev path such as "/dev/spidev0.1".
func New(portName string, opts ...Option) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	if err := checkDeviceNode(portName); err != nil {
		return nil, openError(portName, err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}
	return NewFromPort(port, portName, opts...)
}

// openError classifies a failed access check on a spidev node. Both
// outcomes are permanent: a missing node will not appear by retrying.
func openError(portName string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", accessnode.NewDeviceNotFoundError("open", portName), err)
	}
	return accessnode.NewTransportError("open", portName, err, accessnode.ErrorTypePermanent)
}

// NewFromPort connects an already opened port. The Transport owns port and
// closes it on Close.
func NewFromPort(port spi.PortCloser, portName string, opts ...Option) (*Transport, error) {
	cfg := newConfig(opts)
	conn, err := port.Connect(cfg.speed, mode, bits)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI %s: %w", portName, err)
	}
	t := newTransport(conn, portName, cfg)
	t.port = port
	accessnode.Debugf("spi: %s connected at %s", portName, cfg.speed)
	return t, nil
}

// NewFromConn wraps an existing connection. Close does not close conn.
func NewFromConn(conn spi.Conn, opts ...Option) *Transport {
	return newTransport(conn, conn.String(), newConfig(opts))
}

func newTransport(conn spi.Conn, portName string, cfg config) *Transport {
	return &Transport{
		conn:     conn,
		portName: portName,
		sleep:    cfg.sleep,
		trace:    accessnode.NewTraceBuffer("spi", portName, cfg.traceDepth),
	}
}

// Tx runs one chip-select bracket. Failures come back as a
// *accessnode.TransportError wrapped in a *accessnode.TraceableError
// holding the transactions that led up to it.
func (t *Transport) Tx(w, r []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return accessnode.NewTransportClosedError("tx", t.portName)
	}
	if r != nil && len(r) != len(w) {
		return accessnode.NewTransportError("tx", t.portName,
			fmt.Errorf("%w: read buffer %d bytes, write %d", accessnode.ErrInvalidParameter, len(r), len(w)),
			accessnode.ErrorTypePermanent)
	}
	if len(w) == 0 {
		return nil
	}
	if l, ok := t.conn.(conn.Limits); ok {
		if limit := l.MaxTxSize(); limit > 0 && len(w) > limit {
			return accessnode.NewDataTooLargeError("tx", t.portName)
		}
	}

	err := t.conn.Tx(w, r)
	if err != nil {
		t.trace.Record(w, nil, "FAILED: "+err.Error())
		if errors.Is(err, syscall.ETIMEDOUT) || os.IsTimeout(err) {
			return t.trace.WrapError(accessnode.NewTimeoutError("tx", t.portName))
		}
		return t.trace.WrapError(&accessnode.TransportError{
			Op:        "tx",
			Port:      t.portName,
			Err:       fmt.Errorf("%w: %w", accessnode.ErrTransportWrite, err),
			Type:      accessnode.ErrorTypeTransient,
			Retryable: true,
		})
	}
	t.trace.Record(w, r, "")
	return nil
}

// Delay blocks for d.
func (t *Transport) Delay(d time.Duration) {
	t.sleep(d)
}

// Trace returns the most recent transactions, oldest first.
func (t *Transport) Trace() []accessnode.TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trace.Entries()
}

// Close releases the port. Later Tx calls fail with ErrTransportClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.port != nil {
		if err := t.port.Close(); err != nil {
			return fmt.Errorf("SPI close failed: %w", err)
		}
	}
	return nil
}

// IsConnected reports whether the transport has not been closed.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

func (t *Transport) String() string {
	return "spi:" + t.portName
}
