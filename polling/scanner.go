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

// Package polling runs the card reader loop: it looks for a card every
// cycle, reports each new UID once, sends a periodic alive signal and
// forgets the last UID on a timer so a card left on the reader is
// reported again.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/internal/syncutil"
	"github.com/ZaparooProject/go-accessnode/mfrc522"
)

// CardReader is the part of the reader driver the scanner needs.
// *mfrc522.Device implements it.
type CardReader interface {
	Request(mode byte) (uint16, error)
	AntiCollision() ([4]byte, error)
	Select(uid [4]byte) (byte, error)
	Halt() error
}

var _ CardReader = (*mfrc522.Device)(nil)

// ErrTooManyBusErrors is returned by Run when the reader kept failing on
// the bus and could not be recovered.
var ErrTooManyBusErrors = errors.New("too many consecutive bus errors")

// Metrics counts scanner activity.
type Metrics struct {
	Cycles         int64
	CardsReported  int64
	AliveSent      int64
	BusErrors      int64
	CallbackErrors int64
	Recoveries     int64
}

// Scanner drives a CardReader.
type Scanner struct {
	reader    CardReader
	recoverer Recoverer
	config    *Config
	now       func() time.Time

	// OnCard runs once for every newly seen UID.
	OnCard func(uid [4]byte) error
	// OnAlive runs every AliveInterval.
	OnAlive func() error
	// OnTick runs once per cycle after the card phase.
	OnTick func(ctx context.Context) error

	state      CardState
	stateMutex syncutil.RWMutex
	busErrors  int

	cycles         atomic.Int64
	cardsReported  atomic.Int64
	aliveSent      atomic.Int64
	busErrorsTotal atomic.Int64
	callbackErrors atomic.Int64
	recoveries     atomic.Int64
}

// NewScanner returns a scanner for reader. A nil config uses
// DefaultConfig.
func NewScanner(reader CardReader, config *Config) *Scanner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scanner{
		reader: reader,
		config: config,
		now:    time.Now,
	}
}

// SetRecoverer installs the recovery strategy used after MaxBusErrors
// consecutive bus failures or a detected stall.
func (s *Scanner) SetRecoverer(r Recoverer) {
	s.recoverer = r
}

// Run polls until ctx is cancelled or the reader cannot be recovered.
func (s *Scanner) Run(ctx context.Context) error {
	s.stateMutex.Lock()
	s.state.Reset(s.now())
	s.stateMutex.Unlock()

	var timer *time.Timer
	if s.config.PollInterval > 0 {
		timer = time.NewTimer(s.config.PollInterval)
		defer timer.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.cycle(ctx); err != nil {
			return err
		}
		if timer == nil {
			continue
		}
		timer.Reset(s.config.PollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// cycle runs one card phase, the tick callback and both timers.
func (s *Scanner) cycle(ctx context.Context) error {
	s.cycles.Add(1)
	now := s.now()

	s.stateMutex.Lock()
	elapsed := now.Sub(s.state.LastCycle)
	s.state.LastCycle = now
	s.stateMutex.Unlock()
	if s.config.SleepRecovery.DetectSleep(elapsed, s.config.PollInterval) {
		accessnode.Debugf("polling: %v since last cycle, recovering reader", elapsed)
		if err := s.recover(ctx); err != nil {
			return err
		}
	}

	switch err := s.scanCard(now); {
	case err == nil:
		s.busErrors = 0
	case isBusError(err):
		if err := s.handleBusError(ctx, err); err != nil {
			return err
		}
	default:
		s.busErrors = 0
		if !errors.Is(err, mfrc522.ErrNoTag) {
			accessnode.Debugf("polling: card phase: %v", err)
		}
	}

	if s.OnTick != nil {
		s.safeCall("OnTick", func() error { return s.OnTick(ctx) })
	}

	s.stateMutex.Lock()
	aliveDue := s.state.AliveDue(now, s.config.AliveInterval)
	if aliveDue {
		s.state.LastAlive = now
		s.state.Forget()
	}
	if s.state.ClearDue(now, s.config.ClearInterval) {
		s.state.LastClear = now
		s.state.Forget()
	}
	s.stateMutex.Unlock()

	if aliveDue {
		s.aliveSent.Add(1)
		if s.OnAlive != nil {
			s.safeCall("OnAlive", s.OnAlive)
		}
	}
	return nil
}

// scanCard looks for a card and reports it if it is new. A missing card
// or a garbled answer is not an error; it is simply retried next cycle.
func (s *Scanner) scanCard(now time.Time) error {
	reader := s.currentReader()
	if _, err := reader.Request(mfrc522.PICCReqIdle); err != nil {
		return err
	}
	uid, err := reader.AntiCollision()
	if err != nil {
		return err
	}

	s.stateMutex.Lock()
	isNew := s.state.Seen(uid, now)
	s.stateMutex.Unlock()

	if isNew {
		accessnode.Debugf("polling: card % X", uid[:])
		s.cardsReported.Add(1)
		if s.OnCard != nil {
			s.safeCall("OnCard", func() error { return s.OnCard(uid) })
		}
	}

	if s.config.SelectAndHalt {
		if _, err := reader.Select(uid); err != nil {
			return err
		}
		return reader.Halt()
	}
	return nil
}

func (s *Scanner) handleBusError(ctx context.Context, err error) error {
	s.busErrorsTotal.Add(1)
	s.busErrors++
	accessnode.Debugf("polling: bus error %d/%d: %v", s.busErrors, s.config.MaxBusErrors, err)
	if s.config.MaxBusErrors <= 0 || s.busErrors < s.config.MaxBusErrors {
		return nil
	}
	if s.recoverer == nil {
		return fmt.Errorf("%w: %w", ErrTooManyBusErrors, err)
	}
	if recErr := s.recover(ctx); recErr != nil {
		return fmt.Errorf("%w: recovery failed: %w", ErrTooManyBusErrors, recErr)
	}
	return nil
}

func (s *Scanner) recover(ctx context.Context) error {
	if s.recoverer == nil {
		return nil
	}
	if err := s.recoverer.AttemptRecovery(ctx); err != nil {
		return err
	}
	s.recoveries.Add(1)
	s.busErrors = 0
	s.stateMutex.Lock()
	s.state.Forget()
	s.stateMutex.Unlock()
	return nil
}

func (s *Scanner) currentReader() CardReader {
	if s.recoverer != nil {
		return s.recoverer.Reader()
	}
	return s.reader
}

// safeCall runs a callback with panic recovery. Callback failures are
// counted and logged but never stop the scanner.
func (s *Scanner) safeCall(name string, fn func() error) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s callback panicked: %v", name, r)
			}
		}()
		err = fn()
	}()
	if err != nil {
		s.callbackErrors.Add(1)
		accessnode.Debugf("polling: %s failed: %v", name, err)
	}
}

// isBusError separates a failing reader or bus from an empty field or a
// garbled card answer.
func isBusError(err error) bool {
	if errors.Is(err, mfrc522.ErrNoTag) {
		return false
	}
	var te *accessnode.TransportError
	return errors.As(err, &te) || accessnode.IsFatal(err)
}

// State returns a snapshot of the card state.
func (s *Scanner) State() CardState {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.state
}

// Metrics returns current counters.
func (s *Scanner) Metrics() Metrics {
	return Metrics{
		Cycles:         s.cycles.Load(),
		CardsReported:  s.cardsReported.Load(),
		AliveSent:      s.aliveSent.Load(),
		BusErrors:      s.busErrorsTotal.Load(),
		CallbackErrors: s.callbackErrors.Load(),
		Recoveries:     s.recoveries.Load(),
	}
}
