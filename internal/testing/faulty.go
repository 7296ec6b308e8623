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
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/internal/syncutil"
)

// ErrInjectedFault is returned by FaultyBus when it drops a transaction.
var ErrInjectedFault = errors.New("injected bus fault")

// FaultConfig describes how a FaultyBus misbehaves.
type FaultConfig struct {
	// FailAfter fails every transaction once this many have succeeded.
	// Zero disables it.
	FailAfter int
	// FailRate is the probability in [0,1] that a transaction fails.
	FailRate float64
	// FlipRate is the probability that one bit of the read buffer flips.
	FlipRate float64
	// Seed makes failures reproducible. Zero picks a random seed.
	Seed uint64
}

// FaultyBus wraps a bus and injects failures and bit errors, standing in
// for loose jumper wires and long unshielded SPI runs.
type FaultyBus struct {
	bus    accessnode.Bus
	rng    *rand.Rand
	config FaultConfig
	ok     int
	failed int
	mu     syncutil.Mutex
}

var _ accessnode.Bus = (*FaultyBus)(nil)

// NewFaultyBus wraps bus.
func NewFaultyBus(bus accessnode.Bus, config FaultConfig) *FaultyBus {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test code
	}
	return &FaultyBus{
		bus:    bus,
		config: config,
		rng:    rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // test code
	}
}

// Tx implements accessnode.Bus.
func (f *FaultyBus) Tx(w, r []byte) error {
	f.mu.Lock()
	fail := (f.config.FailAfter > 0 && f.ok >= f.config.FailAfter) ||
		(f.config.FailRate > 0 && f.rng.Float64() < f.config.FailRate)
	flip := f.config.FlipRate > 0 && f.rng.Float64() < f.config.FlipRate
	bit := f.rng.IntN(8)
	if fail {
		f.failed++
	} else {
		f.ok++
	}
	f.mu.Unlock()

	if fail {
		return accessnode.NewTransportError("tx", "faulty", ErrInjectedFault, accessnode.ErrorTypeTransient)
	}
	if err := f.bus.Tx(w, r); err != nil {
		return err
	}
	if flip && len(r) > 1 {
		r[len(r)-1] ^= 1 << bit
	}
	return nil
}

// Delay implements accessnode.Bus.
func (f *FaultyBus) Delay(d time.Duration) {
	f.bus.Delay(d)
}

// Failures returns how many transactions were failed.
func (f *FaultyBus) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

// Heal stops all further fault injection.
func (f *FaultyBus) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = FaultConfig{}
}
