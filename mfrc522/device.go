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

// Package mfrc522 drives the NXP MFRC522 13.56 MHz reader IC over SPI and
// implements the ISO/IEC 14443-A and MIFARE Classic card commands on top
// of it.
//
// Card operations follow a session: Request, AntiCollision, Select,
// Authenticate and then ReadBlock or WriteBlock. Calls made out of that
// order fail with a *SessionError before anything reaches the bus. Every
// error maps onto the reader's three-valued status with StatusOf.
//
// A Device is not safe for concurrent use.
package mfrc522

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"periph.io/x/conn/v3/gpio"
)

// Device is one MFRC522 on a bus.
type Device struct {
	bus        accessnode.Bus
	resetPin   gpio.PinOut
	resetDelay time.Duration
	pollBudget int
	crcBudget  int
	session    session
}

// Option configures a Device.
type Option func(*Device) error

// WithPollBudget bounds how many times Execute polls CommIrqReg.
func WithPollBudget(n int) Option {
	return func(d *Device) error {
		if n <= 0 {
			return fmt.Errorf("%w: poll budget %d", accessnode.ErrInvalidParameter, n)
		}
		d.pollBudget = n
		return nil
	}
}

// WithCRCPollBudget bounds the wait on the CRC coprocessor.
func WithCRCPollBudget(n int) Option {
	return func(d *Device) error {
		if n <= 0 {
			return fmt.Errorf("%w: CRC poll budget %d", accessnode.ErrInvalidParameter, n)
		}
		d.crcBudget = n
		return nil
	}
}

// WithResetDelay sets the settle time after a soft reset.
func WithResetDelay(delay time.Duration) Option {
	return func(d *Device) error {
		d.resetDelay = delay
		return nil
	}
}

// WithResetPin gives the driver the NRSTPD line. Init drives it high
// before talking to the chip.
func WithResetPin(pin gpio.PinOut) Option {
	return func(d *Device) error {
		d.resetPin = pin
		return nil
	}
}

// New returns a Device on bus. The chip is not touched until Init.
func New(bus accessnode.Bus, opts ...Option) (*Device, error) {
	if bus == nil {
		return nil, fmt.Errorf("%w: nil bus", accessnode.ErrInvalidParameter)
	}
	d := &Device{
		bus:        bus,
		resetDelay: accessnode.ReaderResetDelay,
		pollBudget: accessnode.ReaderCommandPolls,
		crcBudget:  accessnode.ReaderCRCPolls,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Init releases the reset line, soft resets the chip, programs the timer,
// modulation and receiver gain and turns the antenna on.
func (d *Device) Init(ctx context.Context) error {
	if d.resetPin != nil {
		if err := d.resetPin.Out(gpio.High); err != nil {
			return fmt.Errorf("release reset pin: %w", err)
		}
	}
	if err := d.SoftReset(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.AntennaOff(); err != nil {
		return err
	}

	for _, r := range []struct {
		reg Register
		val byte
	}{
		{ModeReg, 0x3D},
		{DemodReg, 0x5D},
		{RFCfgReg, 0x70},
		{TxASKReg, 0x40},
		{TModeReg, 0x8D},
		{TPrescalerReg, 0x3D},
		{TReloadRegL, 0x30},
		{TReloadRegH, 0x00},
	} {
		if err := d.write(r.reg, r.val); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}

	if err := d.AntennaOn(); err != nil {
		return err
	}
	accessnode.Debugln("mfrc522: initialized")
	return nil
}

// SoftReset restarts the chip and drops any card session.
func (d *Device) SoftReset() error {
	d.session.reset()
	if err := d.write(CommandReg, byte(CmdSoftReset)); err != nil {
		return fmt.Errorf("soft reset: %w", err)
	}
	d.bus.Delay(d.resetDelay)
	return nil
}

// AntennaOn enables both TX pins if they are off.
func (d *Device) AntennaOn() error {
	v, err := d.read(TxControlReg)
	if err != nil {
		return fmt.Errorf("antenna on: %w", err)
	}
	if v&antennaTx == antennaTx {
		return nil
	}
	if err := d.write(TxControlReg, v|antennaTx); err != nil {
		return fmt.Errorf("antenna on: %w", err)
	}
	return nil
}

// AntennaOff disables the RF field. Any card in the field loses power.
func (d *Device) AntennaOff() error {
	d.session.reset()
	if err := d.clearBits(TxControlReg, antennaTx); err != nil {
		return fmt.Errorf("antenna off: %w", err)
	}
	return nil
}

// Version returns VersionReg.
func (d *Device) Version() (byte, error) {
	return d.read(VersionReg)
}

// VersionName names a VersionReg value, or returns "" for unknown chips.
func VersionName(v byte) string {
	return knownVersions[v]
}

// Identify reads VersionReg and fails with accessnode.ErrUnexpectedChip
// unless it names an MFRC522 or a known clone.
func (d *Device) Identify() (byte, error) {
	v, err := d.Version()
	if err != nil {
		return 0, err
	}
	if _, ok := knownVersions[v]; !ok {
		return v, fmt.Errorf("%w: VersionReg 0x%02X", accessnode.ErrUnexpectedChip, v)
	}
	return v, nil
}

// Probe runs Identify against whatever answers on bus.
func Probe(bus accessnode.Bus) (version byte, ok bool) {
	d, err := New(bus)
	if err != nil {
		return 0, false
	}
	version, err = d.Identify()
	return version, err == nil
}
