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

// Package enc28j60 drives the Microchip ENC28J60 10BASE-T Ethernet
// controller over SPI.
//
// The controller keeps received frames in a ring inside its 8 KiB buffer
// memory and transmits one frame at a time from the space above it. All
// waits on the chip are polled with a fixed iteration budget; when a budget
// runs out the call fails with a timeout and the caller decides whether to
// re-run Init.
//
// A Device is not safe for concurrent use. Wrap it in an Interface when a
// receive loop and senders share it.
package enc28j60

import (
	"fmt"
	"time"

	"github.com/ZaparooProject/go-accessnode"
)

// Device is one ENC28J60 on a bus.
type Device struct {
	bus        accessnode.Bus
	resetDelay time.Duration
	txBudget   int
	miiBudget  int
	maxFrame   int
	nextPacket uint16
	mac        [6]byte
	bank       byte
	ready      bool
}

// Option configures a Device.
type Option func(*Device) error

// WithPollBudget bounds how many times Transmit polls ECON1 while an
// earlier frame is still in flight.
func WithPollBudget(n int) Option {
	return func(d *Device) error {
		if n <= 0 {
			return fmt.Errorf("%w: poll budget %d", accessnode.ErrInvalidParameter, n)
		}
		d.txBudget = n
		return nil
	}
}

// WithMIIPollBudget bounds the wait on MISTAT.BUSY during PHY access.
func WithMIIPollBudget(n int) Option {
	return func(d *Device) error {
		if n <= 0 {
			return fmt.Errorf("%w: MII poll budget %d", accessnode.ErrInvalidParameter, n)
		}
		d.miiBudget = n
		return nil
	}
}

// WithResetDelay sets the settle time after the soft reset in Init.
func WithResetDelay(delay time.Duration) Option {
	return func(d *Device) error {
		d.resetDelay = delay
		return nil
	}
}

// WithMaxFrame sets the largest frame accepted by Transmit and programmed
// into MAMXFL. The transmit area above TXStart bounds it.
func WithMaxFrame(n int) Option {
	return func(d *Device) error {
		if n <= 0 || TXStart+n > BufferEnd {
			return fmt.Errorf("%w: max frame %d", accessnode.ErrInvalidParameter, n)
		}
		d.maxFrame = n
		return nil
	}
}

// bankUnknown forces the first banked access after New to select its bank,
// since the chip may not have been reset.
const bankUnknown = 0xFF

// New returns a Device on bus. The chip is not touched until Init.
func New(bus accessnode.Bus, opts ...Option) (*Device, error) {
	if bus == nil {
		return nil, fmt.Errorf("%w: nil bus", accessnode.ErrInvalidParameter)
	}
	d := &Device{
		bus:        bus,
		resetDelay: accessnode.EthernetResetDelay,
		txBudget:   accessnode.TransmitPolls,
		miiBudget:  accessnode.PHYBusyPolls,
		maxFrame:   MaxFrame,
		nextPacket: RXStart,
		bank:       bankUnknown,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// SoftReset issues the reset opcode and waits for the oscillator.
// The bank cache follows the hardware back to bank 0.
func (d *Device) SoftReset() error {
	if err := d.bus.Tx([]byte{opSoftReset}, nil); err != nil {
		return fmt.Errorf("soft reset: %w", err)
	}
	d.bank = 0
	d.ready = false
	d.bus.Delay(d.resetDelay)
	return nil
}

// Init resets the controller and configures the receive ring, the MAC for
// full duplex with padding and CRC, the MAC address, the PHY and finally
// enables reception.
func (d *Device) Init(mac [6]byte) error {
	if err := d.SoftReset(); err != nil {
		return err
	}

	d.nextPacket = RXStart
	for _, r := range []struct {
		reg Register
		val uint16
	}{
		{ERXSTL, RXStart},
		{ERXRDPTL, RXStart},
		{ERXNDL, RXEnd},
		{MAMXFLL, uint16(d.maxFrame)},
	} {
		if err := d.write16(r.reg, r.val); err != nil {
			return fmt.Errorf("init buffers: %w", err)
		}
	}

	for _, r := range []struct {
		reg Register
		val byte
	}{
		{MACON1, macon1TxPause | macon1RxPause | macon1MARxEn},
		{MACON2, 0x00},
		{MACON3, macon3PadCfg0 | macon3TxCRCEn | macon3FrmLnEn | macon3FulDpx},
		{MABBIPG, 0x15},
		{MAIPGL, 0x12},
		{MAIPGH, 0x0C},
		{MAADR1, mac[0]},
		{MAADR2, mac[1]},
		{MAADR3, mac[2]},
		{MAADR4, mac[3]},
		{MAADR5, mac[4]},
		{MAADR6, mac[5]},
	} {
		if err := d.write(r.reg, r.val); err != nil {
			return fmt.Errorf("init mac: %w", err)
		}
	}

	for _, p := range []struct {
		addr byte
		val  uint16
	}{
		{PHCON1, phcon1PDPxMd},
		{PHCON2, phcon2HDLDis},
		{PHLCON, phlconDefault},
	} {
		if err := d.WritePHY(p.addr, p.val); err != nil {
			return fmt.Errorf("init phy: %w", err)
		}
	}

	if err := d.setBits(ECON1, econ1RxEn); err != nil {
		return fmt.Errorf("enable receive: %w", err)
	}

	d.mac = mac
	d.ready = true
	accessnode.Debugf("enc28j60: initialized, mac %02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
	return nil
}

// MAC returns the address programmed by Init.
func (d *Device) MAC() [6]byte { return d.mac }

// MaxFrameSize returns the largest frame Transmit accepts.
func (d *Device) MaxFrameSize() int { return d.maxFrame }

// Ready reports whether Init has completed since the last reset.
func (d *Device) Ready() bool { return d.ready }

// Revision returns EREVID.
func (d *Device) Revision() (byte, error) {
	return d.read(EREVID)
}

// PacketCount returns the number of frames waiting in the receive ring.
func (d *Device) PacketCount() (byte, error) {
	return d.read(EPKTCNT)
}

// Identify reads EREVID and fails with accessnode.ErrUnexpectedChip when
// the value cannot come from an ENC28J60. An absent chip reads back as all
// zeros or all ones.
func (d *Device) Identify() (byte, error) {
	rev, err := d.Revision()
	if err != nil {
		return 0, err
	}
	if rev == 0x00 || rev == 0xFF {
		return rev, fmt.Errorf("%w: EREVID 0x%02X", accessnode.ErrUnexpectedChip, rev)
	}
	return rev, nil
}

// Probe runs Identify against whatever answers on bus.
func Probe(bus accessnode.Bus) (rev byte, ok bool) {
	d, err := New(bus)
	if err != nil {
		return 0, false
	}
	rev, err = d.Identify()
	return rev, err == nil
}
