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

package enc28j60

import "fmt"

// selectBank switches ECON1.BSEL to the bank of reg when it is not common
// and not already selected. d.bank mirrors the hardware at all times: it is
// reset to 0 as soon as the clear lands so a failed set cannot leave it
// pointing at the wrong bank.
func (d *Device) selectBank(reg Register) error {
	if reg.IsCommon() {
		return nil
	}
	bank := reg.Bank()
	if bank == d.bank {
		return nil
	}
	if err := d.bus.Tx([]byte{opBitClear | ECON1.Addr(), econ1BankSel}, nil); err != nil {
		return fmt.Errorf("clear bank select: %w", err)
	}
	d.bank = 0
	if err := d.bus.Tx([]byte{opBitSet | ECON1.Addr(), bank}, nil); err != nil {
		return fmt.Errorf("set bank %d: %w", bank, err)
	}
	d.bank = bank
	return nil
}

func (d *Device) read(reg Register) (byte, error) {
	if err := d.selectBank(reg); err != nil {
		return 0, err
	}
	n := 2
	if reg.IsMACMII() {
		n = 3
	}
	var w, r [3]byte
	w[0] = opReadCtrl | reg.Addr()
	if err := d.bus.Tx(w[:n], r[:n]); err != nil {
		return 0, fmt.Errorf("read register 0x%02X: %w", byte(reg), err)
	}
	return r[n-1], nil
}

func (d *Device) write(reg Register, v byte) error {
	if err := d.selectBank(reg); err != nil {
		return err
	}
	if err := d.bus.Tx([]byte{opWriteCtrl | reg.Addr(), v}, nil); err != nil {
		return fmt.Errorf("write register 0x%02X: %w", byte(reg), err)
	}
	return nil
}

// setBits ORs mask into reg. MAC and MII registers have no bit set
// opcode and go through read-modify-write.
func (d *Device) setBits(reg Register, mask byte) error {
	if reg.IsMACMII() {
		v, err := d.read(reg)
		if err != nil {
			return err
		}
		return d.write(reg, v|mask)
	}
	if err := d.selectBank(reg); err != nil {
		return err
	}
	if err := d.bus.Tx([]byte{opBitSet | reg.Addr(), mask}, nil); err != nil {
		return fmt.Errorf("set bits 0x%02X in 0x%02X: %w", mask, byte(reg), err)
	}
	return nil
}

func (d *Device) clearBits(reg Register, mask byte) error {
	if reg.IsMACMII() {
		v, err := d.read(reg)
		if err != nil {
			return err
		}
		return d.write(reg, v&^mask)
	}
	if err := d.selectBank(reg); err != nil {
		return err
	}
	if err := d.bus.Tx([]byte{opBitClear | reg.Addr(), mask}, nil); err != nil {
		return fmt.Errorf("clear bits 0x%02X in 0x%02X: %w", mask, byte(reg), err)
	}
	return nil
}

// read16 and write16 take the low register of a pair; the high register
// is always the next address in the same bank.
func (d *Device) read16(lo Register) (uint16, error) {
	l, err := d.read(lo)
	if err != nil {
		return 0, err
	}
	h, err := d.read(lo + 1)
	if err != nil {
		return 0, err
	}
	return uint16(h)<<8 | uint16(l), nil
}

func (d *Device) write16(lo Register, v uint16) error {
	if err := d.write(lo, byte(v)); err != nil {
		return err
	}
	return d.write(lo+1, byte(v>>8))
}

// readBuffer reads len(p) bytes of buffer memory at ERDPT.
func (d *Device) readBuffer(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	w := make([]byte, len(p)+1)
	r := make([]byte, len(p)+1)
	w[0] = opReadBuf
	if err := d.bus.Tx(w, r); err != nil {
		return fmt.Errorf("read buffer memory: %w", err)
	}
	copy(p, r[1:])
	return nil
}

// writeBuffer writes p to buffer memory at EWRPT.
func (d *Device) writeBuffer(p []byte) error {
	w := make([]byte, 0, len(p)+1)
	w = append(w, opWriteBuf)
	w = append(w, p...)
	if err := d.bus.Tx(w, nil); err != nil {
		return fmt.Errorf("write buffer memory: %w", err)
	}
	return nil
}

// ReadRegister returns the current value of any control register.
func (d *Device) ReadRegister(reg Register) (byte, error) {
	return d.read(reg)
}
