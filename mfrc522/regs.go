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

import "fmt"

// The SPI address byte carries the register in bits 6..1 and the read flag
// in bit 7.
const readFlag = 0x80

func addrByte(reg Register) byte {
	return (byte(reg) << 1) & 0x7E
}

func (d *Device) read(reg Register) (byte, error) {
	var r [2]byte
	if err := d.bus.Tx([]byte{addrByte(reg) | readFlag, 0x00}, r[:]); err != nil {
		return 0, fmt.Errorf("read register 0x%02X: %w", byte(reg), err)
	}
	return r[1], nil
}

func (d *Device) write(reg Register, v byte) error {
	if err := d.bus.Tx([]byte{addrByte(reg), v}, nil); err != nil {
		return fmt.Errorf("write register 0x%02X: %w", byte(reg), err)
	}
	return nil
}

func (d *Device) setBits(reg Register, mask byte) error {
	v, err := d.read(reg)
	if err != nil {
		return err
	}
	return d.write(reg, v|mask)
}

func (d *Device) clearBits(reg Register, mask byte) error {
	v, err := d.read(reg)
	if err != nil {
		return err
	}
	return d.write(reg, v&^mask)
}

// writeFIFO pushes p into FIFODataReg in one burst.
func (d *Device) writeFIFO(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	w := make([]byte, 0, len(p)+1)
	w = append(w, addrByte(FIFODataReg))
	w = append(w, p...)
	if err := d.bus.Tx(w, nil); err != nil {
		return fmt.Errorf("write FIFO: %w", err)
	}
	return nil
}

// readFIFO pops len(p) bytes from FIFODataReg. Every address byte but the
// last clocks out one data byte.
func (d *Device) readFIFO(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	w := make([]byte, len(p)+1)
	r := make([]byte, len(p)+1)
	for i := range p {
		w[i] = addrByte(FIFODataReg) | readFlag
	}
	if err := d.bus.Tx(w, r); err != nil {
		return fmt.Errorf("read FIFO: %w", err)
	}
	copy(p, r[1:])
	return nil
}

// ReadRegister returns the current value of reg.
func (d *Device) ReadRegister(reg Register) (byte, error) {
	return d.read(reg)
}

// WriteRegister stores v in reg.
func (d *Device) WriteRegister(reg Register, v byte) error {
	return d.write(reg, v)
}
