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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-accessnode/internal/syncutil"
)

// MFRC522 register addresses and bits as the chip sees them.
const (
	rcCommandReg    = 0x01
	rcCommIEnReg    = 0x02
	rcCommIrqReg    = 0x04
	rcDivIrqReg     = 0x05
	rcErrorReg      = 0x06
	rcStatus2Reg    = 0x08
	rcFIFODataReg   = 0x09
	rcFIFOLevelReg  = 0x0A
	rcControlReg    = 0x0C
	rcBitFramingReg = 0x0D
	rcModeReg       = 0x11
	rcTxControlReg  = 0x14
	rcCRCResultRegH = 0x21
	rcCRCResultRegL = 0x22
	rcVersionReg    = 0x37

	rcIdle       = 0x00
	rcCalcCRC    = 0x03
	rcTransceive = 0x0C
	rcAuthent    = 0x0E
	rcSoftReset  = 0x0F

	rcIrqTimer  = 0x01
	rcIrqErr    = 0x02
	rcIrqIdle   = 0x10
	rcIrqRx     = 0x20
	rcIrqTx     = 0x40
	rcDivCRC    = 0x04
	rcCrypto1On = 0x08
	rcStartSend = 0x80
	rcBufOvfl   = 0x10

	rcFIFOSize = 64

	// DefaultRC522Version is VersionReg on an MFRC522 v2.0.
	DefaultRC522Version = 0x92
)

// ReaderFaults makes a VirtualMFRC522 misbehave.
type ReaderFaults struct {
	// Hang stops Transceive and MFAuthent from ever raising an interrupt.
	Hang bool
	// CRCHang stops the CRC coprocessor from finishing.
	CRCHang bool
	// ErrorReg is latched into ErrorReg after each Transceive.
	ErrorReg byte
}

// VirtualMFRC522 is a register level model of the reader IC with one card
// slot in its field. It implements accessnode.Bus.
type VirtualMFRC522 struct {
	card    *VirtualCard
	frames  [][]byte
	fifo    []byte
	regs    [0x40]byte
	mu      syncutil.Mutex
	delays  time.Duration
	Faults  ReaderFaults
	command byte
	resets  int
	crcRuns int
}

// NewVirtualMFRC522 returns a reader in its power-on state with an empty
// field.
func NewVirtualMFRC522() *VirtualMFRC522 {
	v := &VirtualMFRC522{}
	v.reset()
	return v
}

func (v *VirtualMFRC522) reset() {
	v.regs = [0x40]byte{}
	v.regs[rcCommandReg] = 0x20
	v.regs[rcControlReg] = 0x10
	v.regs[rcModeReg] = 0x3F
	v.regs[rcTxControlReg] = 0x80
	v.regs[rcVersionReg] = DefaultRC522Version
	v.fifo = v.fifo[:0]
	v.command = rcIdle
}

// Tx implements accessnode.Bus. A burst read sends one address per byte;
// a burst write sends one address followed by data.
func (v *VirtualMFRC522) Tx(w, r []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(w) == 0 {
		return nil
	}
	if w[0]&0x80 != 0 {
		if r == nil {
			r = make([]byte, len(w))
		}
		r[0] = 0x00
		for i := 0; i < len(w)-1; i++ {
			r[i+1] = v.readReg((w[i] >> 1) & 0x3F)
		}
		return nil
	}
	reg := (w[0] >> 1) & 0x3F
	for _, b := range w[1:] {
		v.writeReg(reg, b)
	}
	return nil
}

// Delay implements accessnode.Bus without sleeping.
func (v *VirtualMFRC522) Delay(d time.Duration) {
	v.mu.Lock()
	v.delays += d
	v.mu.Unlock()
}

func (v *VirtualMFRC522) readReg(reg byte) byte {
	switch reg {
	case rcFIFODataReg:
		if len(v.fifo) == 0 {
			return 0x00
		}
		b := v.fifo[0]
		v.fifo = v.fifo[1:]
		return b
	case rcFIFOLevelReg:
		return byte(len(v.fifo))
	case rcCommandReg:
		return v.regs[rcCommandReg]&0xF0 | v.command
	}
	return v.regs[reg]
}

func (v *VirtualMFRC522) writeReg(reg, val byte) {
	switch reg {
	case rcCommandReg:
		v.regs[rcCommandReg] = val & 0xF0
		v.runCommand(val & 0x0F)
	case rcCommIrqReg, rcDivIrqReg:
		if val&0x80 != 0 {
			v.regs[reg] |= val & 0x7F
		} else {
			v.regs[reg] &^= val & 0x7F
		}
	case rcFIFODataReg:
		if len(v.fifo) >= rcFIFOSize {
			v.regs[rcErrorReg] |= rcBufOvfl
			return
		}
		v.fifo = append(v.fifo, val)
	case rcFIFOLevelReg:
		if val&0x80 != 0 {
			v.fifo = v.fifo[:0]
			v.regs[rcErrorReg] &^= rcBufOvfl
		}
	case rcBitFramingReg:
		v.regs[reg] = val
		if val&rcStartSend != 0 && v.command == rcTransceive {
			v.transceive()
		}
	case rcVersionReg, rcCRCResultRegH, rcCRCResultRegL:
		// read only
	default:
		v.regs[reg] = val
	}
}

func (v *VirtualMFRC522) runCommand(cmd byte) {
	v.command = cmd
	switch cmd {
	case rcSoftReset:
		v.resets++
		v.reset()
	case rcCalcCRC:
		v.crcRuns++
		if v.Faults.CRCHang {
			return
		}
		crc := CRCA(v.fifo)
		v.fifo = v.fifo[:0]
		v.regs[rcCRCResultRegL] = byte(crc)
		v.regs[rcCRCResultRegH] = byte(crc >> 8)
		v.regs[rcDivIrqReg] |= rcDivCRC
	case rcAuthent:
		v.authenticate()
	case rcTransceive:
		if v.regs[rcBitFramingReg]&rcStartSend != 0 {
			v.transceive()
		}
	}
}

func (v *VirtualMFRC522) fieldOn() bool {
	return v.regs[rcTxControlReg]&0x03 == 0x03
}

func (v *VirtualMFRC522) transceive() {
	frame := append([]byte(nil), v.fifo...)
	v.fifo = v.fifo[:0]
	v.frames = append(v.frames, frame)
	txLastBits := int(v.regs[rcBitFramingReg] & 0x07)
	v.regs[rcErrorReg] &^= 0x1B

	if v.Faults.Hang {
		return
	}
	if v.Faults.ErrorReg != 0 {
		v.regs[rcErrorReg] |= v.Faults.ErrorReg
		v.regs[rcCommIrqReg] |= rcIrqErr | rcIrqIdle | rcIrqTx
		return
	}
	if v.card == nil || !v.fieldOn() {
		v.regs[rcCommIrqReg] |= rcIrqTx | rcIrqTimer
		return
	}
	resp, bits := v.card.Respond(frame, txLastBits)
	if resp == nil {
		v.regs[rcCommIrqReg] |= rcIrqTx | rcIrqTimer
		return
	}
	v.fifo = append(v.fifo, resp...)
	v.regs[rcControlReg] = v.regs[rcControlReg]&^0x07 | byte(bits%8)
	v.regs[rcCommIrqReg] |= rcIrqTx | rcIrqRx | rcIrqIdle
}

func (v *VirtualMFRC522) authenticate() {
	frame := append([]byte(nil), v.fifo...)
	v.fifo = v.fifo[:0]
	if v.Faults.Hang {
		return
	}
	if len(frame) != 12 || v.card == nil || !v.fieldOn() {
		v.regs[rcCommIrqReg] |= rcIrqTimer
		return
	}
	var key [6]byte
	var uid [4]byte
	copy(key[:], frame[2:8])
	copy(uid[:], frame[8:12])
	if !v.card.Authenticate(frame[0], frame[1], key, uid) {
		v.regs[rcCommIrqReg] |= rcIrqTimer
		return
	}
	v.regs[rcStatus2Reg] |= rcCrypto1On
	v.regs[rcCommIrqReg] |= rcIrqIdle
}

// Insert places card in the field, replacing any other.
func (v *VirtualMFRC522) Insert(card *VirtualCard) {
	v.mu.Lock()
	defer v.mu.Unlock()
	card.Reset()
	v.card = card
}

// Remove takes the card out of the field.
func (v *VirtualMFRC522) Remove() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.card != nil {
		v.card.Reset()
	}
	v.card = nil
}

// SetFaults replaces the reader's fault configuration.
func (v *VirtualMFRC522) SetFaults(f ReaderFaults) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Faults = f
}

// Frames returns every frame the reader has transmitted to the field.
func (v *VirtualMFRC522) Frames() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.frames))
	for i, f := range v.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// ClearFrames forgets the transmitted frames.
func (v *VirtualMFRC522) ClearFrames() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frames = nil
}

// Register returns the raw value of reg without side effects.
func (v *VirtualMFRC522) Register(reg byte) byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs[reg&0x3F]
}

// SetRegister stores val in reg without side effects.
func (v *VirtualMFRC522) SetRegister(reg, val byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.regs[reg&0x3F] = val
}

// SoftResets returns how many SoftReset commands the reader received.
func (v *VirtualMFRC522) SoftResets() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resets
}

// CRCRuns returns how many CalcCRC commands the reader received.
func (v *VirtualMFRC522) CRCRuns() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.crcRuns
}

// TotalDelay returns the sum of all Delay calls.
func (v *VirtualMFRC522) TotalDelay() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.delays
}

func (v *VirtualMFRC522) String() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fmt.Sprintf("VirtualMFRC522{version: 0x%02X, fifo: %d, card: %v}",
		v.regs[rcVersionReg], len(v.fifo), v.card != nil)
}
