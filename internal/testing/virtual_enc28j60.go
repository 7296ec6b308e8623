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
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-accessnode/internal/syncutil"
)

// ENC28J60 register addresses as the chip sees them: bank in bits 5-6,
// address in bits 0-4. The MAC/MII flag used by the driver is not part of
// the wire encoding and is stripped here.
const (
	encERDPTL   = 0x00
	encEWRPTL   = 0x02
	encETXSTL   = 0x04
	encETXNDL   = 0x06
	encERXSTL   = 0x08
	encERXNDL   = 0x0A
	encERXRDPTL = 0x0C
	encERXWRPTL = 0x0E
	encEIR      = 0x1C
	encESTAT    = 0x1D
	encECON2    = 0x1E
	encECON1    = 0x1F
	encEPKTCNT  = 0x39
	encMICMD    = 0x52
	encMIREGADR = 0x54
	encMIWRL    = 0x56
	encMIWRH    = 0x57
	encMIRDL    = 0x58
	encMIRDH    = 0x59
	encMAADR1   = 0x64
	encMISTAT   = 0x6A
	encEREVID   = 0x72

	encTXRST   = 0x80
	encTXRTS   = 0x08
	encRXEN    = 0x04
	encAUTOINC = 0x80
	encPKTDEC  = 0x40
	encTXIF    = 0x08
	encTXERIF  = 0x02
	encPKTIF   = 0x40

	encBufferSize = 0x2000
	encBufferMask = encBufferSize - 1

	// DefaultENCRevision is what EREVID reads on a rev B7 part.
	DefaultENCRevision = 0x06

	// DefaultPHYID1 and DefaultPHYID2 are the PHY identifiers Microchip ships.
	DefaultPHYID1 = 0x0083
	DefaultPHYID2 = 0x1400
)

// ErrReceiveDisabled is returned by InjectFrame while ECON1.RXEN is clear.
var ErrReceiveDisabled = errors.New("receive not enabled")

// VirtualENC28J60 is a register level model of the Ethernet controller
// behind a bus. It implements accessnode.Bus.
type VirtualENC28J60 struct {
	phy        map[byte]uint16
	sent       [][]byte
	mem        [encBufferSize]byte
	banks      [4][0x1B]byte
	common     [5]byte
	mu         syncutil.Mutex
	delays     time.Duration
	txStall    int
	miiBusy    int
	miiLatency int
	miiStuck   bool
	txStuck    bool
	resets     int
	txResets   int
}

// NewVirtualENC28J60 returns a chip in its power-on state.
func NewVirtualENC28J60() *VirtualENC28J60 {
	v := &VirtualENC28J60{
		phy: map[byte]uint16{
			0x02: DefaultPHYID1,
			0x03: DefaultPHYID2,
		},
	}
	v.reset()
	return v
}

func (v *VirtualENC28J60) reset() {
	v.banks = [4][0x1B]byte{}
	v.common = [5]byte{}
	v.common[encECON2-0x1B] = encAUTOINC
	v.common[encESTAT-0x1B] = 0x01
	v.banks[3][encEREVID&0x1F] = DefaultENCRevision
	v.setReg16(encERXNDL, 0x1FFF)
	v.setReg16(encERXRDPTL, 0x05FA)
	v.txStall = 0
	v.txStuck = false
	v.miiBusy = 0
}

// regPtr returns the storage for a bank-qualified register address.
func (v *VirtualENC28J60) regPtr(reg byte) *byte {
	addr := reg & 0x1F
	if addr >= 0x1B {
		return &v.common[addr-0x1B]
	}
	return &v.banks[(reg>>5)&0x03][addr]
}

func (v *VirtualENC28J60) reg16(lo byte) uint16 {
	return uint16(*v.regPtr(lo+1))<<8 | uint16(*v.regPtr(lo))
}

func (v *VirtualENC28J60) setReg16(lo byte, val uint16) {
	*v.regPtr(lo) = byte(val)
	*v.regPtr(lo + 1) = byte(val >> 8)
}

func (v *VirtualENC28J60) bank() byte {
	return v.common[encECON1-0x1B] & 0x03
}

// isMACMII reports whether the bank-qualified register clocks out a dummy
// byte on reads.
func isMACMII(reg byte) bool {
	switch reg >> 5 {
	case 2:
		return reg&0x1F <= 0x19
	case 3:
		addr := reg & 0x1F
		return addr <= 0x05 || addr == 0x0A
	}
	return false
}

// Tx implements accessnode.Bus.
func (v *VirtualENC28J60) Tx(w, r []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(w) == 0 {
		return nil
	}
	if r == nil {
		r = make([]byte, len(w))
	}
	op := w[0]
	if op == 0xFF {
		v.resets++
		v.reset()
		return nil
	}
	addr := op & 0x1F
	reg := addr
	if addr < 0x1B {
		reg |= v.bank() << 5
	}

	switch op & 0xE0 {
	case 0x00:
		v.readControl(reg, r)
	case 0x20:
		v.readBufferMem(r[1:])
	case 0x40:
		if len(w) > 1 {
			v.writeControl(reg, w[1])
		}
	case 0x60:
		v.writeBufferMem(w[1:])
	case 0x80:
		if len(w) > 1 {
			v.bitSet(reg, w[1])
		}
	case 0xA0:
		if len(w) > 1 {
			v.bitClear(reg, w[1])
		}
	}
	return nil
}

// Delay implements accessnode.Bus without sleeping.
func (v *VirtualENC28J60) Delay(d time.Duration) {
	v.mu.Lock()
	v.delays += d
	v.mu.Unlock()
}

func (v *VirtualENC28J60) readControl(reg byte, r []byte) {
	val := v.readSideEffects(reg)
	if isMACMII(reg) {
		// Two byte reads of MAC/MII registers return the dummy byte.
		if len(r) >= 3 {
			r[1] = 0xFF
			r[2] = val
		} else if len(r) == 2 {
			r[1] = 0xFF
		}
		return
	}
	if len(r) >= 2 {
		r[1] = val
	}
}

func (v *VirtualENC28J60) readSideEffects(reg byte) byte {
	switch reg {
	case encECON1:
		if v.txStall > 0 && *v.regPtr(encECON1)&encTXRTS != 0 {
			v.txStall--
			if v.txStall == 0 && !v.txStuck {
				v.completeTransmit()
			}
		}
	case encMISTAT:
		if v.miiBusy > 0 && !v.miiStuck {
			v.miiBusy--
			if v.miiBusy == 0 {
				*v.regPtr(encMISTAT) &^= 0x01
			}
		}
	}
	return *v.regPtr(reg)
}

func (v *VirtualENC28J60) writeControl(reg, val byte) {
	p := v.regPtr(reg)
	old := *p
	*p = val
	switch reg {
	case encECON1, encECON2:
		v.controlChanged(reg, old, val)
	case encMICMD:
		if val&0x01 != 0 && old&0x01 == 0 {
			v.miiStart()
			v.setReg16(encMIRDL, v.phy[*v.regPtr(encMIREGADR)])
		}
	case encMIWRH:
		v.miiStart()
		v.phy[*v.regPtr(encMIREGADR)] = v.reg16(encMIWRL)
	}
}

func (v *VirtualENC28J60) bitSet(reg, mask byte) {
	p := v.regPtr(reg)
	old := *p
	*p |= mask
	v.controlChanged(reg, old, *p)
}

func (v *VirtualENC28J60) bitClear(reg, mask byte) {
	p := v.regPtr(reg)
	old := *p
	*p &^= mask
	v.controlChanged(reg, old, *p)
}

func (v *VirtualENC28J60) controlChanged(reg, old, val byte) {
	switch reg {
	case encECON1:
		if val&encTXRST != 0 && old&encTXRST == 0 {
			v.txResets++
			v.txStall = 0
			v.txStuck = false
			*v.regPtr(encECON1) &^= encTXRTS
		}
		if val&encTXRTS != 0 && old&encTXRTS == 0 {
			v.startTransmit()
		}
	case encECON2:
		if val&encPKTDEC != 0 {
			if cnt := v.regPtr(encEPKTCNT); *cnt > 0 {
				*cnt--
			}
			if *v.regPtr(encEPKTCNT) == 0 {
				*v.regPtr(encEIR) &^= encPKTIF
			}
			*v.regPtr(encECON2) &^= encPKTDEC
		}
	}
}

func (v *VirtualENC28J60) miiStart() {
	if v.miiLatency > 0 || v.miiStuck {
		v.miiBusy = v.miiLatency
		*v.regPtr(encMISTAT) |= 0x01
	}
}

func (v *VirtualENC28J60) startTransmit() {
	if v.txStall > 0 || v.txStuck {
		return
	}
	v.completeTransmit()
}

func (v *VirtualENC28J60) completeTransmit() {
	start := int(v.reg16(encETXSTL))
	end := int(v.reg16(encETXNDL))
	if end >= start && end < encBufferSize {
		// The byte at ETXST is the per-packet control byte.
		frame := append([]byte(nil), v.mem[start+1:end+1]...)
		v.sent = append(v.sent, frame)
	}
	*v.regPtr(encECON1) &^= encTXRTS
	*v.regPtr(encEIR) |= encTXIF
}

func (v *VirtualENC28J60) readBufferMem(dst []byte) {
	ptr := v.reg16(encERDPTL)
	rxStart, rxEnd := v.reg16(encERXSTL), v.reg16(encERXNDL)
	autoinc := *v.regPtr(encECON2)&encAUTOINC != 0
	for i := range dst {
		dst[i] = v.mem[ptr&encBufferMask]
		if !autoinc {
			continue
		}
		if ptr == rxEnd {
			ptr = rxStart
		} else {
			ptr = (ptr + 1) & encBufferMask
		}
	}
	v.setReg16(encERDPTL, ptr)
}

func (v *VirtualENC28J60) writeBufferMem(src []byte) {
	ptr := v.reg16(encEWRPTL)
	autoinc := *v.regPtr(encECON2)&encAUTOINC != 0
	for _, b := range src {
		v.mem[ptr&encBufferMask] = b
		if autoinc {
			ptr = (ptr + 1) & encBufferMask
		}
	}
	v.setReg16(encEWRPTL, ptr)
}

// InjectFrame places a received frame into the ring at the hardware write
// pointer, the way the MAC would. ok controls the "received ok" status
// bit. Four CRC bytes are appended and counted.
func (v *VirtualENC28J60) InjectFrame(frame []byte, ok bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if *v.regPtr(encECON1)&encRXEN == 0 {
		return ErrReceiveDisabled
	}
	rxStart, rxEnd := v.reg16(encERXSTL), v.reg16(encERXNDL)
	wp := v.reg16(encERXWRPTL)
	if wp < rxStart || wp > rxEnd {
		wp = rxStart
	}

	count := len(frame) + 4
	size := 6 + count
	next := uint16(int(wp) + size)
	if next&1 != 0 {
		next++
	}
	ringLen := int(rxEnd) - int(rxStart) + 1
	if next > rxEnd {
		next = uint16(int(next) - ringLen)
	}

	var status uint16
	if ok {
		status = 0x0080
	}
	record := make([]byte, 0, size)
	record = binary.LittleEndian.AppendUint16(record, next)
	record = binary.LittleEndian.AppendUint16(record, uint16(count))
	record = binary.LittleEndian.AppendUint16(record, status)
	record = append(record, frame...)
	record = append(record, 0xDE, 0xAD, 0xBE, 0xEF)

	ptr := wp
	for _, b := range record {
		v.mem[ptr] = b
		if ptr == rxEnd {
			ptr = rxStart
		} else {
			ptr++
		}
	}
	v.setReg16(encERXWRPTL, next)
	*v.regPtr(encEPKTCNT)++
	*v.regPtr(encEIR) |= encPKTIF
	return nil
}

// WriteMemory writes raw bytes into buffer memory, for crafting records.
func (v *VirtualENC28J60) WriteMemory(addr uint16, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, b := range data {
		v.mem[(int(addr)+i)&encBufferMask] = b
	}
}

// Memory returns a copy of n bytes of buffer memory at addr.
func (v *VirtualENC28J60) Memory(addr uint16, n int) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = v.mem[(int(addr)+i)&encBufferMask]
	}
	return out
}

// SetPacketCount forces EPKTCNT.
func (v *VirtualENC28J60) SetPacketCount(n byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	*v.regPtr(encEPKTCNT) = n
}

// Register returns a bank-qualified register (bank<<5 | addr).
func (v *VirtualENC28J60) Register(reg byte) byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return *v.regPtr(reg & 0x7F)
}

// Register16 returns a little-endian register pair.
func (v *VirtualENC28J60) Register16(lo byte) uint16 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reg16(lo & 0x7F)
}

// SetRegister forces a bank-qualified register without side effects.
func (v *VirtualENC28J60) SetRegister(reg, val byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	*v.regPtr(reg & 0x7F) = val
}

// PHY returns a PHY register.
func (v *VirtualENC28J60) PHY(addr byte) uint16 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.phy[addr]
}

// SetLink sets PHSTAT2.LSTAT.
func (v *VirtualENC28J60) SetLink(up bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if up {
		v.phy[0x11] |= 0x0400
	} else {
		v.phy[0x11] &^= 0x0400
	}
}

// SetMIILatency makes each MII operation report busy for n MISTAT reads.
// With stuck set the busy flag never clears.
func (v *VirtualENC28J60) SetMIILatency(n int, stuck bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.miiLatency = n
	v.miiStuck = stuck
}

// StallTransmit keeps the next transmission in flight for n ECON1 reads.
func (v *VirtualENC28J60) StallTransmit(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txStall = n
}

// WedgeTransmit leaves a frame in flight with TXERIF raised, as the
// silicon does after a late collision. Only a transmit reset clears it.
func (v *VirtualENC28J60) WedgeTransmit(withError bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txStuck = true
	v.txStall = 1
	*v.regPtr(encECON1) |= encTXRTS
	if withError {
		*v.regPtr(encEIR) |= encTXERIF
	}
}

// TransmitResets counts rising edges of ECON1.TXRST.
func (v *VirtualENC28J60) TransmitResets() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txResets
}

// SoftResets counts soft reset opcodes.
func (v *VirtualENC28J60) SoftResets() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resets
}

// TotalDelay is the sum of all Delay calls.
func (v *VirtualENC28J60) TotalDelay() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.delays
}

// SentFrames returns copies of all transmitted frames.
func (v *VirtualENC28J60) SentFrames() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.sent))
	for i, f := range v.sent {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

func (v *VirtualENC28J60) String() string {
	return fmt.Sprintf("virtual ENC28J60 rev %d", DefaultENCRevision)
}
