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

// Register identifies a control register. Bits 0-4 are the address inside
// a bank, bits 5-6 the bank and bit 7 marks MAC and MII registers, which
// clock out a dummy byte before data and do not support bit set/clear.
type Register byte

const (
	addrMask   = 0x1F
	bankMask   = 0x60
	bankShift  = 5
	macMIIFlag = 0x80

	// Addresses from commonStart up are mapped in every bank.
	commonStart = 0x1B
)

// Addr returns the 5-bit address sent in the opcode byte.
func (r Register) Addr() byte { return byte(r) & addrMask }

// Bank returns the register bank, 0 to 3.
func (r Register) Bank() byte { return (byte(r) & bankMask) >> bankShift }

// IsMACMII reports whether reads need the dummy byte.
func (r Register) IsMACMII() bool { return byte(r)&macMIIFlag != 0 }

// IsCommon reports whether the register is reachable from every bank.
func (r Register) IsCommon() bool { return r.Addr() >= commonStart }

// SPI opcodes. The register address is ORed into the low five bits.
const (
	opReadCtrl  = 0x00
	opReadBuf   = 0x3A
	opWriteCtrl = 0x40
	opWriteBuf  = 0x7A
	opBitSet    = 0x80
	opBitClear  = 0xA0
	opSoftReset = 0xFF
)

// Bank 0.
const (
	ERDPTL   Register = 0x00
	ERDPTH   Register = 0x01
	EWRPTL   Register = 0x02
	EWRPTH   Register = 0x03
	ETXSTL   Register = 0x04
	ETXSTH   Register = 0x05
	ETXNDL   Register = 0x06
	ETXNDH   Register = 0x07
	ERXSTL   Register = 0x08
	ERXSTH   Register = 0x09
	ERXNDL   Register = 0x0A
	ERXNDH   Register = 0x0B
	ERXRDPTL Register = 0x0C
	ERXRDPTH Register = 0x0D
	ERXWRPTL Register = 0x0E
	ERXWRPTH Register = 0x0F
)

// Common to all banks.
const (
	EIE   Register = 0x1B
	EIR   Register = 0x1C
	ESTAT Register = 0x1D
	ECON2 Register = 0x1E
	ECON1 Register = 0x1F
)

// Bank 1.
const (
	ERXFCON Register = 0x38
	EPKTCNT Register = 0x39
)

// Bank 2, all MAC or MII.
const (
	MACON1   Register = 0xC0
	MACON2   Register = 0xC1
	MACON3   Register = 0xC2
	MACON4   Register = 0xC3
	MABBIPG  Register = 0xC4
	MAIPGL   Register = 0xC6
	MAIPGH   Register = 0xC7
	MAMXFLL  Register = 0xCA
	MAMXFLH  Register = 0xCB
	MICMD    Register = 0xD2
	MIREGADR Register = 0xD4
	MIWRL    Register = 0xD6
	MIWRH    Register = 0xD7
	MIRDL    Register = 0xD8
	MIRDH    Register = 0xD9
)

// Bank 3.
const (
	MAADR5 Register = 0xE0
	MAADR6 Register = 0xE1
	MAADR3 Register = 0xE2
	MAADR4 Register = 0xE3
	MAADR1 Register = 0xE4
	MAADR2 Register = 0xE5
	MISTAT Register = 0xEA
	EREVID Register = 0x72
)

// ECON1 bits.
const (
	econ1TxRst   = 0x80
	econ1RxRst   = 0x40
	econ1TxRts   = 0x08
	econ1RxEn    = 0x04
	econ1BankSel = 0x03
)

// ECON2 bits.
const (
	econ2AutoInc = 0x80
	econ2PktDec  = 0x40
)

// EIR bits.
const (
	eirPktIF  = 0x40
	eirTxIF   = 0x08
	eirTxErIF = 0x02
	eirRxErIF = 0x01
)

// MAC control bits.
const (
	macon1TxPause = 0x08
	macon1RxPause = 0x04
	macon1MARxEn  = 0x01

	macon3PadCfg0 = 0x20
	macon3TxCRCEn = 0x10
	macon3FrmLnEn = 0x02
	macon3FulDpx  = 0x01

	micmdMIIRd = 0x01
	mistatBusy = 0x01
)

// PHY registers, reached through the MII.
const (
	PHCON1  byte = 0x00
	PHSTAT1 byte = 0x01
	PHID1   byte = 0x02
	PHID2   byte = 0x03
	PHCON2  byte = 0x10
	PHSTAT2 byte = 0x11
	PHLCON  byte = 0x14
)

// PHY register bits.
const (
	phcon1PDPxMd = 0x0100
	phcon2HDLDis = 0x0100
	phstat2LStat = 0x0400

	phlconLACfg2 = 0x0200
	phlconLBCfg2 = 0x0040
	phlconLBCfg1 = 0x0020
	phlconLBCfg0 = 0x0010
	phlconLFrq0  = 0x0004
	phlconStrch  = 0x0002

	// LED A shows link status, LED B shows transmit and receive activity.
	phlconDefault = phlconLACfg2 | phlconLBCfg2 | phlconLBCfg1 | phlconLBCfg0 | phlconLFrq0 | phlconStrch
)

// Buffer memory layout. The receive ring takes the bottom of the 8 KiB
// buffer and one transmit frame sits above it.
const (
	BufferSize = 0x2000
	RXStart    = 0x0000
	RXEnd      = 0x19FF
	TXStart    = 0x1A00
	BufferEnd  = 0x1FFF
	MaxFrame   = 1500

	bufferMask = BufferSize - 1
)

// rxStatusOK is the "received ok" bit in the low status byte of a
// receive record header.
const rxStatusOK = 0x80
